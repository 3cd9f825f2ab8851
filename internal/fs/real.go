package fs

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// Real implements [FS] using the real filesystem.
//
// Everything except [Real.WriteFileAtomic] is a passthrough to [os].
type Real struct{}

// NewReal returns a new [Real] filesystem.
func NewReal() *Real {
	return &Real{}
}

// A passthrough wrapper for [os.Open].
func (r *Real) Open(path string) (File, error) {
	return os.Open(path)
}

// A passthrough wrapper for [os.OpenFile].
func (r *Real) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	return os.OpenFile(path, flag, perm)
}

// A passthrough wrapper for [os.ReadFile].
func (r *Real) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFileAtomic writes data to a temp file in the same directory, fsyncs
// it, renames it over path and then fsyncs the parent directory so the
// rename itself survives a power loss.
func (r *Real) WriteFileAtomic(path string, data []byte) error {
	err := atomic.WriteFile(path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("atomic write %s: %w", path, err)
	}

	return syncDir(filepath.Dir(path))
}

// A passthrough wrapper for [os.MkdirAll].
func (r *Real) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// A passthrough wrapper for [os.Stat].
func (r *Real) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// A passthrough wrapper for [os.Remove].
func (r *Real) Remove(path string) error {
	return os.Remove(path)
}

func syncDir(dir string) error {
	fh, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open dir %s: %w", dir, err)
	}

	syncErr := fh.Sync()
	closeErr := fh.Close()

	if syncErr != nil {
		syncErr = fmt.Errorf("sync dir %s: %w", dir, syncErr)
	}

	if closeErr != nil {
		closeErr = fmt.Errorf("close dir %s: %w", dir, closeErr)
	}

	return errors.Join(syncErr, closeErr)
}

// Compile-time interface check.
var _ FS = (*Real)(nil)
