// Package fs provides the filesystem seam used by the task store.
//
// The store never touches [os] directly. It goes through [FS] so tests can
// swap in a wrapper that fails or "crashes" at a chosen operation, which is
// how commit atomicity is verified.
//
// The main types are:
//   - [FS]: interface for the filesystem operations the store needs
//   - [File]: interface for open files (satisfied by [os.File])
//   - [Real]: production implementation using [os] and [atomic]
//   - [Locker]: flock(2) based advisory locking with bounded waits
package fs

import (
	"io"
	"os"
)

// File represents an open file descriptor.
//
// This interface is satisfied by [os.File]. The write-ahead log keeps one
// File open for the lifetime of a store and rewrites it in place, so Seek,
// Truncate and Sync are part of the contract.
type File interface {
	io.ReadWriteCloser
	io.Seeker

	// Fd returns the file descriptor. Used for flock.
	Fd() uintptr

	// Stat returns the [os.FileInfo] for this file.
	Stat() (os.FileInfo, error)

	// Sync commits the file's contents to disk.
	Sync() error

	// Truncate changes the size of the file.
	Truncate(size int64) error
}

// FS defines the filesystem operations used by the store.
//
// All methods mirror their [os] package equivalents except
// [FS.WriteFileAtomic], which replaces a file via temp file + rename.
type FS interface {
	// Open opens a file for reading. See [os.Open].
	Open(path string) (File, error)

	// OpenFile opens a file with specified flags and permissions. See [os.OpenFile].
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// ReadFile reads an entire file into memory. See [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// WriteFileAtomic replaces path with data. Readers observe either the
	// old content or the new content, never a mix, and the new content is
	// durable once the call returns nil.
	WriteFileAtomic(path string, data []byte) error

	// MkdirAll creates a directory and all parents. See [os.MkdirAll].
	MkdirAll(path string, perm os.FileMode) error

	// Stat returns file info. See [os.Stat].
	Stat(path string) (os.FileInfo, error)

	// Remove deletes a file or empty directory. See [os.Remove].
	Remove(path string) error
}

// Compile-time interface checks.
var _ File = (*os.File)(nil)
