package store_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/calvinalkan/taskstore/internal/fs"
	"github.com/calvinalkan/taskstore/internal/store"
	"github.com/calvinalkan/taskstore/internal/task"
)

var testNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func testUUID(n int) string {
	return fmt.Sprintf("0190a1b2-0000-7000-8000-%012d", n)
}

// rec builds a valid record. kv pairs override or add attributes.
func rec(t *testing.T, n int, desc string, kv ...string) *task.Record {
	t.Helper()

	m := map[string]string{
		task.AttrUUID:        testUUID(n),
		task.AttrStatus:      string(task.StatusPending),
		task.AttrDescription: desc,
		task.AttrEntry:       task.FormatEpoch(testNow),
	}

	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = kv[i+1]
	}

	r, err := task.FromMap(m)
	if err != nil {
		t.Fatalf("record %d: %v", n, err)
	}

	return r
}

func openStore(t *testing.T, dir string, opts store.Options) *store.Store {
	t.Helper()

	if opts.Clock == nil {
		opts.Clock = func() time.Time { return testNow }
	}

	s, err := store.Open(t.Context(), dir, opts)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	t.Cleanup(func() { _ = s.Close() })

	return s
}

// commitAdds adds records in one Tx.
func commitAdds(t *testing.T, s *store.Store, records ...*task.Record) {
	t.Helper()

	tx, err := s.Begin(t.Context())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	defer func() { _ = tx.Rollback() }()

	for _, r := range records {
		err = tx.Add(r)
		if err != nil {
			t.Fatalf("add %s: %v", r.UUID(), err)
		}
	}

	err = tx.Commit(t.Context(), store.Meta{Command: "add"})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
}

// commitModify applies fn to a clone of the record with UUID id and commits.
func commitModify(t *testing.T, s *store.Store, id string, fn func(r *task.Record) error) {
	t.Helper()

	tx, err := s.Begin(t.Context())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	defer func() { _ = tx.Rollback() }()

	cur, err := tx.Snapshot().Get(id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}

	r := cur.Clone()

	err = fn(r)
	if err != nil {
		t.Fatalf("mutate %s: %v", id, err)
	}

	err = tx.Modify(r)
	if err != nil {
		t.Fatalf("modify %s: %v", id, err)
	}

	err = tx.Commit(t.Context(), store.Meta{Command: "modify"})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func load(t *testing.T, s *store.Store) *store.Snapshot {
	t.Helper()

	snap, err := s.Load(t.Context())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	return snap
}

func descriptions(rs []*task.Record) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Description())
	}

	return out
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("read %s: %v", path, err)
	}

	return string(data)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	err := os.WriteFile(path, []byte(content), 0o600)
	if err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func jsonLines(t *testing.T, records ...*task.Record) string {
	t.Helper()

	var b strings.Builder

	for _, r := range records {
		data, err := r.MarshalJSON()
		if err != nil {
			t.Fatal(err)
		}

		b.Write(data)
		b.WriteByte('\n')
	}

	return b.String()
}

var errInjected = errors.New("injected fault")

// faultFS wraps the real filesystem and simulates a crash at a chosen step of
// the commit: a torn WAL write or a failed collection replace.
type faultFS struct {
	fs.FS

	mu sync.Mutex

	// failReplace makes WriteFileAtomic fail without touching the target.
	failReplace bool

	// walBudget caps the bytes the WAL accepts; -1 means unlimited.
	walBudget int
}

func newFaultFS() *faultFS {
	return &faultFS{FS: fs.NewReal(), walBudget: -1}
}

func (f *faultFS) WriteFileAtomic(path string, data []byte) error {
	f.mu.Lock()
	fail := f.failReplace
	f.mu.Unlock()

	if fail {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), errInjected)
	}

	return f.FS.WriteFileAtomic(path, data)
}

func (f *faultFS) OpenFile(path string, flag int, perm os.FileMode) (fs.File, error) {
	file, err := f.FS.OpenFile(path, flag, perm)
	if err != nil || filepath.Base(path) != "wal" {
		return file, err
	}

	return &faultFile{File: file, fs: f}, nil
}

type faultFile struct {
	fs.File

	fs *faultFS
}

func (f *faultFile) Write(p []byte) (int, error) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	if f.fs.walBudget < 0 {
		return f.File.Write(p)
	}

	if len(p) <= f.fs.walBudget {
		f.fs.walBudget -= len(p)

		return f.File.Write(p)
	}

	n, _ := f.File.Write(p[:f.fs.walBudget])
	f.fs.walBudget = 0

	return n, fmt.Errorf("torn write: %w", errInjected)
}
