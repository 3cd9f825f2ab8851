// Package store persists task records in JSONL collections with crash-safe
// commits and an undo log.
//
// Layout under the data directory:
//
//	pending.data     pending, waiting and recurring records (JSONL)
//	completed.data   completed and deleted records (JSONL)
//	backlog.data     every record state written by a commit, append-only
//	undo.sqlite      undo log: groups and entries
//	wal              write-ahead log, the commit point
//	.lock            advisory lock file
//
// Every read and write happens under an exclusive flock on .lock. A commit
// writes the new collection contents and the undo group to the WAL and
// fsyncs it; only then are the collection files replaced (temp + rename) and
// the undo rows inserted. Recovery replays a committed WAL and discards an
// uncommitted one, so a crash at any point leaves either the old state or the
// new state, never a mix, and the undo log never points at a state the
// collections did not reach.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/calvinalkan/taskstore/internal/fs"
)

const (
	walFile     = "wal"
	lockFile    = ".lock"
	journalFile = "undo.sqlite"
)

// DefaultLockTimeout bounds how long Begin and Load wait for the lock.
const DefaultLockTimeout = 5 * time.Second

// Options configures [Open]. The zero value is valid.
type Options struct {
	// LockTimeout bounds the wait for the store lock. Zero means
	// [DefaultLockTimeout].
	LockTimeout time.Duration

	// FS replaces the real filesystem. Tests use it to inject faults.
	FS fs.FS

	// Logger receives recovery and undo diagnostics. Nil discards.
	Logger *slog.Logger

	// Clock stamps undo groups. Nil means time.Now.
	Clock func() time.Time
}

// Store is an open data directory. It is safe for sequential use by one
// goroutine; concurrent processes coordinate through the lock file.
type Store struct {
	dir         string
	fs          fs.FS
	locker      *fs.Locker
	lockTimeout time.Duration
	log         *slog.Logger
	now         func() time.Time

	db      *sql.DB
	journal *journal
	wal     fs.File
}

// Open prepares the data directory: it creates missing directories, opens the
// WAL and the undo log and creates the undo log schema. It does not take the
// lock or read collections; see [Store.Load] and [Store.Begin].
func Open(ctx context.Context, dir string, opts Options) (*Store, error) {
	if ctx == nil {
		return nil, errors.New("open store: context is nil")
	}

	if dir == "" {
		return nil, errors.New("open store: directory is empty")
	}

	s := &Store{
		dir:         filepath.Clean(dir),
		fs:          opts.FS,
		lockTimeout: opts.LockTimeout,
		log:         opts.Logger,
		now:         opts.Clock,
	}

	if s.fs == nil {
		s.fs = fs.NewReal()
	}

	if s.lockTimeout <= 0 {
		s.lockTimeout = DefaultLockTimeout
	}

	if s.log == nil {
		s.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if s.now == nil {
		s.now = time.Now
	}

	s.locker = fs.NewLocker(s.fs)

	err := s.fs.MkdirAll(s.dir, 0o750)
	if err != nil {
		return nil, fmt.Errorf("open store: create data dir: %w", err)
	}

	s.wal, err = s.fs.OpenFile(filepath.Join(s.dir, walFile), os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open store: open wal: %w", err)
	}

	s.db, err = openSqlite(ctx, filepath.Join(s.dir, journalFile))
	if err != nil {
		_ = s.wal.Close()

		return nil, fmt.Errorf("open store: %w", err)
	}

	err = ensureSchema(ctx, s.db)
	if err != nil {
		_ = s.Close()

		return nil, fmt.Errorf("open store: %w", err)
	}

	s.journal = &journal{db: s.db}

	s.log.Debug("store opened", "dir", s.dir)

	return s, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// Close releases the WAL and undo log handles.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}

	var errs []error

	if s.db != nil {
		err := s.db.Close()
		if err != nil {
			errs = append(errs, fmt.Errorf("close sqlite: %w", err))
		}

		s.db = nil
	}

	if s.wal != nil {
		err := s.wal.Close()
		if err != nil {
			errs = append(errs, fmt.Errorf("close wal: %w", err))
		}

		s.wal = nil
	}

	return errors.Join(errs...)
}

// Load returns a read-only snapshot. It takes the lock for the duration of
// the read and recovers the WAL first.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	var snap *Snapshot

	err := s.withLock(ctx, func() error {
		var err error

		snap, err = s.readSnapshot()

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	return snap, nil
}

// History returns every undo group, newest first, with entries.
func (s *Store) History(ctx context.Context) ([]Group, error) {
	var groups []Group

	err := s.withLock(ctx, func() error {
		var err error

		groups, err = s.journal.groups(ctx)
		if err != nil {
			return err
		}

		for i := range groups {
			err = s.journal.loadEntries(ctx, &groups[i])
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	for i, j := 0, len(groups)-1; i < j; i, j = i+1, j-1 {
		groups[i], groups[j] = groups[j], groups[i]
	}

	return groups, nil
}

// withLock runs fn under the store lock after WAL recovery.
func (s *Store) withLock(ctx context.Context, fn func() error) error {
	lock, err := s.lock(ctx)
	if err != nil {
		return err
	}

	defer func() { _ = lock.Close() }()

	err = s.recoverWalLocked(ctx)
	if err != nil {
		return err
	}

	return fn()
}

func (s *Store) lock(ctx context.Context) (*fs.Lock, error) {
	if ctx == nil {
		return nil, errors.New("context is nil")
	}

	if s == nil || s.db == nil || s.wal == nil {
		return nil, errors.New("store is not open")
	}

	err := ctx.Err()
	if err != nil {
		return nil, err
	}

	lock, err := s.locker.LockWithTimeout(filepath.Join(s.dir, lockFile), s.lockTimeout)
	if err != nil {
		if errors.Is(err, fs.ErrWouldBlock) {
			return nil, fmt.Errorf("%w: %w", ErrBusy, err)
		}

		return nil, fmt.Errorf("lock: %w", err)
	}

	return lock, nil
}

func (s *Store) readSnapshot() (*Snapshot, error) {
	pending, err := readCollection(s.fs, filepath.Join(s.dir, pendingFile))
	if err != nil {
		return nil, err
	}

	completed, err := readCollection(s.fs, filepath.Join(s.dir, completedFile))
	if err != nil {
		return nil, err
	}

	return newSnapshot(pending, completed)
}
