package store

import "errors"

// ErrNotFound reports a UUID that is not in the snapshot.
var ErrNotFound = errors.New("task not found")

// ErrCorrupt reports persisted data the store refuses to load: a malformed
// or truncated collection line, a duplicate UUID, or a committed WAL whose
// checksum does not match. Nothing is written after ErrCorrupt.
var ErrCorrupt = errors.New("store corrupt")

// ErrBusy reports that another process holds the store lock past the
// configured timeout. The store never retries on its own.
var ErrBusy = errors.New("store busy")

// ErrNothingToUndo reports an empty undo stack.
var ErrNothingToUndo = errors.New("nothing to undo")

// ErrNothingToRedo reports an empty redo stack.
var ErrNothingToRedo = errors.New("nothing to redo")

// ErrWALReplay reports WAL validation or replay failures.
var ErrWALReplay = errors.New("wal replay")

// ErrTxClosed reports use of a transaction after Commit or Rollback.
var ErrTxClosed = errors.New("transaction closed")

// ErrExists reports an Add for a UUID that is already in the snapshot.
var ErrExists = errors.New("task already exists")
