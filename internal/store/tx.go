package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/calvinalkan/taskstore/internal/fs"
	"github.com/calvinalkan/taskstore/internal/task"
)

// Tx is a load–mutate–commit cycle. It owns the store lock from [Store.Begin]
// until [Tx.Commit] or [Tx.Rollback]; callers defer Rollback, which is a
// no-op after Commit.
//
// Writes go to the Tx's snapshot immediately so later reads in the same Tx
// see them. Nothing reaches disk before Commit. The commit sequence:
//  1. Diff every touched record against its state at first touch
//  2. Encode new collection contents, backlog and undo group to the WAL,
//     fsync (commit point)
//  3. Replace collection files (temp + rename)
//  4. Insert the undo group into undo.sqlite
//  5. Truncate the WAL
//
// If Commit fails after step 2, the next Begin or Load replays the WAL.
type Tx struct {
	store  *Store
	lock   *fs.Lock
	snap   *Snapshot
	before map[string]*task.Record // state at first touch, nil when absent
	order  []string                // UUIDs in first-touch order
	closed bool
}

// Meta describes the command a commit belongs to. It becomes the undo group
// header.
type Meta struct {
	Command string

	kind    GroupKind
	reverts int64
}

// Begin takes the lock with a bounded wait ([ErrBusy] past it), recovers the
// WAL and loads a fresh snapshot.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	lock, err := s.lock(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}

	err = s.recoverWalLocked(ctx)
	if err != nil {
		_ = lock.Close()

		return nil, fmt.Errorf("begin: %w", err)
	}

	snap, err := s.readSnapshot()
	if err != nil {
		_ = lock.Close()

		return nil, fmt.Errorf("begin: %w", err)
	}

	return &Tx{
		store:  s,
		lock:   lock,
		snap:   snap,
		before: make(map[string]*task.Record),
	}, nil
}

// Snapshot returns the live snapshot, including this Tx's writes.
func (tx *Tx) Snapshot() *Snapshot {
	return tx.snap
}

// Add inserts a new record. The record is validated and copied; on success
// r's positional id is set to the one it received.
func (tx *Tx) Add(r *task.Record) error {
	if tx.closed {
		return fmt.Errorf("add: %w", ErrTxClosed)
	}

	err := r.Validate()
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}

	if _, exists := tx.snap.byUUID[r.UUID()]; exists {
		return fmt.Errorf("add %s: %w", r.UUID(), ErrExists)
	}

	tx.put(r)

	return nil
}

// Modify replaces an existing record with r. The record is validated and
// copied; the caller may keep mutating r without affecting the Tx.
func (tx *Tx) Modify(r *task.Record) error {
	if tx.closed {
		return fmt.Errorf("modify: %w", ErrTxClosed)
	}

	err := r.Validate()
	if err != nil {
		return fmt.Errorf("modify: %w", err)
	}

	if _, exists := tx.snap.byUUID[r.UUID()]; !exists {
		return fmt.Errorf("modify %s: %w", r.UUID(), ErrNotFound)
	}

	tx.put(r)

	return nil
}

// restore sets the record with UUID id to state, removing it when state is
// nil. Undo uses it to put back states that were valid when recorded.
func (tx *Tx) restore(id string, state *task.Record) {
	tx.touch(id)

	if state == nil {
		tx.snap.remove(id)

		return
	}

	tx.snap.put(state.Clone())
}

func (tx *Tx) put(r *task.Record) {
	tx.touch(r.UUID())

	stored := r.Clone()
	tx.snap.put(stored)
	r.SetID(stored.ID())
}

func (tx *Tx) touch(id string) {
	if _, seen := tx.before[id]; seen {
		return
	}

	var prev *task.Record
	if cur, ok := tx.snap.byUUID[id]; ok {
		prev = cur.Clone()
	}

	tx.before[id] = prev
	tx.order = append(tx.order, id)
}

// Changes returns the net change per touched record in first-touch order.
// Records written back unchanged are omitted.
func (tx *Tx) Changes() []Entry {
	var out []Entry

	for _, id := range tx.order {
		before := tx.before[id]
		after := tx.snap.byUUID[id]

		switch {
		case before == nil && after == nil:
			continue
		case before != nil && after != nil && before.SameAttrs(after):
			continue
		}

		e := Entry{UUID: id, Before: before}
		if after != nil {
			e.After = after.Clone()
		}

		out = append(out, e)
	}

	return out
}

// Commit persists the Tx atomically as one undo group and releases the lock.
// A Tx without net changes commits nothing and creates no group.
func (tx *Tx) Commit(ctx context.Context, meta Meta) error {
	if ctx == nil {
		return errors.New("commit: context is nil")
	}

	if tx.closed {
		return fmt.Errorf("commit: %w", ErrTxClosed)
	}

	tx.closed = true

	defer func() {
		_ = tx.lock.Close()
	}()

	changes := tx.Changes()
	if len(changes) == 0 {
		return nil
	}

	ops, err := tx.buildOps(ctx, meta, changes)
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s := tx.store

	err = writeWAL(s.wal, ops)
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	err = s.applyOps(ctx, ops)
	if err != nil {
		// Committed: the next Begin or Load replays the WAL.
		return fmt.Errorf("commit: %w", err)
	}

	err = truncateWal(s.wal)
	if err != nil {
		return fmt.Errorf("commit: truncate wal: %w", err)
	}

	s.log.Debug("committed", "command", meta.Command, "kind", groupKind(meta), "records", len(changes))

	return nil
}

// Rollback discards the Tx and releases the lock. Safe to call repeatedly
// and after Commit.
func (tx *Tx) Rollback() error {
	if tx == nil || tx.closed {
		return nil
	}

	tx.closed = true

	err := tx.lock.Close()
	if err != nil {
		return fmt.Errorf("rollback: unlock: %w", err)
	}

	return nil
}

func (tx *Tx) buildOps(ctx context.Context, meta Meta, changes []Entry) ([]walOp, error) {
	s := tx.store

	groupSeq, entrySeq, err := s.journal.nextSeqs(ctx)
	if err != nil {
		return nil, err
	}

	dirty := make(map[string]bool)

	for _, c := range changes {
		if c.Before != nil {
			dirty[fileFor(c.Before.Status())] = true
		}

		if c.After != nil {
			dirty[fileFor(c.After.Status())] = true
		}
	}

	var ops []walOp

	for _, file := range []string{pendingFile, completedFile} {
		if !dirty[file] {
			continue
		}

		records := tx.snap.pending
		if file == completedFile {
			records = tx.snap.completed
		}

		content, err := encodeCollection(records)
		if err != nil {
			return nil, err
		}

		ops = append(ops, walOp{Op: walOpWrite, Path: file, Content: string(content)})
	}

	backlog, err := tx.backlog(changes)
	if err != nil {
		return nil, err
	}

	ops = append(ops,
		walOp{Op: walOpWrite, Path: backlogFile, Content: backlog},
		walOp{
			Op:      walOpGroup,
			Seq:     groupSeq,
			Kind:    string(groupKind(meta)),
			Reverts: meta.reverts,
			Command: meta.Command,
			At:      s.now().UnixNano(),
		},
	)

	for i, c := range changes {
		before, err := encodeState(c.Before)
		if err != nil {
			return nil, fmt.Errorf("encode undo entry %s: %w", c.UUID, err)
		}

		after, err := encodeState(c.After)
		if err != nil {
			return nil, fmt.Errorf("encode undo entry %s: %w", c.UUID, err)
		}

		ops = append(ops, walOp{
			Op:     walOpEntry,
			Seq:    entrySeq + int64(i),
			Group:  groupSeq,
			UUID:   c.UUID,
			Before: before,
			After:  after,
		})
	}

	return ops, nil
}

// backlog returns the backlog file with the new states of changes appended.
// The full content goes into the WAL so replay stays idempotent.
func (tx *Tx) backlog(changes []Entry) (string, error) {
	s := tx.store

	existing, err := s.fs.ReadFile(filepath.Join(s.dir, backlogFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("read backlog: %w", err)
	}

	var states []*task.Record

	for _, c := range changes {
		if c.After != nil {
			states = append(states, c.After)
		}
	}

	appended, err := encodeCollection(states)
	if err != nil {
		return "", err
	}

	return string(existing) + string(appended), nil
}

func groupKind(meta Meta) GroupKind {
	if meta.kind == "" {
		return GroupCommand
	}

	return meta.kind
}
