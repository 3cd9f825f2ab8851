package store

import (
	"context"
	"fmt"
)

// stacks replays group headers into the current undo and redo stacks (tops
// last).
//
// A command group pushes onto the undo stack and clears the redo stack. An
// undo group pops its target from the undo stack and pushes itself onto the
// redo stack. A redo group pops its target from the redo stack and pushes
// itself onto the undo stack, so undoing a redo is an ordinary undo.
func stacks(groups []Group) ([]int64, []int64) {
	var undo, redo []int64

	for _, g := range groups {
		switch g.Kind {
		case GroupCommand:
			undo = append(undo, g.Seq)
			redo = nil
		case GroupUndo:
			undo = popIf(undo, g.Reverts)
			redo = append(redo, g.Seq)
		case GroupRedo:
			redo = popIf(redo, g.Reverts)
			undo = append(undo, g.Seq)
		}
	}

	return undo, redo
}

func popIf(stack []int64, seq int64) []int64 {
	if n := len(stack); n > 0 && stack[n-1] == seq {
		return stack[:n-1]
	}

	return stack
}

// Undo reverses the latest effective group through the normal commit path
// and records the reversal as a new group. Repeated calls walk backward
// through history. It returns the group that was reversed, or
// [ErrNothingToUndo].
func (s *Store) Undo(ctx context.Context) (*Group, error) {
	target, err := s.revertTop(ctx, GroupUndo)
	if err != nil {
		return nil, fmt.Errorf("undo: %w", err)
	}

	return target, nil
}

// Redo reverses the latest undo, as long as no new command was committed
// since. It returns the undo group that was reversed, or [ErrNothingToRedo].
func (s *Store) Redo(ctx context.Context) (*Group, error) {
	target, err := s.revertTop(ctx, GroupRedo)
	if err != nil {
		return nil, fmt.Errorf("redo: %w", err)
	}

	return target, nil
}

func (s *Store) revertTop(ctx context.Context, kind GroupKind) (*Group, error) {
	tx, err := s.Begin(ctx)
	if err != nil {
		return nil, err
	}

	defer func() { _ = tx.Rollback() }()

	groups, err := s.journal.groups(ctx)
	if err != nil {
		return nil, err
	}

	undo, redo := stacks(groups)

	stack, empty := undo, ErrNothingToUndo
	if kind == GroupRedo {
		stack, empty = redo, ErrNothingToRedo
	}

	if len(stack) == 0 {
		return nil, empty
	}

	top := stack[len(stack)-1]

	var target *Group

	for i := range groups {
		if groups[i].Seq == top {
			target = &groups[i]

			break
		}
	}

	err = s.journal.loadEntries(ctx, target)
	if err != nil {
		return nil, err
	}

	for i := len(target.Entries) - 1; i >= 0; i-- {
		e := target.Entries[i]

		s.warnIfDiverged(tx, e)
		tx.restore(e.UUID, e.Before)
	}

	err = tx.Commit(ctx, Meta{Command: string(kind), kind: kind, reverts: target.Seq})
	if err != nil {
		return nil, err
	}

	s.log.Info("reverted group", "kind", kind, "target", target.Seq, "command", target.Command, "records", len(target.Entries))

	return target, nil
}

// warnIfDiverged logs when a record no longer matches the state the group
// left it in. The revert still happens: the log is the source of truth.
func (s *Store) warnIfDiverged(tx *Tx, e Entry) {
	cur, ok := tx.snap.byUUID[e.UUID]

	var diverged bool

	switch {
	case e.After == nil:
		diverged = ok
	case !ok:
		diverged = true
	default:
		diverged = !cur.SameAttrs(e.After)
	}

	if diverged {
		s.log.Warn("record changed since the reverted group", "uuid", e.UUID)
	}
}
