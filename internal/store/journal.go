package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/calvinalkan/taskstore/internal/task"
)

// GroupKind says how an undo group came to be.
type GroupKind string

const (
	GroupCommand GroupKind = "command" // an ordinary mutating command
	GroupUndo    GroupKind = "undo"    // reversal of an earlier group
	GroupRedo    GroupKind = "redo"    // reversal of an undo group
)

// Group is one logical command in the undo log. Entries are in the order the
// command first touched each record.
type Group struct {
	Seq       int64
	Kind      GroupKind
	Reverts   int64 // target group for undo and redo, 0 otherwise
	Command   string
	CreatedAt time.Time
	Entries   []Entry
}

// Entry is the before and after state of one record. A nil Before is a
// creation, a nil After a removal.
type Entry struct {
	Seq    int64
	UUID   string
	Before *task.Record
	After  *task.Record
}

// journal is the undo log in undo.sqlite. Rows are only ever written from
// WAL ops, so the journal can never describe a state the collections did not
// reach.
type journal struct {
	db *sql.DB
}

// apply inserts the group and entry rows of a WAL. INSERT OR IGNORE keyed by
// sequence number makes replay idempotent.
func (j *journal) apply(ctx context.Context, ops []walOp) error {
	tx, err := j.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin txn: %w", err)
	}

	committed := false

	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, op := range ops {
		switch op.Op {
		case walOpGroup:
			_, err = tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO groups (seq, kind, reverts, command, created_at) VALUES (?, ?, ?, ?, ?)",
				op.Seq, op.Kind, nullInt(op.Reverts), op.Command, op.At)
			if err != nil {
				return fmt.Errorf("insert group %d: %w", op.Seq, err)
			}
		case walOpEntry:
			_, err = tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO entries (seq, group_seq, uuid, before, after) VALUES (?, ?, ?, ?, ?)",
				op.Seq, op.Group, op.UUID, nullString(op.Before), nullString(op.After))
			if err != nil {
				return fmt.Errorf("insert entry %d: %w", op.Seq, err)
			}
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	committed = true

	return nil
}

// nextSeqs returns the next group and entry sequence numbers.
func (j *journal) nextSeqs(ctx context.Context) (int64, int64, error) {
	var group, entry int64

	err := j.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM groups),
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM entries)
	`).Scan(&group, &entry)
	if err != nil {
		return 0, 0, fmt.Errorf("next sequence: %w", err)
	}

	return group, entry, nil
}

// groups returns every group header, oldest first, without entries.
func (j *journal) groups(ctx context.Context) ([]Group, error) {
	rows, err := j.db.QueryContext(ctx,
		"SELECT seq, kind, COALESCE(reverts, 0), command, created_at FROM groups ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}

	defer func() { _ = rows.Close() }()

	var out []Group

	for rows.Next() {
		var (
			g  Group
			at int64
		)

		err = rows.Scan(&g.Seq, &g.Kind, &g.Reverts, &g.Command, &at)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}

		g.CreatedAt = time.Unix(0, at)
		out = append(out, g)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}

	return out, nil
}

// loadEntries fills g.Entries in sequence order.
func (j *journal) loadEntries(ctx context.Context, g *Group) error {
	rows, err := j.db.QueryContext(ctx,
		"SELECT seq, uuid, COALESCE(before, ''), COALESCE(after, '') FROM entries WHERE group_seq = ? ORDER BY seq", g.Seq)
	if err != nil {
		return fmt.Errorf("query entries of group %d: %w", g.Seq, err)
	}

	defer func() { _ = rows.Close() }()

	g.Entries = g.Entries[:0]

	for rows.Next() {
		var (
			e             Entry
			before, after string
		)

		err = rows.Scan(&e.Seq, &e.UUID, &before, &after)
		if err != nil {
			return fmt.Errorf("scan entry: %w", err)
		}

		e.Before, err = decodeState(before)
		if err != nil {
			return fmt.Errorf("%w: undo entry %d: %w", ErrCorrupt, e.Seq, err)
		}

		e.After, err = decodeState(after)
		if err != nil {
			return fmt.Errorf("%w: undo entry %d: %w", ErrCorrupt, e.Seq, err)
		}

		g.Entries = append(g.Entries, e)
	}

	err = rows.Err()
	if err != nil {
		return fmt.Errorf("iterate entries: %w", err)
	}

	return nil
}

func encodeState(r *task.Record) (string, error) {
	if r == nil {
		return "", nil
	}

	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

func decodeState(s string) (*task.Record, error) {
	if s == "" {
		return nil, nil
	}

	var r task.Record

	err := json.Unmarshal([]byte(s), &r)
	if err != nil {
		return nil, err
	}

	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}
