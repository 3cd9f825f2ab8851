// Package mutation is the single path for editing tasks. A [Coordinator]
// selects records with a filter, asks for confirmation per record, offers
// recurring edits to siblings and commits everything accepted as one undo
// group.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/calvinalkan/taskstore/internal/filter"
	"github.com/calvinalkan/taskstore/internal/recur"
	"github.com/calvinalkan/taskstore/internal/store"
	"github.com/calvinalkan/taskstore/internal/task"
)

const emptyFilterQuestion = "This command has no filter, and will modify all (including completed and deleted) tasks.  Are you sure?"

// Coordinator runs editing operations against a store. Only Store is
// required: a nil Engine expands with defaults, a nil Confirmer accepts
// everything, a nil Reporter discards, an empty Policy prompts.
type Coordinator struct {
	Store     *store.Store
	Engine    *recur.Engine
	Confirmer Confirmer
	Reporter  Reporter
	Policy    recur.Policy
	Clock     func() time.Time
	Logger    *slog.Logger
}

// Result is the outcome of one command. Code is 0 when every selected record
// was changed (or needed no change) and 1 otherwise.
type Result struct {
	Code     int
	Affected int
}

// run holds the state of one Run call.
type run struct {
	c    *Coordinator
	op   Operation
	mods Modifications
	tx   *store.Tx
	now  time.Time

	code      int
	affected  int
	touched   map[string]bool
	propagate *bool
	stop      bool
}

// Run applies op to the records selected by req.Filter.
//
// Capability and filter syntax errors return before the store is touched.
// Per-record problems (validation failures, declines) skip the record and
// set Code to 1. Everything accepted is committed once, as one undo group
// named after op; if nothing was accepted the store is left unchanged.
func (c *Coordinator) Run(ctx context.Context, req Request, op Operation) (Result, error) {
	fail := Result{Code: 1}

	if c.Store == nil {
		return fail, errNoStore
	}

	if len(req.Filter) > 0 && !op.AcceptsFilter {
		return fail, fmt.Errorf("%s: %w", op.Name, ErrFilterNotAccepted)
	}

	if len(req.Modifications) > 0 && !op.AcceptsModifications {
		return fail, fmt.Errorf("%s: %w", op.Name, ErrModificationsNotAccepted)
	}

	now := c.now()
	mods := ParseModifications(req.Modifications, now)

	if op.NeedsModifications && mods.Empty() {
		return fail, fmt.Errorf("%s: %w", op.Name, ErrNoModifications)
	}

	f, err := filter.Compile(req.Filter, now)
	if err != nil {
		return fail, err
	}

	if f.Empty() && op.AcceptsFilter {
		if c.confirmer().Ask(emptyFilterQuestion, nil) != Accept {
			c.reporter().Footnote("Command prevented from running.")

			return fail, nil
		}
	}

	tx, err := c.Store.Begin(ctx)
	if err != nil {
		return fail, err
	}

	defer func() { _ = tx.Rollback() }()

	_, err = c.engine().Expand(tx, now)
	if err != nil {
		return fail, err
	}

	subset := filter.Subset(tx.Snapshot().All(), f)
	if len(subset) == 0 {
		c.reporter().Footnote("No tasks specified.")

		return fail, nil
	}

	if len(subset) > 1 {
		c.reporter().Feedback(fmt.Sprintf("This command will alter %d tasks.", len(subset)))
	}

	r := &run{
		c:       c,
		op:      op,
		mods:    mods,
		tx:      tx,
		now:     now,
		touched: make(map[string]bool),
	}

	for _, selected := range subset {
		if err := ctx.Err(); err != nil {
			c.log().Info("run canceled", "command", op.Name, "cause", context.Cause(ctx))

			r.code = 1

			break
		}

		err = r.apply(selected.UUID())
		if err != nil {
			return fail, err
		}

		if r.stop {
			break
		}
	}

	c.reporter().Feedback(op.summary(r.affected))

	if r.affected == 0 {
		return Result{Code: 1}, nil
	}

	// Records already accepted are committed even if ctx was canceled.
	err = tx.Commit(context.WithoutCancel(ctx), store.Meta{Command: op.Name})
	if err != nil {
		return fail, err
	}

	c.log().Debug("command committed", "command", op.Name, "affected", r.affected, "code", r.code)

	return Result{Code: r.code, Affected: r.affected}, nil
}

// apply runs the operation on one selected record.
func (r *run) apply(id string) error {
	if r.touched[id] {
		return nil
	}

	cur, err := r.tx.Snapshot().Get(id)
	if err != nil {
		return err
	}

	after := cur.Clone()

	err = r.op.Mutate(after, r.mods)
	if skip(err) {
		r.c.reporter().Feedback(err.Error())
		r.code = 1

		return nil
	}

	if err != nil {
		return err
	}

	changes := cur.Diff(after)
	if len(changes) == 0 {
		return nil
	}

	err = after.Validate()
	if skip(err) {
		r.c.reporter().Feedback(err.Error())
		r.code = 1

		return nil
	}

	if err != nil {
		return err
	}

	switch r.c.confirmer().Ask(r.op.question(cur), changes) {
	case Accept:
	case DeclineAndStop:
		r.c.reporter().Feedback(r.op.Declined)
		r.code = 1
		r.stop = true

		return nil
	default:
		r.c.reporter().Feedback(r.op.Declined)
		r.code = 1

		return nil
	}

	err = r.commitRecord(after)
	if skip(err) {
		r.c.reporter().Feedback(err.Error())
		r.code = 1

		return nil
	}

	if err != nil {
		return err
	}

	r.touched[id] = true
	r.affected++
	r.c.reporter().Feedback(fmt.Sprintf("%s task %s '%s'.", r.op.Progress, after.Identifier(), after.Description()))

	if r.op.Propagates && cur.IsInstance() && len(recur.SharedChanges(changes)) > 0 && r.shouldPropagate(changes) {
		return r.propagateFrom(after)
	}

	return nil
}

func (r *run) commitRecord(after *task.Record) error {
	err := after.SetDate(task.AttrModified, r.now)
	if err != nil {
		return err
	}

	return r.tx.Modify(after)
}

// shouldPropagate applies the policy; prompt asks once per command.
func (r *run) shouldPropagate(changes []task.Change) bool {
	switch r.c.Policy {
	case recur.PolicyAlways:
		return true
	case recur.PolicyNever:
		return false
	}

	if r.propagate == nil {
		yes := r.c.confirmer().Ask(r.op.recurrenceQuestion(), recur.SharedChanges(changes)) == Accept
		r.propagate = &yes
	}

	return *r.propagate
}

// propagateFrom runs the operation on every sibling of inst and on its
// template, keeping only the shared part of each result. Siblings count as
// affected; the template does not. A missing template is skipped.
func (r *run) propagateFrom(inst *task.Record) error {
	for _, sib := range r.tx.Snapshot().Siblings(inst) {
		if r.touched[sib.UUID()] {
			continue
		}

		changed, err := r.applyShared(sib)
		if err != nil {
			return err
		}

		if !changed {
			continue
		}

		r.affected++

		updated, _ := r.tx.Snapshot().Get(sib.UUID())
		r.c.reporter().Feedback(fmt.Sprintf("%s recurring task %s '%s'.", r.op.Progress, updated.Identifier(), updated.Description()))
	}

	tmpl, err := r.tx.Snapshot().Get(inst.Parent())
	if errors.Is(err, store.ErrNotFound) {
		r.c.log().Warn("template of instance not found", "uuid", inst.UUID(), "parent", inst.Parent())

		return nil
	}

	if err != nil {
		return err
	}

	if r.touched[tmpl.UUID()] {
		return nil
	}

	_, err = r.applyShared(tmpl)

	return err
}

// applyShared mutates target with the operation and commits the shared
// changes only. Records that reject the mutation are skipped with a log.
func (r *run) applyShared(target *task.Record) (bool, error) {
	r.touched[target.UUID()] = true

	trial := target.Clone()

	err := r.op.Mutate(trial, r.mods)
	if skip(err) {
		r.c.log().Warn("propagation skipped", "uuid", target.UUID(), "err", err)

		return false, nil
	}

	if err != nil {
		return false, err
	}

	shared := recur.SharedChanges(target.Diff(trial))
	if len(shared) == 0 {
		return false, nil
	}

	updated := target.Clone()

	err = recur.Apply(updated, shared)
	if err == nil {
		err = r.commitRecord(updated)
	}

	if skip(err) {
		r.c.log().Warn("propagation skipped", "uuid", target.UUID(), "err", err)

		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}

// skip reports whether err only rejects the current record.
func skip(err error) bool {
	if err == nil {
		return false
	}

	var verr *task.ValidationError

	return errors.As(err, &verr) || errors.Is(err, ErrNotApplicable)
}

// Add creates r in one undo group. A recurring template is expanded in the
// same commit, so its first instances exist right away.
func (c *Coordinator) Add(ctx context.Context, r *task.Record) (Result, error) {
	fail := Result{Code: 1}

	if c.Store == nil {
		return fail, errNoStore
	}

	now := c.now()

	tx, err := c.Store.Begin(ctx)
	if err != nil {
		return fail, err
	}

	defer func() { _ = tx.Rollback() }()

	_, err = c.engine().Expand(tx, now)
	if err != nil {
		return fail, err
	}

	err = tx.Add(r)
	if err != nil {
		return fail, err
	}

	if r.IsTemplate() {
		_, err = c.engine().Expand(tx, now)
		if err != nil {
			return fail, err
		}
	}

	err = tx.Commit(ctx, store.Meta{Command: "add"})
	if err != nil {
		return fail, err
	}

	if r.IsTemplate() {
		c.reporter().Feedback(fmt.Sprintf("Created task %s (recurrence template).", r.Identifier()))
	} else {
		c.reporter().Feedback(fmt.Sprintf("Created task %s.", r.Identifier()))
	}

	return Result{Affected: 1}, nil
}

// Refresh expands recurring templates and commits the generated instances
// as their own "recur" undo group, then returns a fresh snapshot. Nothing is
// written when no template needed work.
func (c *Coordinator) Refresh(ctx context.Context) (*store.Snapshot, error) {
	if c.Store == nil {
		return nil, errNoStore
	}

	tx, err := c.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}

	defer func() { _ = tx.Rollback() }()

	_, err = c.engine().Expand(tx, c.now())
	if err != nil {
		return nil, err
	}

	err = tx.Commit(ctx, store.Meta{Command: "recur"})
	if err != nil {
		return nil, err
	}

	return c.Store.Load(ctx)
}

// Undo reverts the latest group. An empty log is reported, not returned.
func (c *Coordinator) Undo(ctx context.Context) (Result, error) {
	if c.Store == nil {
		return Result{Code: 1}, errNoStore
	}

	group, err := c.Store.Undo(ctx)
	if errors.Is(err, store.ErrNothingToUndo) {
		c.reporter().Footnote("No operations to undo.")

		return Result{Code: 1}, nil
	}

	if err != nil {
		return Result{Code: 1}, err
	}

	n := len(group.Entries)
	c.reporter().Feedback(fmt.Sprintf("Undid '%s' (%d %s).", group.Command, n, tasks(n)))

	return Result{Affected: n}, nil
}

// Redo reverts the latest undo. An empty redo stack is reported, not
// returned.
func (c *Coordinator) Redo(ctx context.Context) (Result, error) {
	if c.Store == nil {
		return Result{Code: 1}, errNoStore
	}

	group, err := c.Store.Redo(ctx)
	if errors.Is(err, store.ErrNothingToRedo) {
		c.reporter().Footnote("No operations to redo.")

		return Result{Code: 1}, nil
	}

	if err != nil {
		return Result{Code: 1}, err
	}

	n := len(group.Entries)
	c.reporter().Feedback(fmt.Sprintf("Redid the last undo (%d %s).", n, tasks(n)))

	return Result{Affected: n}, nil
}

func tasks(n int) string {
	if n == 1 {
		return "task"
	}

	return "tasks"
}

func (c *Coordinator) now() time.Time {
	if c.Clock == nil {
		return time.Now()
	}

	return c.Clock()
}

func (c *Coordinator) engine() *recur.Engine {
	if c.Engine == nil {
		return &recur.Engine{Logger: c.Logger}
	}

	return c.Engine
}

func (c *Coordinator) confirmer() Confirmer {
	if c.Confirmer == nil {
		return AlwaysAccept{}
	}

	return c.Confirmer
}

func (c *Coordinator) reporter() Reporter {
	if c.Reporter == nil {
		return Discard{}
	}

	return c.Reporter
}

func (c *Coordinator) log() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return c.Logger
}
