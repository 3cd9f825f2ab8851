// Package recur expands recurring templates into pending instances and
// decides which edits to an instance travel to its siblings.
//
// A template is a record with status recurring, a due date (the anchor) and a
// recur period. Instance i is due at period.Nth(anchor, i). The template's
// mask attribute holds one character per generated index:
//
//	-  pending
//	+  completed
//	X  deleted
//	W  waiting
//	?  unknown (slot padded while refreshing from instances)
//
// Every instance carries its index in imask. An index whose slot is set is
// never generated again, so expansion is idempotent.
package recur

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/calvinalkan/taskstore/internal/store"
	"github.com/calvinalkan/taskstore/internal/task"
)

// DefaultLimit is the number of future instances kept per template.
const DefaultLimit = 1

// maxSteps caps the indexes examined per template and expansion. A short
// interval anchored far in the past would otherwise spawn without bound.
const maxSteps = 10000

// Tx is the part of [store.Tx] the engine needs.
type Tx interface {
	Snapshot() *store.Snapshot
	Add(r *task.Record) error
	Modify(r *task.Record) error
}

// Engine generates instances. The zero value uses [DefaultLimit] and
// discards logs.
type Engine struct {
	// Limit is the number of instances due after now to keep per template.
	Limit int

	Logger *slog.Logger
}

// Report lists what one expansion did.
type Report struct {
	Created []*task.Record
	Retired []*task.Record
}

// Expand brings every template in tx up to date as of now: it refreshes
// masks from instance statuses, retires templates whose until has passed and
// creates the missing instances up to the horizon (every due date not after
// now plus Limit future ones, never beyond until).
func (e *Engine) Expand(tx Tx, now time.Time) (Report, error) {
	var rep Report

	for _, tmpl := range tx.Snapshot().Templates() {
		err := e.expandTemplate(tx, tmpl, now, &rep)
		if err != nil {
			return rep, fmt.Errorf("expand %s: %w", task.ShortUUID(tmpl.UUID()), err)
		}
	}

	if len(rep.Created) > 0 || len(rep.Retired) > 0 {
		e.log().Info("recurrence expanded", "created", len(rep.Created), "retired", len(rep.Retired))
	}

	return rep, nil
}

func (e *Engine) expandTemplate(tx Tx, tmpl *task.Record, now time.Time, rep *Report) error {
	anchor, hasDue := tmpl.Date(task.AttrDue)
	period, hasRecur := tmpl.Period()

	if !hasDue || !hasRecur {
		e.log().Warn("template without due or recur, skipped", "uuid", tmpl.UUID())

		return nil
	}

	until, hasUntil := tmpl.Date(task.AttrUntil)

	if hasUntil && until.Before(now) {
		return e.retire(tx, tmpl, now, rep)
	}

	instances := tx.Snapshot().Instances(tmpl.UUID())

	mask := []byte(tmpl.Get(task.AttrMask))
	held := make(map[int64]bool)

	for _, inst := range instances {
		if due, ok := inst.Date(task.AttrDue); ok && inst.Status().InPendingSet() {
			held[due.Unix()] = true
		}

		idx, ok := index(inst)
		if ok {
			mask = setSlot(mask, idx, slotFor(inst.Status()))
		}
	}

	future := 0
	limit := e.limit()
	capped := true

	for i := range maxSteps {
		due := period.Nth(anchor, i)

		if hasUntil && due.After(until) {
			capped = false

			break
		}

		if due.After(now) {
			future++

			if future > limit {
				capped = false

				break
			}
		}

		if i < len(mask) && mask[i] != '?' {
			continue
		}

		if held[due.Unix()] {
			mask = setSlot(mask, i, '-')

			continue
		}

		inst, err := spawn(tmpl, i, anchor, due, now)
		if err != nil {
			return err
		}

		err = tx.Add(inst)
		if err != nil {
			return err
		}

		held[due.Unix()] = true
		mask = setSlot(mask, i, slotFor(inst.Status()))
		rep.Created = append(rep.Created, inst)

		e.log().Debug("instance created", "template", tmpl.UUID(), "index", i, "due", due)
	}

	if capped {
		e.log().Warn("recurrence step cap reached", "template", tmpl.UUID(), "cap", maxSteps)
	}

	if string(mask) == tmpl.Get(task.AttrMask) {
		return nil
	}

	updated := tmpl.Clone()

	err := updated.Set(task.AttrMask, string(mask))
	if err != nil {
		return err
	}

	err = updated.SetDate(task.AttrModified, now)
	if err != nil {
		return err
	}

	return tx.Modify(updated)
}

// retire deletes a template whose until has passed. Instances stay as they
// are.
func (e *Engine) retire(tx Tx, tmpl *task.Record, now time.Time, rep *Report) error {
	updated := tmpl.Clone()

	err := updated.SetStatus(task.StatusDeleted)
	if err != nil {
		return err
	}

	for _, name := range []string{task.AttrEnd, task.AttrModified} {
		err = updated.SetDate(name, now)
		if err != nil {
			return err
		}
	}

	err = tx.Modify(updated)
	if err != nil {
		return err
	}

	rep.Retired = append(rep.Retired, updated)

	e.log().Info("template retired", "uuid", tmpl.UUID(), "until", tmpl.Get(task.AttrUntil))

	return nil
}

// notInherited lists the template attributes an instance does not copy.
// wait is copied shifted by the instance's distance from the anchor.
var notInherited = map[string]bool{
	task.AttrUUID:     true,
	task.AttrStatus:   true,
	task.AttrRecur:    true,
	task.AttrMask:     true,
	task.AttrUntil:    true,
	task.AttrEntry:    true,
	task.AttrModified: true,
	task.AttrWait:     true,
}

func spawn(tmpl *task.Record, idx int, anchor, due, now time.Time) (*task.Record, error) {
	inst, err := task.New(now)
	if err != nil {
		return nil, err
	}

	for name, value := range tmpl.Attrs() {
		if notInherited[name] {
			continue
		}

		err = inst.Set(name, value)
		if err != nil {
			return nil, err
		}
	}

	err = inst.Set(task.AttrParent, tmpl.UUID())
	if err != nil {
		return nil, err
	}

	err = inst.Set(task.AttrIMask, strconv.Itoa(idx))
	if err != nil {
		return nil, err
	}

	err = inst.SetDate(task.AttrDue, due)
	if err != nil {
		return nil, err
	}

	if wait, ok := tmpl.Date(task.AttrWait); ok {
		wait = wait.Add(due.Sub(anchor))

		err = inst.SetDate(task.AttrWait, wait)
		if err != nil {
			return nil, err
		}

		if wait.After(now) {
			err = inst.SetStatus(task.StatusWaiting)
			if err != nil {
				return nil, err
			}
		}
	}

	return inst, nil
}

func index(inst *task.Record) (int, bool) {
	v := inst.Get(task.AttrIMask)
	if v == "" {
		return 0, false
	}

	idx, err := strconv.Atoi(v)
	if err != nil || idx < 0 || idx >= maxSteps {
		return 0, false
	}

	return idx, true
}

func slotFor(st task.Status) byte {
	switch st {
	case task.StatusCompleted:
		return '+'
	case task.StatusDeleted:
		return 'X'
	case task.StatusWaiting:
		return 'W'
	default:
		return '-'
	}
}

func setSlot(mask []byte, i int, c byte) []byte {
	for len(mask) <= i {
		mask = append(mask, '?')
	}

	mask[i] = c

	return mask
}

func (e *Engine) limit() int {
	if e.Limit <= 0 {
		return DefaultLimit
	}

	return e.Limit
}

func (e *Engine) log() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return e.Logger
}
