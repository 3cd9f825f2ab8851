package store

import (
	"fmt"
	"slices"

	"github.com/calvinalkan/taskstore/internal/task"
)

// Snapshot is the in-memory materialization of the pending and completed
// collections.
//
// Natural order is the pending collection followed by the completed
// collection, each in file order. Records are shared with the snapshot:
// callers clone before mutating and write back through [Tx.Modify].
type Snapshot struct {
	pending   []*task.Record
	completed []*task.Record
	byUUID    map[string]*task.Record
	nextID    int
}

// newSnapshot places records by status, rejects duplicate UUIDs and assigns
// positional ids 1..n over the pending set.
func newSnapshot(pending, completed []*task.Record) (*Snapshot, error) {
	s := &Snapshot{
		byUUID: make(map[string]*task.Record, len(pending)+len(completed)),
		nextID: 1,
	}

	for _, group := range [][]*task.Record{pending, completed} {
		for _, r := range group {
			if _, dup := s.byUUID[r.UUID()]; dup {
				return nil, fmt.Errorf("%w: duplicate uuid %s", ErrCorrupt, r.UUID())
			}

			s.insert(r)
		}
	}

	return s, nil
}

func (s *Snapshot) insert(r *task.Record) {
	if r.Status().InPendingSet() {
		r.SetID(s.nextID)
		s.nextID++
		s.pending = append(s.pending, r)
	} else {
		s.completed = append(s.completed, r)
	}

	s.byUUID[r.UUID()] = r
}

// put replaces the record with r's UUID in place, or appends r when new.
// A record whose status moves it to the other collection is appended there.
// The positional id is kept for the lifetime of the snapshot.
func (s *Snapshot) put(r *task.Record) {
	old, ok := s.byUUID[r.UUID()]
	if !ok {
		s.insert(r)

		return
	}

	r.SetID(old.ID())

	if old.Status().InPendingSet() == r.Status().InPendingSet() {
		list := s.listFor(r.Status())
		(*list)[slices.Index(*list, old)] = r
		s.byUUID[r.UUID()] = r

		return
	}

	s.drop(old)

	if r.Status().InPendingSet() && r.ID() == 0 {
		r.SetID(s.nextID)
		s.nextID++
	}

	list := s.listFor(r.Status())
	*list = append(*list, r)
	s.byUUID[r.UUID()] = r
}

func (s *Snapshot) remove(id string) {
	if old, ok := s.byUUID[id]; ok {
		s.drop(old)
		delete(s.byUUID, id)
	}
}

func (s *Snapshot) drop(r *task.Record) {
	list := s.listFor(r.Status())
	*list = slices.DeleteFunc(*list, func(x *task.Record) bool { return x == r })
}

func (s *Snapshot) listFor(st task.Status) *[]*task.Record {
	if st.InPendingSet() {
		return &s.pending
	}

	return &s.completed
}

// Get returns the record with the given UUID, or ErrNotFound.
func (s *Snapshot) Get(id string) (*task.Record, error) {
	r, ok := s.byUUID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return r, nil
}

// ByID returns the record with positional id n, or ErrNotFound.
func (s *Snapshot) ByID(n int) (*task.Record, error) {
	for _, group := range [][]*task.Record{s.pending, s.completed} {
		for _, r := range group {
			if r.ID() == n && n > 0 {
				return r, nil
			}
		}
	}

	return nil, fmt.Errorf("%w: id %d", ErrNotFound, n)
}

// All returns every record in natural order.
func (s *Snapshot) All() []*task.Record {
	return slices.Concat(s.pending, s.completed)
}

// Pending returns the pending set (pending, waiting and recurring records)
// in natural order.
func (s *Snapshot) Pending() []*task.Record {
	return slices.Clone(s.pending)
}

// Templates returns the recurring templates in natural order.
func (s *Snapshot) Templates() []*task.Record {
	var out []*task.Record

	for _, r := range s.pending {
		if r.IsTemplate() {
			out = append(out, r)
		}
	}

	return out
}

// Instances returns every record spawned from the template with UUID
// parent, in natural order, whatever its status.
func (s *Snapshot) Instances(parent string) []*task.Record {
	var out []*task.Record

	for _, r := range s.All() {
		if r.Parent() == parent {
			out = append(out, r)
		}
	}

	return out
}

// Siblings returns the pending-set instances (pending or waiting) sharing
// r's parent, excluding r, in natural order. A record without a parent has
// no siblings.
func (s *Snapshot) Siblings(r *task.Record) []*task.Record {
	parent := r.Parent()
	if parent == "" {
		return nil
	}

	var out []*task.Record

	for _, x := range s.pending {
		if x.Parent() == parent && !x.Equal(r) {
			out = append(out, x)
		}
	}

	return out
}

// Len returns the number of records.
func (s *Snapshot) Len() int {
	return len(s.byUUID)
}
