// Package task defines the task record: a stable UUID plus a mapping of
// attribute names to string values whose meaning depends on the attribute's
// [Kind].
//
// A Record validates on every write but records nothing about its own
// history. Callers that need to know what changed take a [Record.Clone]
// before mutating and compare with [Record.Diff].
package task

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Record is a single task. The zero value is not usable; create records with
// [New] or [FromMap].
type Record struct {
	attrs map[string]string

	// id is the positional id within the current pending-set snapshot.
	// It is never persisted and means nothing across processes.
	id int
}

// New returns a pending record with a fresh UUIDv7 and entry set to now.
// The description is still empty, so [Record.Validate] fails until the
// caller sets one.
func New(now time.Time) (*Record, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate uuid: %w", err)
	}

	return &Record{
		attrs: map[string]string{
			AttrUUID:   id.String(),
			AttrStatus: string(StatusPending),
			AttrEntry:  FormatEpoch(now),
		},
	}, nil
}

// FromMap builds a record from persisted attributes. Every value is
// validated and normalized; uuid and status are required.
func FromMap(m map[string]string) (*Record, error) {
	if m[AttrUUID] == "" {
		return nil, invalid(AttrUUID, "", ErrRequired)
	}

	if m[AttrStatus] == "" {
		return nil, invalid(AttrStatus, "", ErrRequired)
	}

	r := &Record{attrs: make(map[string]string, len(m))}

	for _, name := range slices.Sorted(maps.Keys(m)) {
		if !ValidName(name) {
			return nil, invalid(name, "", ErrInvalidName)
		}

		if m[name] == "" {
			continue
		}

		value, err := normalize(name, m[name])
		if err != nil {
			return nil, err
		}

		r.attrs[name] = value
	}

	return r, nil
}

// UUID returns the immutable identifier.
func (r *Record) UUID() string {
	return r.attrs[AttrUUID]
}

// ID returns the positional id, or 0 when the record is outside the pending
// set of the current snapshot.
func (r *Record) ID() int {
	return r.id
}

// SetID assigns the positional id. Only snapshots call this.
func (r *Record) SetID(id int) {
	r.id = id
}

// Identifier returns the positional id when present, otherwise the short
// (8 character) UUID.
func (r *Record) Identifier() string {
	if r.id > 0 {
		return strconv.Itoa(r.id)
	}

	return ShortUUID(r.UUID())
}

// ShortUUID returns the first 8 characters of id.
func ShortUUID(id string) string {
	if len(id) < 8 {
		return id
	}

	return id[:8]
}

// Get returns the stored value of name, or "" when absent.
func (r *Record) Get(name string) string {
	return r.attrs[name]
}

// Has reports whether name is set.
func (r *Record) Has(name string) bool {
	_, ok := r.attrs[name]

	return ok
}

// Set validates value against the kind of name and stores its normalized
// form. An empty value removes the attribute (see [Record.Remove]).
// Failures return a [*ValidationError] naming the attribute.
func (r *Record) Set(name, value string) error {
	if !ValidName(name) {
		return invalid(name, value, ErrInvalidName)
	}

	if value == "" {
		return r.Remove(name)
	}

	norm, err := normalize(name, value)
	if err != nil {
		return err
	}

	switch name {
	case AttrUUID:
		if cur := r.attrs[AttrUUID]; cur != "" && cur != norm {
			return invalid(name, value, ErrImmutable)
		}
	case AttrParent:
		if norm == r.UUID() {
			return invalid(name, value, ErrParentIsItself)
		}
	case AttrDepends:
		if slices.Contains(strings.Split(norm, ","), r.UUID()) {
			return invalid(name, value, ErrSelfReference)
		}
	}

	r.attrs[name] = norm

	return nil
}

// Remove deletes name. uuid, status and description cannot be removed.
func (r *Record) Remove(name string) error {
	switch name {
	case AttrUUID:
		return invalid(name, "", ErrImmutable)
	case AttrStatus, AttrDescription:
		return invalid(name, "", ErrEmptyValue)
	}

	delete(r.attrs, name)

	return nil
}

// Validate checks the cross-attribute rules a record must satisfy before it
// is committed.
func (r *Record) Validate() error {
	if r.UUID() == "" {
		return invalid(AttrUUID, "", ErrRequired)
	}

	if r.Status() == "" {
		return invalid(AttrStatus, "", ErrRequired)
	}

	if r.Get(AttrDescription) == "" {
		return invalid(AttrDescription, "", ErrRequired)
	}

	if r.Get(AttrEntry) == "" {
		return invalid(AttrEntry, "", ErrRequired)
	}

	if r.Status() == StatusRecurring && (r.Get(AttrRecur) == "" || r.Get(AttrDue) == "") {
		return invalid(AttrRecur, r.Get(AttrRecur), ErrMissingPeriod)
	}

	return nil
}

// Status returns the record status.
func (r *Record) Status() Status {
	return Status(r.attrs[AttrStatus])
}

// SetStatus sets the status.
func (r *Record) SetStatus(s Status) error {
	return r.Set(AttrStatus, string(s))
}

// Description returns the description.
func (r *Record) Description() string {
	return r.attrs[AttrDescription]
}

// Parent returns the template UUID of an instance, or "".
func (r *Record) Parent() string {
	return r.attrs[AttrParent]
}

// IsTemplate reports whether r is a recurring template.
func (r *Record) IsTemplate() bool {
	return r.Status() == StatusRecurring
}

// IsInstance reports whether r was spawned from a template.
func (r *Record) IsInstance() bool {
	return r.attrs[AttrParent] != ""
}

// Date returns the value of a date attribute. ok is false when the attribute
// is absent.
func (r *Record) Date(name string) (time.Time, bool) {
	v, ok := r.attrs[name]
	if !ok {
		return time.Time{}, false
	}

	t, err := ParseAbsoluteDate(v)
	if err != nil {
		return time.Time{}, false
	}

	return t, true
}

// SetDate stores t in a date attribute.
func (r *Record) SetDate(name string, t time.Time) error {
	if KindOf(name) != KindDate {
		return invalid(name, t.String(), ErrInvalidDate)
	}

	return r.Set(name, FormatEpoch(t))
}

// Period returns the parsed recur attribute.
func (r *Record) Period() (Period, bool) {
	v := r.attrs[AttrRecur]
	if v == "" {
		return Period{}, false
	}

	p, err := ParsePeriod(v)
	if err != nil {
		return Period{}, false
	}

	return p, true
}

// Tags returns the sorted tag set.
func (r *Record) Tags() []string {
	return splitSet(r.attrs[AttrTags])
}

// HasTag reports whether tag is in the tag set.
func (r *Record) HasTag(tag string) bool {
	return slices.Contains(r.Tags(), tag)
}

// AddTag adds tag to the tag set.
func (r *Record) AddTag(tag string) error {
	if tag == "" {
		return invalid(AttrTags, tag, ErrEmptyValue)
	}

	return r.Set(AttrTags, strings.Join(append(r.Tags(), tag), ","))
}

// RemoveTag removes tag from the tag set. Removing an absent tag is a no-op.
func (r *Record) RemoveTag(tag string) error {
	tags := slices.DeleteFunc(r.Tags(), func(t string) bool { return t == tag })

	return r.Set(AttrTags, strings.Join(tags, ","))
}

// Depends returns the UUIDs r depends on.
func (r *Record) Depends() []string {
	return splitSet(r.attrs[AttrDepends])
}

// Names returns the set attribute names, sorted.
func (r *Record) Names() []string {
	return slices.Sorted(maps.Keys(r.attrs))
}

// Attrs returns a copy of the attribute map.
func (r *Record) Attrs() map[string]string {
	return maps.Clone(r.attrs)
}

// Clone returns a deep copy, positional id included.
func (r *Record) Clone() *Record {
	return &Record{attrs: maps.Clone(r.attrs), id: r.id}
}

// Equal reports whether r and other are the same task. Identity is the UUID
// alone; attribute values are not compared.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}

	return r.UUID() == other.UUID()
}

// SameAttrs reports whether r and other hold identical attributes.
func (r *Record) SameAttrs(other *Record) bool {
	return maps.Equal(r.attrs, other.attrs)
}

// MarshalJSON encodes the attribute map. Keys are sorted, so the encoding of
// a record is deterministic.
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.attrs)
}

// UnmarshalJSON decodes and validates an attribute map.
func (r *Record) UnmarshalJSON(data []byte) error {
	var m map[string]string

	err := json.Unmarshal(data, &m)
	if err != nil {
		return err
	}

	rec, err := FromMap(m)
	if err != nil {
		return err
	}

	*r = *rec

	return nil
}

func splitSet(v string) []string {
	if v == "" {
		return nil
	}

	return strings.Split(v, ",")
}
