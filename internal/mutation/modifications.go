package mutation

import (
	"strings"
	"time"

	"github.com/calvinalkan/taskstore/internal/task"
)

// AttrMod sets (or, with an empty Value, removes) one attribute.
type AttrMod struct {
	Name  string
	Value string
}

// Modifications is the parsed modification part of a command line:
//
//	project:home   set an attribute (project: removes it)
//	+next          add a tag
//	-next          remove a tag
//	anything else  description text
type Modifications struct {
	Attrs      []AttrMod
	AddTags    []string
	RemoveTags []string
	Words      []string

	now time.Time
}

// ParseModifications splits tokens into modifications. Named dates
// (due:tomorrow) resolve against now. Values are not validated here; a bad
// value fails when applied to a record, so it is reported per record.
func ParseModifications(tokens []string, now time.Time) Modifications {
	m := Modifications{now: now}

	for _, tok := range tokens {
		switch {
		case len(tok) > 1 && tok[0] == '+' && !strings.ContainsAny(tok, " \t"):
			m.AddTags = append(m.AddTags, tok[1:])
		case len(tok) > 1 && tok[0] == '-' && !isDigit(tok[1]) && !strings.ContainsAny(tok, " \t"):
			m.RemoveTags = append(m.RemoveTags, tok[1:])
		default:
			if mod, ok := parseAttrMod(tok, now); ok {
				m.Attrs = append(m.Attrs, mod)

				continue
			}

			m.Words = append(m.Words, tok)
		}
	}

	return m
}

func parseAttrMod(tok string, now time.Time) (AttrMod, bool) {
	name, value, ok := strings.Cut(tok, ":")
	if !ok || !task.ValidName(name) || strings.HasPrefix(value, "//") {
		return AttrMod{}, false
	}

	if task.KindOf(name) == task.KindDate && value != "" {
		if t, err := task.ParseDate(value, now); err == nil {
			value = task.FormatEpoch(t)
		}
	}

	return AttrMod{Name: name, Value: value}, true
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// Empty reports whether no modification was given.
func (m Modifications) Empty() bool {
	return len(m.Attrs) == 0 && len(m.AddTags) == 0 && len(m.RemoveTags) == 0 && len(m.Words) == 0
}

// Text returns the description words joined by spaces.
func (m Modifications) Text() string {
	return strings.Join(m.Words, " ")
}

// Now is the time the modifications were parsed at.
func (m Modifications) Now() time.Time {
	return m.now
}

// Apply writes attribute and tag modifications to r. Description text is
// left to the operation.
func (m Modifications) Apply(r *task.Record) error {
	for _, a := range m.Attrs {
		err := r.Set(a.Name, a.Value)
		if err != nil {
			return err
		}
	}

	for _, tag := range m.AddTags {
		err := r.AddTag(tag)
		if err != nil {
			return err
		}
	}

	for _, tag := range m.RemoveTags {
		err := r.RemoveTag(tag)
		if err != nil {
			return err
		}
	}

	return nil
}
