package recur

import (
	"errors"
	"fmt"
	"strings"

	"github.com/calvinalkan/taskstore/internal/task"
)

// ErrInvalidPolicy is returned by [ParsePolicy].
var ErrInvalidPolicy = errors.New("invalid recurrence confirmation policy")

// Policy decides whether an edit to an instance is applied to its siblings
// and template.
type Policy string

const (
	PolicyAlways Policy = "always"
	PolicyNever  Policy = "never"
	PolicyPrompt Policy = "prompt"
)

// ParsePolicy accepts always, never and prompt, plus the boolean spellings
// yes/no, true/false and on/off.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "always", "yes", "true", "on", "1":
		return PolicyAlways, nil
	case "never", "no", "false", "off", "0":
		return PolicyNever, nil
	case "prompt", "":
		return PolicyPrompt, nil
	default:
		return "", fmt.Errorf("%w: %q (want always, never or prompt)", ErrInvalidPolicy, s)
	}
}

// local attributes belong to one record and never propagate.
var local = map[string]bool{
	task.AttrUUID:     true,
	task.AttrStatus:   true,
	task.AttrDue:      true,
	task.AttrParent:   true,
	task.AttrIMask:    true,
	task.AttrMask:     true,
	task.AttrEntry:    true,
	task.AttrModified: true,
	task.AttrEnd:      true,
	task.AttrStart:    true,
	task.AttrWait:     true,
	task.AttrRecur:    true,
	task.AttrUntil:    true,
}

// Shared reports whether changes to attr propagate from an instance to its
// siblings and template.
func Shared(attr string) bool {
	return !local[attr]
}

// SharedChanges returns the subset of changes that propagate.
func SharedChanges(changes []task.Change) []task.Change {
	var out []task.Change

	for _, c := range changes {
		if Shared(c.Attr) {
			out = append(out, c)
		}
	}

	return out
}

// Apply writes the new side of each change to r. An empty New removes the
// attribute.
func Apply(r *task.Record, changes []task.Change) error {
	for _, c := range changes {
		err := r.Set(c.Attr, c.New)
		if err != nil {
			return err
		}
	}

	return nil
}
