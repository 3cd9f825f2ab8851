package mutation

import (
	"fmt"
	"strings"

	"github.com/calvinalkan/taskstore/internal/task"
)

// Request is what the dispatch layer hands to [Coordinator.Run].
type Request struct {
	Filter        []string
	Modifications []string
}

// Operation describes one editing command.
type Operation struct {
	// Name tags the undo group ("append").
	Name string

	// Verb is the imperative used in questions ("Append to").
	Verb string

	// Progress prefixes per-record feedback ("Appending to").
	Progress string

	// Past starts the summary line ("Appended").
	Past string

	// Declined is reported when the user declines a record.
	Declined string

	AcceptsFilter        bool
	AcceptsModifications bool

	// NeedsModifications rejects a request without modifications.
	NeedsModifications bool

	// Propagates offers the change to an instance's siblings and template.
	Propagates bool

	// Mutate edits a working copy. A *task.ValidationError or
	// ErrNotApplicable skips the record; any other error aborts the run.
	Mutate func(r *task.Record, mods Modifications) error

	// Question is asked before each record is changed. Nil uses
	// "<Verb> task <id> '<description>'?".
	Question func(r *task.Record) string
}

func (op Operation) question(r *task.Record) string {
	if op.Question != nil {
		return op.Question(r)
	}

	return fmt.Sprintf("%s task %s '%s'?", op.Verb, r.Identifier(), r.Description())
}

func (op Operation) recurrenceQuestion() string {
	return fmt.Sprintf("This is a recurring task.  Do you want to %s all pending recurrences of this same task?", strings.ToLower(op.Verb))
}

func (op Operation) summary(n int) string {
	if n == 1 {
		return fmt.Sprintf("%s %d task.", op.Past, n)
	}

	return fmt.Sprintf("%s %d tasks.", op.Past, n)
}

// Append adds the description words to the end of the description and
// applies the other modifications.
func Append() Operation {
	return Operation{
		Name:                 "append",
		Verb:                 "Append to",
		Progress:             "Appending to",
		Past:                 "Appended",
		Declined:             "Task not appended.",
		AcceptsFilter:        true,
		AcceptsModifications: true,
		NeedsModifications:   true,
		Propagates:           true,
		Mutate: func(r *task.Record, mods Modifications) error {
			if text := mods.Text(); text != "" {
				err := r.Set(task.AttrDescription, r.Description()+" "+text)
				if err != nil {
					return err
				}
			}

			return mods.Apply(r)
		},
	}
}

// Prepend adds the description words to the start of the description.
func Prepend() Operation {
	return Operation{
		Name:                 "prepend",
		Verb:                 "Prepend to",
		Progress:             "Prepending to",
		Past:                 "Prepended",
		Declined:             "Task not prepended.",
		AcceptsFilter:        true,
		AcceptsModifications: true,
		NeedsModifications:   true,
		Propagates:           true,
		Mutate: func(r *task.Record, mods Modifications) error {
			if text := mods.Text(); text != "" {
				err := r.Set(task.AttrDescription, text+" "+r.Description())
				if err != nil {
					return err
				}
			}

			return mods.Apply(r)
		},
	}
}

// Modify applies modifications; description words replace the description.
func Modify() Operation {
	return Operation{
		Name:                 "modify",
		Verb:                 "Modify",
		Progress:             "Modifying",
		Past:                 "Modified",
		Declined:             "Task not modified.",
		AcceptsFilter:        true,
		AcceptsModifications: true,
		NeedsModifications:   true,
		Propagates:           true,
		Mutate: func(r *task.Record, mods Modifications) error {
			if text := mods.Text(); text != "" {
				err := r.Set(task.AttrDescription, text)
				if err != nil {
					return err
				}
			}

			return mods.Apply(r)
		},
	}
}

// Done completes pending and waiting tasks.
func Done() Operation {
	return Operation{
		Name:                 "done",
		Verb:                 "Complete",
		Progress:             "Completing",
		Past:                 "Completed",
		Declined:             "Task not completed.",
		AcceptsFilter:        true,
		AcceptsModifications: true,
		Mutate: func(r *task.Record, mods Modifications) error {
			if st := r.Status(); st != task.StatusPending && st != task.StatusWaiting {
				return fmt.Errorf("task %s '%s' is neither pending nor waiting: %w", r.Identifier(), r.Description(), ErrNotApplicable)
			}

			err := mods.Apply(r)
			if err != nil {
				return err
			}

			return finish(r, task.StatusCompleted, mods)
		},
	}
}

// Delete marks tasks deleted. Deleting a template stops generation and
// leaves its instances alone.
func Delete() Operation {
	return Operation{
		Name:                 "delete",
		Verb:                 "Delete",
		Progress:             "Deleting",
		Past:                 "Deleted",
		Declined:             "Task not deleted.",
		AcceptsFilter:        true,
		AcceptsModifications: true,
		Mutate: func(r *task.Record, mods Modifications) error {
			if r.Status() == task.StatusDeleted {
				return fmt.Errorf("task %s '%s' is already deleted: %w", r.Identifier(), r.Description(), ErrNotApplicable)
			}

			err := mods.Apply(r)
			if err != nil {
				return err
			}

			return finish(r, task.StatusDeleted, mods)
		},
	}
}

func finish(r *task.Record, st task.Status, mods Modifications) error {
	err := r.SetStatus(st)
	if err != nil {
		return err
	}

	if !r.Has(task.AttrEnd) {
		err = r.SetDate(task.AttrEnd, mods.Now())
		if err != nil {
			return err
		}
	}

	return r.Remove(task.AttrStart)
}

// Operations maps command names to the built-in operations.
func Operations() map[string]Operation {
	return map[string]Operation{
		"append":  Append(),
		"prepend": Prepend(),
		"modify":  Modify(),
		"done":    Done(),
		"delete":  Delete(),
	}
}
