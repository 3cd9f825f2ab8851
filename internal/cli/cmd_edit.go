package cli

import (
	"context"
	"errors"

	"github.com/calvinalkan/taskstore/internal/mutation"
	"github.com/calvinalkan/taskstore/internal/task"
)

var errDescriptionRequired = errors.New("a description is required")

// AddCmd returns the add command.
func AddCmd(s *session) *Command {
	return &Command{
		Usage: "add <description> [mods]",
		Short: "Add a task",
		Long: `Add a task. Words become the description, attr:value pairs and +tag set
attributes. A task with recur: and due: is a recurring template; its first
instances are created right away.`,
		Exec: func(ctx context.Context, o *IO, _, args []string) error {
			return execAdd(ctx, o, s, args)
		},
	}
}

func execAdd(ctx context.Context, o *IO, s *session, args []string) error {
	terms, err := s.contextTerms()
	if err != nil {
		return err
	}

	now := s.clock()
	mods := mutation.ParseModifications(append(terms, args...), now)

	if mods.Text() == "" {
		return errDescriptionRequired
	}

	r, err := task.New(now)
	if err != nil {
		return err
	}

	err = r.Set(task.AttrDescription, mods.Text())
	if err != nil {
		return err
	}

	err = mods.Apply(r)
	if err != nil {
		return err
	}

	if r.Has(task.AttrRecur) {
		err = r.SetStatus(task.StatusRecurring)
		if err != nil {
			return err
		}
	} else if wait, ok := r.Date(task.AttrWait); ok && wait.After(now) {
		err = r.SetStatus(task.StatusWaiting)
		if err != nil {
			return err
		}
	}

	err = r.Validate()
	if err != nil {
		return err
	}

	c, err := s.coordinator(ctx, o)
	if err != nil {
		return err
	}

	res, err := c.Add(ctx, r)
	if err != nil {
		return err
	}

	finish(o, res)

	return nil
}

// EditCmd returns a command running op on the tasks selected by the filter.
func EditCmd(s *session, op mutation.Operation, usage, short string) *Command {
	return &Command{
		Usage:  usage,
		Short:  short,
		Filter: true,
		Exec: func(ctx context.Context, o *IO, filter, args []string) error {
			c, err := s.coordinator(ctx, o)
			if err != nil {
				return err
			}

			res, err := c.Run(ctx, mutation.Request{Filter: filter, Modifications: args}, op)
			if err != nil {
				return err
			}

			finish(o, res)

			return nil
		},
	}
}

// UndoCmd returns the undo command.
func UndoCmd(s *session) *Command {
	return &Command{
		Usage: "undo",
		Short: "Revert the most recent change",
		Long:  "Revert the most recent command, undo or redo. Repeated undo walks further back.",
		Exec: func(ctx context.Context, o *IO, _, args []string) error {
			if len(args) > 0 {
				return errUnexpectedArgs
			}

			c, err := s.coordinator(ctx, o)
			if err != nil {
				return err
			}

			res, err := c.Undo(ctx)
			if err != nil {
				return err
			}

			finish(o, res)

			return nil
		},
	}
}

// RedoCmd returns the redo command.
func RedoCmd(s *session) *Command {
	return &Command{
		Usage: "redo",
		Short: "Reapply the most recently undone change",
		Exec: func(ctx context.Context, o *IO, _, args []string) error {
			if len(args) > 0 {
				return errUnexpectedArgs
			}

			c, err := s.coordinator(ctx, o)
			if err != nil {
				return err
			}

			res, err := c.Redo(ctx)
			if err != nil {
				return err
			}

			finish(o, res)

			return nil
		},
	}
}

var errUnexpectedArgs = errors.New("unexpected arguments")
