package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/taskstore/internal/filter"
	"github.com/calvinalkan/taskstore/internal/store"
	"github.com/calvinalkan/taskstore/internal/task"
)

const dateLayout = "2006-01-02"

var errFilterRequired = errors.New("a filter is required")

// LsCmd returns the ls command.
func LsCmd(s *session) *Command {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	fs.BoolP("all", "a", false, "Include completed, deleted and recurring template tasks")

	return &Command{
		Flags:  fs,
		Usage:  "ls [flags]",
		Short:  "List matching tasks",
		Long:   "List pending and waiting tasks matching the filter, in natural order.",
		Filter: true,
		Exec: func(ctx context.Context, o *IO, filterArgs, _ []string) error {
			all, _ := fs.GetBool("all")

			return execLs(ctx, o, s, filterArgs, all)
		},
	}
}

func execLs(ctx context.Context, o *IO, s *session, filterArgs []string, all bool) error {
	records, err := s.selectRecords(ctx, o, filterArgs)
	if err != nil {
		return err
	}

	if !all {
		records = slices.DeleteFunc(records, func(r *task.Record) bool {
			st := r.Status()

			return st != task.StatusPending && st != task.StatusWaiting
		})
	}

	if len(records) == 0 {
		o.Footnote("No matches.")
		o.Fail()

		return nil
	}

	for _, r := range records {
		o.Println(formatTaskLine(r))
	}

	o.Footnote(fmt.Sprintf("%d %s", len(records), plural(len(records), "task")))

	return nil
}

func formatTaskLine(r *task.Record) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%-8s %-9s %-10s", r.Identifier(), r.Status(), formatDate(r, task.AttrDue))

	if p := r.Get(task.AttrProject); p != "" {
		b.WriteString(" [" + p + "]")
	}

	b.WriteString(" " + r.Description())

	for _, tag := range r.Tags() {
		b.WriteString(" +" + tag)
	}

	return b.String()
}

func formatDate(r *task.Record, attr string) string {
	t, ok := r.Date(attr)
	if !ok {
		return "-"
	}

	return t.Local().Format(dateLayout)
}

// InfoCmd returns the info command.
func InfoCmd(s *session) *Command {
	return &Command{
		Usage:  "info",
		Short:  "Show every attribute of matching tasks",
		Filter: true,
		Exec: func(ctx context.Context, o *IO, filterArgs, args []string) error {
			if len(args) > 0 {
				return errUnexpectedArgs
			}

			return execInfo(ctx, o, s, filterArgs)
		},
	}
}

func execInfo(ctx context.Context, o *IO, s *session, filterArgs []string) error {
	if len(filterArgs) == 0 {
		return errFilterRequired
	}

	records, err := s.selectRecords(ctx, o, filterArgs)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		o.Footnote("No matches.")
		o.Fail()

		return nil
	}

	for i, r := range records {
		if i > 0 {
			o.Println()
		}

		if r.ID() > 0 {
			o.Printf("%-12s %d\n", "id", r.ID())
		}

		for _, name := range r.Names() {
			value := r.Get(name)

			if task.KindOf(name) == task.KindDate {
				if t, ok := r.Date(name); ok {
					value = t.Local().Format("2006-01-02 15:04:05")
				}
			}

			o.Printf("%-12s %s\n", name, value)
		}
	}

	return nil
}

// IDsCmd returns the ids command.
func IDsCmd(s *session) *Command {
	return &Command{
		Usage:  "ids",
		Short:  "Print positional ids of matching tasks as ranges",
		Long:   "Print the positional ids of matching tasks, compressed into ranges like 1-3 5.",
		Filter: true,
		Exec: func(ctx context.Context, o *IO, filterArgs, args []string) error {
			if len(args) > 0 {
				return errUnexpectedArgs
			}

			records, err := s.selectRecords(ctx, o, filterArgs)
			if err != nil {
				return err
			}

			var ids []int

			for _, r := range records {
				if r.ID() > 0 {
					ids = append(ids, r.ID())
				}
			}

			o.Println(compressIDs(ids))

			return nil
		},
	}
}

// compressIDs renders ids as sorted, space separated ranges.
func compressIDs(ids []int) string {
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	var parts []string

	for i := 0; i < len(ids); {
		j := i
		for j+1 < len(ids) && ids[j+1] == ids[j]+1 {
			j++
		}

		if i == j {
			parts = append(parts, strconv.Itoa(ids[i]))
		} else {
			parts = append(parts, strconv.Itoa(ids[i])+"-"+strconv.Itoa(ids[j]))
		}

		i = j + 1
	}

	return strings.Join(parts, " ")
}

// UUIDsCmd returns the uuids command.
func UUIDsCmd(s *session) *Command {
	return &Command{
		Usage:  "uuids",
		Short:  "Print UUIDs of matching tasks",
		Filter: true,
		Exec: func(ctx context.Context, o *IO, filterArgs, args []string) error {
			if len(args) > 0 {
				return errUnexpectedArgs
			}

			records, err := s.selectRecords(ctx, o, filterArgs)
			if err != nil {
				return err
			}

			uuids := make([]string, 0, len(records))
			for _, r := range records {
				uuids = append(uuids, r.UUID())
			}

			slices.Sort(uuids)
			o.Println(strings.Join(uuids, " "))

			return nil
		},
	}
}

// HistoryCmd returns the history command.
func HistoryCmd(s *session) *Command {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.IntP("limit", "n", 0, "Show at most `n` entries (0 shows all)")

	return &Command{
		Flags: fs,
		Usage: "history [flags]",
		Short: "Show the undo log, newest first",
		Exec: func(ctx context.Context, o *IO, _, args []string) error {
			if len(args) > 0 {
				return errUnexpectedArgs
			}

			limit, _ := fs.GetInt("limit")
			if limit < 0 {
				return errors.New("--limit must be non-negative")
			}

			st, err := s.open(ctx)
			if err != nil {
				return err
			}

			groups, err := st.History(ctx)
			if err != nil {
				return err
			}

			if limit > 0 && len(groups) > limit {
				groups = groups[:limit]
			}

			for _, g := range groups {
				o.Println(formatGroup(g))
			}

			if len(groups) == 0 {
				o.Footnote("No history.")
			}

			return nil
		},
	}
}

func formatGroup(g store.Group) string {
	line := fmt.Sprintf("%4d  %s  %-7s %-8s %d %s",
		g.Seq, g.CreatedAt.Local().Format("2006-01-02 15:04:05"), g.Kind, g.Command, len(g.Entries), plural(len(g.Entries), "task"))

	if g.Reverts != 0 {
		line += fmt.Sprintf(" (reverts %d)", g.Reverts)
	}

	return line
}

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(s *session) *Command {
	return &Command{
		Usage: "print-config",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration and which files it was loaded from.",
		Exec: func(_ context.Context, o *IO, _, _ []string) error {
			for _, line := range s.cfg.Lines() {
				o.Println(line)
			}

			return nil
		},
	}
}

// selectRecords brings recurring templates up to date and returns the
// records matching the filter and the active context in natural order.
func (s *session) selectRecords(ctx context.Context, o *IO, filterArgs []string) ([]*task.Record, error) {
	f, err := filter.Compile(filterArgs, s.clock())
	if err != nil {
		return nil, err
	}

	f, err = s.applyContext(f)
	if err != nil {
		return nil, err
	}

	c, err := s.coordinator(ctx, o)
	if err != nil {
		return nil, err
	}

	snap, err := c.Refresh(ctx)
	if err != nil {
		return nil, err
	}

	return filter.Subset(snap.All(), f), nil
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}

	return word + "s"
}
