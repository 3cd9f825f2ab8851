package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/taskstore/internal/mutation"
)

// Command defines a CLI command with unified help generation.
type Command struct {
	// Flags defines command-specific flags. Nil means the arguments are
	// passed through untouched, so modifications like "-tag" are not
	// mistaken for flags.
	Flags *flag.FlagSet

	// Usage is the freeform usage string shown after "task" in help.
	// Includes the command name and arguments/flags.
	// Examples: "add <description> [mods]", "ls [flags]"
	Usage string

	// Short is a one-line description for the global help listing.
	Short string

	// Long is the full description shown in command help.
	// If empty, Short is used instead.
	Long string

	// Filter allows filter arguments before the command name.
	Filter bool

	// Exec runs the command after flags are parsed.
	Exec func(ctx context.Context, o *IO, filter, args []string) error
}

// Name returns the command name (first word of Usage).
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")
	return name
}

// HelpLine returns the short help line for the main usage display.
func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-34s %s", c.Usage, c.Short)
}

// PrintHelp prints the full help output for "task <cmd> --help".
func (c *Command) PrintHelp(o *IO) {
	if c.Filter {
		o.Println("Usage: task [filter]", c.Usage)
	} else {
		o.Println("Usage: task", c.Usage)
	}

	o.Println()

	desc := c.Long
	if desc == "" {
		desc = c.Short
	}

	o.Println(desc)

	if c.Flags != nil && c.Flags.HasFlags() {
		o.Println()
		o.Println("Flags:")

		var buf strings.Builder
		c.Flags.SetOutput(&buf)
		c.Flags.PrintDefaults()
		o.Printf("%s", buf.String())
	}
}

// Run parses flags and executes the command. Returns exit code.
// Handles error printing internally for consistent output ordering.
func (c *Command) Run(ctx context.Context, o *IO, filter, args []string) int {
	if len(filter) > 0 && !c.Filter {
		o.ErrPrintln("error:", fmt.Errorf("%s: %w", c.Name(), mutation.ErrFilterNotAccepted))
		return 1
	}

	if c.Flags == nil {
		if len(args) == 1 && (args[0] == "-h" || args[0] == "--help") {
			c.PrintHelp(o)
			return 0
		}
	} else {
		c.Flags.SetOutput(&strings.Builder{}) // discard pflag output

		err := c.Flags.Parse(args)
		if err != nil {
			if errors.Is(err, flag.ErrHelp) {
				c.PrintHelp(o)
				return 0
			}
			o.ErrPrintln("error:", err)
			o.ErrPrintln()
			c.PrintHelp(o)
			return 1
		}

		args = c.Flags.Args()
	}

	if err := c.Exec(ctx, o, filter, args); err != nil {
		o.Finish()
		o.ErrPrintln("error:", err)
		return 1
	}

	return o.Finish()
}
