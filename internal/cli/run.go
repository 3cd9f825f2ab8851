// Package cli implements the task command line: global flags, filter and
// command dispatch, confirmation prompts and output.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/taskstore/internal/config"
	"github.com/calvinalkan/taskstore/internal/mutation"
	"github.com/calvinalkan/taskstore/internal/recur"
	"github.com/calvinalkan/taskstore/internal/store"
)

var (
	errNoCommand   = errors.New("no command provided")
	errInterrupted = errors.New("interrupted")
)

// defaultCommand runs when the arguments name no command.
const defaultCommand = "ls"

// Run is the main entry point. Returns exit code.
//
// Arguments follow "task [flags] [filter] <command> [args]": global flags
// come first, the first argument naming a command splits the filter from
// the command's own arguments. Use "--" before a filter starting with "-".
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	globalFlags := flag.NewFlagSet("task", flag.ContinueOnError)
	globalFlags.SetInterspersed(false)
	globalFlags.SetOutput(&strings.Builder{})

	flagHelp := globalFlags.BoolP("help", "h", false, "Show help")
	flagCwd := globalFlags.StringP("cwd", "C", "", "Run as if started in `dir`")
	flagConfig := globalFlags.StringP("config", "c", "", "Use specified config `file`")
	flagDataDir := globalFlags.String("data-dir", "", "Override data `directory`")
	flagYes := globalFlags.BoolP("yes", "y", false, "Answer yes to every confirmation")
	flagDebug := globalFlags.Bool("debug", false, "Log debug output to stderr")

	o := NewIO(out, errOut)

	var rest []string
	if len(args) > 1 {
		rest = args[1:]
	}

	err := globalFlags.Parse(rest)
	if err != nil {
		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		printUsage(NewIO(errOut, errOut), globalFlags, nil)

		return 1
	}

	if *flagHelp {
		printUsage(o, globalFlags, nil)

		return 0
	}

	input := config.Input{
		WorkDirOverride: *flagCwd,
		ConfigPath:      *flagConfig,
		Yes:             *flagYes,
		Debug:           *flagDebug,
		Env:             env,
	}

	if globalFlags.Changed("data-dir") {
		input.DataDirOverride = flagDataDir
	}

	cfg, err := config.Load(input)
	if err != nil {
		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		printUsage(NewIO(errOut, errOut), globalFlags, nil)

		return 1
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	if sigCh != nil {
		go func() {
			select {
			case sig, ok := <-sigCh:
				if ok {
					cancel(fmt.Errorf("%w: %v", errInterrupted, sig))
				}
			case <-ctx.Done():
			}
		}()
	}

	s := &session{
		cfg:    cfg,
		in:     in,
		logger: slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: cfg.Level()})),
		clock:  time.Now,
	}
	defer s.close()

	commands := allCommands(s)

	remaining := globalFlags.Args()
	if len(remaining) == 0 {
		if globalFlags.NFlag() == 0 {
			printUsage(o, globalFlags, commands)

			return 0
		}

		o.ErrPrintln("error:", errNoCommand)
		o.ErrPrintln()
		printUsage(NewIO(errOut, errOut), globalFlags, commands)

		return 1
	}

	filterArgs, name, cmdArgs := split(remaining, commands)

	idx := slices.IndexFunc(commands, func(c *Command) bool { return c.Name() == name })

	return commands[idx].Run(ctx, o, filterArgs, cmdArgs)
}

// split finds the first argument naming a command. Without one the whole
// input is a filter for the default command.
func split(args []string, commands []*Command) ([]string, string, []string) {
	for i, arg := range args {
		for _, c := range commands {
			if c.Name() == arg {
				return args[:i], arg, args[i+1:]
			}
		}
	}

	return args, defaultCommand, nil
}

func allCommands(s *session) []*Command {
	return []*Command{
		AddCmd(s),
		EditCmd(s, mutation.Append(), "append <text> [mods]", "Append text to the description of matching tasks"),
		EditCmd(s, mutation.Prepend(), "prepend <text> [mods]", "Prepend text to the description of matching tasks"),
		EditCmd(s, mutation.Modify(), "modify <mods>", "Modify matching tasks"),
		EditCmd(s, mutation.Done(), "done [mods]", "Complete matching tasks"),
		EditCmd(s, mutation.Delete(), "delete [mods]", "Delete matching tasks"),
		UndoCmd(s),
		RedoCmd(s),
		LsCmd(s),
		InfoCmd(s),
		IDsCmd(s),
		UUIDsCmd(s),
		HistoryCmd(s),
		ContextCmd(s),
		PrintConfigCmd(s),
	}
}

func printUsage(o *IO, globalFlags *flag.FlagSet, commands []*Command) {
	o.Println("task - local task list with recurrence and undo")
	o.Println()
	o.Println("Usage: task [flags] [filter] <command> [args]")
	o.Println()
	o.Println("Global flags:")

	var buf strings.Builder
	globalFlags.SetOutput(&buf)
	globalFlags.PrintDefaults()
	globalFlags.SetOutput(&strings.Builder{})
	o.Printf("%s", buf.String())

	if len(commands) == 0 {
		return
	}

	o.Println()
	o.Println("Commands:")

	for _, c := range commands {
		o.Println(c.HelpLine())
	}

	o.Println()
	o.Println("Filters: +tag -tag attr:value attr.before:value 1-3 <uuid> and or not ( )")
	o.Println("Modifications: attr:value (empty removes) +tag -tag, other words are text")
}

// session holds what commands share within one Run.
type session struct {
	cfg    config.Config
	in     io.Reader
	logger *slog.Logger
	clock  func() time.Time

	store    *store.Store
	prompter *prompter
}

// open returns the store, opening it on first use.
func (s *session) open(ctx context.Context) (*store.Store, error) {
	if s.store != nil {
		return s.store, nil
	}

	st, err := store.Open(ctx, s.cfg.DataDirAbs, store.Options{
		LockTimeout: s.cfg.LockTimeout,
		Logger:      s.logger,
		Clock:       s.clock,
	})
	if err != nil {
		return nil, err
	}

	s.store = st

	return st, nil
}

// coordinator wires the store, recurrence engine, confirmation and output
// into a mutation.Coordinator.
func (s *session) coordinator(ctx context.Context, o *IO) (*mutation.Coordinator, error) {
	st, err := s.open(ctx)
	if err != nil {
		return nil, err
	}

	return &mutation.Coordinator{
		Store:     st,
		Engine:    &recur.Engine{Limit: s.cfg.Recurrence.Limit, Logger: s.logger},
		Confirmer: s.confirmer(o),
		Reporter:  reporter{o: o},
		Policy:    s.cfg.Recurrence.Confirmation,
		Clock:     s.clock,
		Logger:    s.logger,
	}, nil
}

// confirmer accepts everything when confirmation is off and prompts
// otherwise.
func (s *session) confirmer(o *IO) mutation.Confirmer {
	if !s.cfg.Confirmation {
		return mutation.AlwaysAccept{}
	}

	if s.prompter == nil {
		s.prompter = newPrompter(s.in, o)
	}

	return s.prompter
}

func (s *session) close() {
	if s.prompter != nil {
		s.prompter.Close()
	}

	err := s.store.Close()
	if err != nil {
		s.logger.Warn("close store", "err", err)
	}
}

// finish marks the run failed for a non-zero result code.
func finish(o *IO, res mutation.Result) {
	if res.Code != 0 {
		o.Fail()
	}
}
