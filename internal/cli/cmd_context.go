package cli

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/calvinalkan/taskstore/internal/config"
	"github.com/calvinalkan/taskstore/internal/filter"
	"github.com/calvinalkan/taskstore/internal/mutation"
	"github.com/calvinalkan/taskstore/internal/task"
)

var (
	errContextDefineArgs = errors.New("both context name and its definition must be provided")
	errContextNameNeeded = errors.New("context name needs to be specified")
	errContextNotFound   = errors.New("context not found")
	errNoContexts        = errors.New("no contexts defined")
	errContextNotUnset   = errors.New("context not unset: no context is applied")
	errContextName       = errors.New("context names are lowercase letters, digits and underscores")
)

var contextSubcommands = []string{"define", "delete", "list", "show", "none"}

// ContextCmd returns the context command.
func ContextCmd(s *session) *Command {
	return &Command{
		Usage: "context [<name>|define|delete|list|show|none]",
		Short: "Manage and apply named filters",
		Long: `Manage contexts: named filters that narrow ls, info, ids and uuids.

  context define <name> <filter>  save a context
  context delete <name>           remove a context
  context list                    list contexts
  context show                    show the applied context
  context <name>                  apply a context
  context none                    stop applying a context

A filter of only ids or UUIDs is never narrowed. A context made of
attr:value and +tag terms also applies to tasks created with add.`,
		Exec: func(ctx context.Context, o *IO, _, args []string) error {
			if len(args) == 0 {
				showContext(o, s.cfg)

				return nil
			}

			rest := args[1:]

			switch args[0] {
			case "define":
				return defineContext(ctx, o, s, rest)
			case "delete":
				return deleteContext(o, s.cfg, rest)
			case "list":
				return listContexts(o, s.cfg, rest)
			case "show":
				if len(rest) > 0 {
					return errUnexpectedArgs
				}

				showContext(o, s.cfg)

				return nil
			case "none":
				return unsetContext(o, s.cfg, rest)
			default:
				return setContext(o, s.cfg, strings.Join(args, " "))
			}
		},
	}
}

func defineContext(ctx context.Context, o *IO, s *session, args []string) error {
	if len(args) < 2 {
		return errContextDefineArgs
	}

	name, terms := args[0], args[1:]

	if !task.ValidName(name) || slices.Contains(contextSubcommands, name) {
		return fmt.Errorf("%w: %q", errContextName, name)
	}

	f, err := filter.Compile(terms, s.clock())
	if err != nil {
		return err
	}

	def := config.Context{Read: strings.Join(terms, " ")}

	if _, err := filter.WriteTerms(f); err == nil {
		def.Write = def.Read
	}

	if s.cfg.Confirmation {
		st, err := s.open(ctx)
		if err != nil {
			return err
		}

		snap, err := st.Load(ctx)
		if err != nil {
			return err
		}

		if len(filter.Subset(snap.Pending(), f)) == 0 {
			question := fmt.Sprintf("The filter '%s' matches 0 pending tasks. Do you wish to continue?", def.Read)
			if s.confirmer(o).Ask(question, nil) != mutation.Accept {
				o.Println(fmt.Sprintf("Context '%s' not defined.", name))
				o.Fail()

				return nil
			}
		}
	}

	err = config.DefineContext(s.cfg.WritePath, name, def)
	if err != nil {
		return err
	}

	kinds := "read"
	if def.Write != "" {
		kinds = "read, write"
	}

	o.Println(fmt.Sprintf("Context '%s' defined (%s). Use 'task context %s' to activate.", name, kinds, name))

	return nil
}

func deleteContext(o *IO, cfg config.Config, args []string) error {
	switch {
	case len(args) == 0:
		return errContextNameNeeded
	case len(args) > 1:
		return errUnexpectedArgs
	}

	name := args[0]

	if _, ok := cfg.Contexts[name]; !ok {
		return fmt.Errorf("%w: '%s'", errContextNotFound, name)
	}

	for _, path := range editedFiles(cfg) {
		err := config.DeleteContext(path, name, cfg.Context == name)
		if err != nil {
			return err
		}
	}

	o.Println(fmt.Sprintf("Context '%s' deleted.", name))

	return nil
}

func listContexts(o *IO, cfg config.Config, args []string) error {
	if len(args) > 0 {
		return errUnexpectedArgs
	}

	if len(cfg.Contexts) == 0 {
		return errNoContexts
	}

	active, _, _ := cfg.ActiveContext()
	names := slices.Sorted(maps.Keys(cfg.Contexts))

	width := len("Name")
	for _, name := range names {
		width = max(width, len(name))
	}

	o.Printf("%-*s  %-5s  %-30s  %s\n", width, "Name", "Type", "Definition", "Active")

	for _, name := range names {
		def := cfg.Contexts[name]

		yes := "no"
		if name == active {
			yes = "yes"
		}

		o.Printf("%-*s  %-5s  %-30s  %s\n", width, name, "read", def.Read, yes)

		if def.Write != "" {
			o.Printf("%-*s  %-5s  %-30s  %s\n", width, "", "write", def.Write, yes)
		}
	}

	return nil
}

func showContext(o *IO, cfg config.Config) {
	name, def, ok := cfg.ActiveContext()
	if !ok {
		o.Println("No context is currently applied.")

		return
	}

	write := "none"
	if def.Write != "" {
		write = "'" + def.Write + "'"
	}

	o.Println(fmt.Sprintf("Context '%s' with", name))
	o.Println()
	o.Println(fmt.Sprintf("* read filter: '%s'", def.Read))
	o.Println("* write filter: " + write)
	o.Println()
	o.Println("is currently applied.")
}

func unsetContext(o *IO, cfg config.Config, args []string) error {
	if len(args) > 0 {
		return errUnexpectedArgs
	}

	if cfg.Context == "" {
		return errContextNotUnset
	}

	for _, path := range editedFiles(cfg) {
		err := config.SetContext(path, "")
		if err != nil {
			return err
		}
	}

	o.Println("Context unset.")

	return nil
}

func setContext(o *IO, cfg config.Config, name string) error {
	if _, ok := cfg.Contexts[name]; !ok {
		return fmt.Errorf("%w: '%s'", errContextNotFound, name)
	}

	err := config.SetContext(cfg.WritePath, name)
	if err != nil {
		return err
	}

	o.Println(fmt.Sprintf("Context '%s' set. Use 'task context none' to remove.", name))

	return nil
}

// editedFiles lists every file a removal has to touch: the loaded config
// files and the file new settings are written to.
func editedFiles(cfg config.Config) []string {
	files := cfg.SourceFiles()
	if !slices.Contains(files, cfg.WritePath) {
		files = append(files, cfg.WritePath)
	}

	return files
}

// applyContext narrows f by the active context unless f selects only by id
// or UUID.
func (s *session) applyContext(f *filter.Filter) (*filter.Filter, error) {
	name, def, ok := s.cfg.ActiveContext()
	if !ok || f.OnlyIdentifiers() {
		return f, nil
	}

	cf, err := filter.Compile(strings.Fields(def.Read), s.clock())
	if err != nil {
		return nil, fmt.Errorf("context '%s': %w", name, err)
	}

	s.logger.Debug("context applied", "context", name, "filter", def.Read)

	return filter.And(cf, f), nil
}

// contextTerms returns the modifications the active write context gives new
// tasks.
func (s *session) contextTerms() ([]string, error) {
	name, def, ok := s.cfg.ActiveContext()
	if !ok || def.Write == "" {
		return nil, nil
	}

	f, err := filter.Compile(strings.Fields(def.Write), s.clock())
	if err != nil {
		return nil, fmt.Errorf("context '%s': %w", name, err)
	}

	terms, err := filter.WriteTerms(f)
	if err != nil {
		return nil, fmt.Errorf("context '%s': %w", name, err)
	}

	return terms, nil
}
