// Package filter compiles command-line filter expressions into predicates
// over task records.
//
// A filter is a sequence of terms joined by implicit AND. Terms are
// attribute comparisons (project:home, due.before:tomorrow), tag tests
// (+work, -home), positional ids (3, 1-4, 1,3), UUIDs or UUID prefixes, and
// bare words that match the description. The keywords and, or, not and
// parentheses combine terms with the usual precedence (not > and > or).
package filter

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/calvinalkan/taskstore/internal/task"
)

// ErrSyntax is wrapped by every [*SyntaxError].
var ErrSyntax = errors.New("filter syntax error")

// SyntaxError reports a malformed filter. Pos is the 0-based index of the
// offending argument, or the argument count when the filter ended early.
type SyntaxError struct {
	Pos   int
	Token string
	Msg   string
}

func (e *SyntaxError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("%v: %s at end of filter", ErrSyntax, e.Msg)
	}

	return fmt.Sprintf("%v: %s at argument %d (%q)", ErrSyntax, e.Msg, e.Pos+1, e.Token)
}

func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}

// Filter is a compiled filter expression. The zero value and a nil *Filter
// match every record.
type Filter struct {
	root node
	args []string
}

// Compile parses args into a Filter. Relative dates (today, tomorrow, ...)
// resolve against now once, at compile time, so every record is evaluated
// against the same instant.
func Compile(args []string, now time.Time) (*Filter, error) {
	p := &parser{toks: lex(args), now: now, end: len(args)}

	root, err := p.parse()
	if err != nil {
		return nil, err
	}

	return &Filter{root: root, args: slices.Clone(args)}, nil
}

// MustCompile is like Compile but panics on error. Intended for tests.
func MustCompile(args []string, now time.Time) *Filter {
	f, err := Compile(args, now)
	if err != nil {
		panic(err)
	}

	return f
}

// Empty reports whether the filter has no terms.
func (f *Filter) Empty() bool {
	return f == nil || f.root == nil
}

// Args returns the arguments the filter was compiled from.
func (f *Filter) Args() []string {
	if f == nil {
		return nil
	}

	return slices.Clone(f.args)
}

// Match reports whether r satisfies the filter.
func (f *Filter) Match(r *task.Record) bool {
	if f.Empty() {
		return true
	}

	return f.root.match(r)
}

// Subset returns the records matching f, in the order given. The result is a
// new slice; records are not copied.
func Subset(records []*task.Record, f *Filter) []*task.Record {
	out := make([]*task.Record, 0, len(records))

	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}

	return out
}

// OnlyIdentifiers reports whether f selects by positional ids and UUIDs
// alone, such as "3", "1-4 7" or "<uuid> or 2". A context never narrows
// such a filter.
func (f *Filter) OnlyIdentifiers() bool {
	if f.Empty() {
		return false
	}

	return onlyIdentifiers(f.root)
}

func onlyIdentifiers(n node) bool {
	switch n := n.(type) {
	case idNode:
		return true
	case orNode:
		return onlyIdentifiers(n.l) && onlyIdentifiers(n.r)
	default:
		return false
	}
}

// And returns a filter matching records that satisfy both f and g.
func And(f, g *Filter) *Filter {
	switch {
	case f.Empty():
		return g
	case g.Empty():
		return f
	}

	args := append([]string{"("}, f.args...)
	args = append(args, ")", "and", "(")
	args = append(args, g.args...)
	args = append(args, ")")

	return &Filter{root: andNode{f.root, g.root}, args: args}
}

// ErrNotWritable is returned by [WriteTerms] for filters that cannot be
// turned into modifications.
var ErrNotWritable = errors.New("filter cannot be applied to new tasks")

// WriteTerms returns the arguments of f as modifications for a new task.
// Only a plain conjunction of attribute equalities (project:home) and tag
// inclusions (+work) qualifies; or, not, operators such as due.before and
// tag exclusions do not.
func WriteTerms(f *Filter) ([]string, error) {
	if f.Empty() {
		return nil, ErrNotWritable
	}

	terms := slices.DeleteFunc(slices.Clone(f.args), func(s string) bool {
		return keyword(s) == tokAnd
	})

	if !writable(f.root) || slices.ContainsFunc(terms, notPlainTerm) {
		return nil, fmt.Errorf("%w: %q", ErrNotWritable, strings.Join(f.args, " "))
	}

	return terms, nil
}

// notPlainTerm rejects spellings a modification would not read the same
// way, such as "(project:a" or "project.is:a".
func notPlainTerm(s string) bool {
	if strings.ContainsAny(s, "()") {
		return true
	}

	if strings.HasPrefix(s, "+") {
		return false
	}

	name, _, ok := strings.Cut(s, ":")

	return !ok || !task.ValidName(name)
}

func writable(n node) bool {
	switch n := n.(type) {
	case andNode:
		return writable(n.l) && writable(n.r)
	case tagNode:
		return n.present
	case cmpNode:
		return n.op == opEq && n.value != "" && n.attr != attrID && n.re == nil
	default:
		return false
	}
}
