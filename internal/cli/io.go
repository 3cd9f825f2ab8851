package cli

import (
	"fmt"
	"io"
)

// IO handles command output. Feedback goes to stdout as it happens;
// footnotes are collected and printed after everything else.
type IO struct {
	out       io.Writer
	errOut    io.Writer
	footnotes []string
	failed    bool
}

// NewIO creates a new IO instance.
func NewIO(out, errOut io.Writer) *IO {
	return &IO{out: out, errOut: errOut}
}

// Footnote queues a message for the end of the output.
func (o *IO) Footnote(msg string) {
	o.footnotes = append(o.footnotes, msg)
}

// Fail makes [IO.Finish] return exit code 1 without printing an error.
// Commands use it when some records were skipped or nothing matched.
func (o *IO) Fail() {
	o.failed = true
}

// Println writes to stdout.
func (o *IO) Println(a ...any) {
	_, _ = fmt.Fprintln(o.out, a...)
}

// Printf writes formatted output to stdout.
func (o *IO) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(o.out, format, a...)
}

// ErrPrintln writes to stderr.
func (o *IO) ErrPrintln(a ...any) {
	_, _ = fmt.Fprintln(o.errOut, a...)
}

// Finish prints queued footnotes and returns the exit code.
func (o *IO) Finish() int {
	for _, f := range o.footnotes {
		_, _ = fmt.Fprintln(o.out, f)
	}

	o.footnotes = nil

	if o.failed {
		return 1
	}

	return 0
}

// reporter adapts IO to mutation.Reporter.
type reporter struct {
	o *IO
}

func (r reporter) Feedback(line string) { r.o.Println(line) }
func (r reporter) Footnote(line string) { r.o.Footnote(line) }
