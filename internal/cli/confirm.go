package cli

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/sys/unix"

	"github.com/calvinalkan/taskstore/internal/mutation"
	"github.com/calvinalkan/taskstore/internal/task"
)

// prompter asks confirmation questions on the terminal or on a plain line
// reader. Answering "all" accepts the current and every later question.
type prompter struct {
	o     *IO
	read  func(prompt string) (string, error)
	close func()
	all   bool
}

// newPrompter reads answers with liner when in is a terminal and line by
// line otherwise. A nil in answers every question with EOF.
func newPrompter(in io.Reader, o *IO) *prompter {
	p := &prompter{o: o, close: func() {}}

	if f, ok := in.(*os.File); ok && isTerminal(f) {
		var state *liner.State

		p.read = func(prompt string) (string, error) {
			if state == nil {
				state = liner.NewLiner()
				state.SetCtrlCAborts(true)
			}

			return state.Prompt(prompt)
		}
		p.close = func() {
			if state != nil {
				_ = state.Close()
			}
		}

		return p
	}

	if in == nil {
		in = strings.NewReader("")
	}

	br := bufio.NewReader(in)

	p.read = func(prompt string) (string, error) {
		o.Printf("%s", prompt)

		line, err := br.ReadString('\n')
		if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
			o.Println()

			return "", err
		}

		return strings.TrimRight(line, "\r\n"), nil
	}

	return p
}

// Ask implements mutation.Confirmer. Unrecognized answers ask again; EOF or
// an aborted prompt stops the command.
func (p *prompter) Ask(question string, changes []task.Change) mutation.Answer {
	if p.all {
		return mutation.Accept
	}

	for _, line := range task.FormatDiff(changes) {
		p.o.Println("  " + line)
	}

	choices := " (yes/no) "
	if len(changes) > 0 {
		choices = " (yes/no/all/quit) "
	}

	for {
		answer, err := p.read(question + choices)
		if err != nil {
			return mutation.DeclineAndStop
		}

		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return mutation.Accept
		case "a", "all":
			p.all = true

			return mutation.Accept
		case "n", "no":
			return mutation.Decline
		case "q", "quit":
			return mutation.DeclineAndStop
		}
	}
}

// Close restores the terminal if liner took it over.
func (p *prompter) Close() {
	p.close()
}

func isTerminal(f *os.File) bool {
	_, err := unix.IoctlGetTermios(int(f.Fd()), ioctlReadTermios)

	return err == nil
}
