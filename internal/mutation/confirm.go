package mutation

import (
	"sync"

	"github.com/calvinalkan/taskstore/internal/task"
)

// Answer is a confirmation response.
type Answer int

const (
	Accept Answer = iota
	Decline
	DeclineAndStop
)

func (a Answer) String() string {
	switch a {
	case Accept:
		return "accept"
	case Decline:
		return "decline"
	case DeclineAndStop:
		return "decline and stop"
	default:
		return "unknown"
	}
}

// Confirmer approves one change. It is called synchronously from the
// mutation loop; changes may be empty for questions that are not about a
// single record.
type Confirmer interface {
	Ask(question string, changes []task.Change) Answer
}

// ConfirmFunc adapts a function to [Confirmer].
type ConfirmFunc func(question string, changes []task.Change) Answer

// Ask calls f.
func (f ConfirmFunc) Ask(question string, changes []task.Change) Answer {
	return f(question, changes)
}

// AlwaysAccept accepts every question.
type AlwaysAccept struct{}

// Ask returns [Accept].
func (AlwaysAccept) Ask(string, []task.Change) Answer { return Accept }

// AlwaysDecline declines every question.
type AlwaysDecline struct{}

// Ask returns [Decline].
func (AlwaysDecline) Ask(string, []task.Change) Answer { return Decline }

// Script answers from a fixed sequence and records the questions asked.
// Once the answers run out it declines.
type Script struct {
	mu        sync.Mutex
	answers   []Answer
	questions []string
}

// NewScript returns a Script that gives answers in order.
func NewScript(answers ...Answer) *Script {
	return &Script{answers: answers}
}

// Ask returns the next scripted answer.
func (s *Script) Ask(question string, _ []task.Change) Answer {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.questions = append(s.questions, question)

	if len(s.answers) == 0 {
		return Decline
	}

	a := s.answers[0]
	s.answers = s.answers[1:]

	return a
}

// Questions returns the questions asked so far.
func (s *Script) Questions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.questions...)
}
