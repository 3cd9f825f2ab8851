package mutation

import "sync"

// Reporter receives user-facing messages. Feedback is per-record progress,
// Footnote is trailing information ("No tasks specified.").
type Reporter interface {
	Feedback(msg string)
	Footnote(msg string)
}

// Discard drops every message.
type Discard struct{}

func (Discard) Feedback(string) {}
func (Discard) Footnote(string) {}

// Recorder keeps messages in memory.
type Recorder struct {
	mu        sync.Mutex
	feedback  []string
	footnotes []string
}

func (r *Recorder) Feedback(msg string) {
	r.mu.Lock()
	r.feedback = append(r.feedback, msg)
	r.mu.Unlock()
}

func (r *Recorder) Footnote(msg string) {
	r.mu.Lock()
	r.footnotes = append(r.footnotes, msg)
	r.mu.Unlock()
}

// Lines returns the feedback messages in order.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.feedback...)
}

// Footnotes returns the footnotes in order.
func (r *Recorder) Footnotes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.footnotes...)
}
