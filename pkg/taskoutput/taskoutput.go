// Package taskoutput implements the per-task set of named outputs, each
// with a completion bit, and the message-to-output matching used by the
// reconciler to decide whether an incoming message just satisfies a custom
// output rather than driving a status transition.
package taskoutput

import "sync"

// Standard output names. Anything else registered is a custom output.
const (
	Submitted    = "submitted"
	Started      = "started"
	Succeeded    = "succeeded"
	Failed       = "failed"
	SubmitFailed = "submit-failed"
	Expired      = "expired"
)

// Set tracks completion of a task's named outputs.
type Set struct {
	mu        sync.Mutex
	completed map[string]bool
}

// New creates an output set seeded with the standard names, all incomplete.
func New() *Set {
	s := &Set{completed: make(map[string]bool)}
	for _, name := range []string{Submitted, Started, Succeeded, Failed, SubmitFailed, Expired} {
		s.completed[name] = false
	}
	return s
}

// SetCompletion marks a named output complete or incomplete, registering it
// if previously unknown (this is how custom outputs enter the set).
func (s *Set) SetCompletion(name string, complete bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed[name] = complete
}

// IsCompleted reports the completion bit for name (false if unknown).
func (s *Set) IsCompleted(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed[name]
}

// SetMsgTrgCompletion matches an incoming message against a not-yet-complete
// output's descriptor (the output name itself, by convention). It returns
// true iff the message resolved an as-yet-unsatisfied named output.
func (s *Set) SetMsgTrgCompletion(message string, complete bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	already, known := s.completed[message]
	if !known || already == complete {
		return false
	}
	s.completed[message] = complete
	return true
}

// SetAllIncomplete resets every registered output to incomplete.
func (s *Set) SetAllIncomplete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name := range s.completed {
		s.completed[name] = false
	}
}

// AllCompleted reports whether every registered output is complete.
func (s *Set) AllCompleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, done := range s.completed {
		if !done {
			return false
		}
	}
	return true
}

// GetNotCompleted returns the names of all incomplete outputs.
func (s *Set) GetNotCompleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for name, done := range s.completed {
		if !done {
			names = append(names, name)
		}
	}
	return names
}

// Clone returns an independent copy for tests that snapshot coherence
// without mutating live state.
func (s *Set) Clone() *Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := &Set{completed: make(map[string]bool, len(s.completed))}
	for k, v := range s.completed {
		clone.completed[k] = v
	}
	return clone
}
