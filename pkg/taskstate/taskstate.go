// Package taskstate is the single source of truth for one task's status: it
// enforces transition legality, the hold/unhold swap protocol, and the
// output/status coherence invariants of the state machine.
package taskstate

import (
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/cyclecore/pkg/status"
	"github.com/cuemby/cyclecore/pkg/taskoutput"
)

// Prerequisite is the narrow contract the state machine needs from the
// (out of scope) prerequisite/dependency-matching machinery.
type Prerequisite interface {
	SatisfyMe(outputs map[string]bool) bool
	IsSatisfied() bool
	SetSatisfied()
	SetNotSatisfied()
	GetResolvedDependencies() []string
	GetTargetPoints() []string
}

// RunRecord captures one completed run for the task's elapsed-time history.
type RunRecord struct {
	SubmitNum int
	StartedAt time.Time
	FinishedAt time.Time
}

// State is the per-task status record (spec §3/§4.4 "TaskState").
type State struct {
	mu sync.Mutex

	Identity string
	Status   status.Status
	HoldSwap status.Status // empty when not parked

	Prerequisites        []Prerequisite
	SuicidePrerequisites []Prerequisite
	isSatisfied          *bool
	suicideIsSatisfied    *bool

	ExternalTriggers map[string]bool
	Outputs          *taskoutput.Set

	KillFailed        bool
	JobVacated        bool
	ConfirmingWithPoll bool

	SubmitNum  int
	StartedAt  time.Time
	RunHistory []RunRecord

	TimeUpdated string
}

// New creates a TaskState in the given initial status.
func New(identity string, initial status.Status) *State {
	return &State{
		Identity:         identity,
		Status:           initial,
		ExternalTriggers: make(map[string]bool),
		Outputs:          taskoutput.New(),
	}
}

func (s *State) touch() {
	s.TimeUpdated = time.Now().Format(time.RFC3339)
}

// setStatus is the single accessor all transition code must go through: it
// implements the hold/unhold swap protocol of §4.4. If the task is parked
// in held (HoldSwap == Held) and target is a non-final latent status, the
// park is re-established at the new latent status instead of actually
// leaving held. A final target always proceeds straight through and drops
// the stale hold, since there is no latent status left to park at.
func (s *State) setStatus(target status.Status) {
	if s.HoldSwap == status.Held && target != status.Held && !status.IsFinal(target) {
		s.HoldSwap = target
		s.Status = status.Held
		return
	}
	s.HoldSwap = ""
	s.Status = target
}

// enforceCoherence applies the six output-to-status implications of §4.4.
// It must run on every ResetState call so outputs never drift from status.
func enforceCoherence(target status.Status, outputs *taskoutput.Set) {
	if status.Leq(target, status.Submitted) {
		outputs.SetAllIncomplete()
	}
	outputs.SetCompletion(taskoutput.Expired, target == status.Expired)
	outputs.SetCompletion(taskoutput.Submitted, status.Geq(target, status.Submitted))
	outputs.SetCompletion(taskoutput.Started, status.Geq(target, status.Running))
	outputs.SetCompletion(taskoutput.SubmitFailed, target == status.SubmitFailed)
	outputs.SetCompletion(taskoutput.Succeeded, target == status.Succeeded)
	outputs.SetCompletion(taskoutput.Failed, target == status.Failed)
}

// ResetState moves the task to target, enforcing output coherence, the
// hold-swap protocol, and (when resetting to waiting) clearing prerequisite
// satisfaction. target must be in status.CanResetTo.
func (s *State) ResetState(target status.Status) error {
	if !status.CanReset(target) {
		return fmt.Errorf("taskstate: %s is not a valid reset target for %s", target, s.Identity)
	}
	s.applyStatus(target)
	return nil
}

// applyStatus performs the move ResetState describes without the
// status.CanResetTo check, so the retry branches of the transition handlers
// can enter submit-retrying and retrying.
func (s *State) applyStatus(target status.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.setStatus(target)
	enforceCoherence(s.Status, s.Outputs)

	if target == status.Waiting {
		s.clearPrerequisiteSatisfactionLocked()
	}

	s.touch()
}

func (s *State) clearPrerequisiteSatisfactionLocked() {
	for _, p := range s.Prerequisites {
		p.SetNotSatisfied()
	}
	unsat := false
	s.isSatisfied = &unsat
}

// IsSatisfied reports whether all ordinary prerequisites are satisfied,
// using (and populating) the cached bit.
func (s *State) IsSatisfied() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isSatisfied != nil {
		return *s.isSatisfied
	}
	ok := true
	for _, p := range s.Prerequisites {
		if !p.IsSatisfied() {
			ok = false
			break
		}
	}
	s.isSatisfied = &ok
	return ok
}

// InvalidateSatisfaction clears the cached satisfied bits; callers must
// invoke this any time a prerequisite or suicide-prerequisite changes.
func (s *State) InvalidateSatisfaction() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isSatisfied = nil
	s.suicideIsSatisfied = nil
}

// MessageSubmitted handles "message submitted" (first time). No-op if the
// task has already progressed to running or beyond.
func (s *State) MessageSubmitted(now time.Time) error {
	s.mu.Lock()
	already := status.Geq(s.Status, status.Running)
	s.mu.Unlock()
	if already {
		return nil
	}
	return s.ResetState(status.Submitted)
}

// SubmissionReturned handles the ready->submitted transition once the
// submission call itself has returned successfully.
func (s *State) SubmissionReturned(now time.Time) error {
	return s.ResetState(status.Submitted)
}

// SubmitFailed handles a submission failure, scheduling a retry or moving
// to the terminal submit-failed status depending on whether retries remain.
func (s *State) SubmitFailed(now time.Time, retriesRemain bool) error {
	if retriesRemain {
		s.applyStatus(status.SubmitRetrying)
		return nil
	}
	return s.ResetState(status.SubmitFailed)
}

// MessageStarted handles "message started": submitted -> running.
func (s *State) MessageStarted(now time.Time) error {
	s.mu.Lock()
	s.StartedAt = now
	s.mu.Unlock()
	return s.ResetState(status.Running)
}

// MessageSucceeded handles "message succeeded": running -> succeeded,
// appending the completed run to the task's history.
func (s *State) MessageSucceeded(now time.Time) error {
	s.mu.Lock()
	if !s.StartedAt.IsZero() {
		s.RunHistory = append(s.RunHistory, RunRecord{
			SubmitNum:  s.SubmitNum,
			StartedAt:  s.StartedAt,
			FinishedAt: now,
		})
	}
	s.mu.Unlock()
	return s.ResetState(status.Succeeded)
}

// MessageFailed handles a failed/signalled/aborted execution message,
// scheduling a retry or moving to the terminal failed status.
func (s *State) MessageFailed(now time.Time, retriesRemain bool) error {
	if retriesRemain {
		s.applyStatus(status.Retrying)
		return nil
	}
	return s.ResetState(status.Failed)
}

// Vacated handles pre-emption: the job will restart elsewhere, so the task
// is believed back to submitted without polling.
func (s *State) Vacated(now time.Time) error {
	s.mu.Lock()
	s.StartedAt = time.Time{}
	s.JobVacated = true
	s.mu.Unlock()
	return s.ResetState(status.Submitted)
}

// Hold parks the task. From waiting, queued, submit-retrying or retrying it
// moves directly to held with the previous status latent in HoldSwap; from
// an active status it stays put but records a pending hold-on-finish. Any
// other status is left unparked.
func (s *State) Hold() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.Status {
	case status.Waiting, status.Queued, status.SubmitRetrying, status.Retrying:
		s.HoldSwap = s.Status
		s.Status = status.Held
	case status.Submitted, status.Running:
		s.HoldSwap = status.Held
	default:
		// no-op: nothing to park from this status
	}
	s.touch()
}

// Unhold restores the parked status (or waiting if none was parked).
func (s *State) Unhold() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status != status.Held {
		return
	}
	target := s.HoldSwap
	if target == "" {
		target = status.Waiting
	}
	s.HoldSwap = ""
	s.Status = target
	s.touch()
}

// IsHeld reports whether the task is currently parked.
func (s *State) IsHeld() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Status == status.Held
}
