// Package status implements the totally ordered task status lattice.
//
// The ordering is the contract: comparisons use the index into
// statusOrder below, never alphabetic or otherwise derived ordering.
package status

import "encoding/json"

// Status is one point in the task lifecycle.
type Status string

const (
	Runahead      Status = "runahead"
	Waiting       Status = "waiting"
	Held          Status = "held"
	Queued        Status = "queued"
	Ready         Status = "ready"
	Expired       Status = "expired"
	SubmitFailed  Status = "submit-failed"
	SubmitRetrying Status = "submit-retrying"
	Submitted     Status = "submitted"
	Retrying      Status = "retrying"
	Running       Status = "running"
	Failed        Status = "failed"
	Succeeded     Status = "succeeded"
)

// statusOrder is the law of the state machine: index in this slice is the
// comparison key for status_leq/status_geq/is_gt. Do not sort it.
var statusOrder = []Status{
	Runahead,
	Waiting,
	Held,
	Queued,
	Ready,
	Expired,
	SubmitFailed,
	SubmitRetrying,
	Submitted,
	Retrying,
	Running,
	Failed,
	Succeeded,
}

var indexOf = func() map[Status]int {
	m := make(map[Status]int, len(statusOrder))
	for i, s := range statusOrder {
		m[s] = i
	}
	return m
}()

// Index returns the status's position in the lattice, or -1 if unknown.
func Index(s Status) int {
	idx, ok := indexOf[s]
	if !ok {
		return -1
	}
	return idx
}

// Leq reports whether a precedes or equals b in the lattice.
func Leq(a, b Status) bool {
	return Index(a) <= Index(b)
}

// Geq reports whether a follows or equals b in the lattice.
func Geq(a, b Status) bool {
	return Index(a) >= Index(b)
}

// IsGT reports whether a strictly follows b in the lattice.
func IsGT(a, b Status) bool {
	return Index(a) > Index(b)
}

// Valid reports whether s is a known status.
func Valid(s Status) bool {
	_, ok := indexOf[s]
	return ok
}

func setOf(statuses ...Status) map[Status]bool {
	m := make(map[Status]bool, len(statuses))
	for _, s := range statuses {
		m[s] = true
	}
	return m
}

// Classification sets, closed per spec §3 — never derive these from Index
// arithmetic, they are not contiguous ranges.
var (
	Active       = setOf(Submitted, Running)
	Final        = setOf(Expired, Succeeded, Failed, SubmitFailed)
	NeverActive  = setOf(Runahead, Waiting, Queued, Ready)
	ToBeActive   = setOf(Queued, Ready, SubmitRetrying, Retrying)
	CanResetTo   = setOf(Submitted, SubmitFailed, Running, Waiting, Expired, Succeeded, Failed)
	Triggerable  = setOf(Waiting, Held, Queued, Expired, SubmitFailed, SubmitRetrying, Succeeded, Failed, Retrying)
)

// IsActive reports membership in the active set.
func IsActive(s Status) bool { return Active[s] }

// IsFinal reports membership in the final set.
func IsFinal(s Status) bool { return Final[s] }

// IsNeverActive reports membership in the never-active set.
func IsNeverActive(s Status) bool { return NeverActive[s] }

// IsToBeActive reports membership in the to-be-active set.
func IsToBeActive(s Status) bool { return ToBeActive[s] }

// CanReset reports whether s is a legal target for TaskState.ResetState.
func CanReset(s Status) bool { return CanResetTo[s] }

// IsTriggerable reports membership in the triggerable set.
func IsTriggerable(s Status) bool { return Triggerable[s] }

// String renders the status for logging.
func (s Status) String() string { return string(s) }

// MarshalJSON renders Status as a JSON string.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON reads Status from a JSON string; the value is not validated.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Status(raw)
	return nil
}
