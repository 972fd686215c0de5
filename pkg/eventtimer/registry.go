package eventtimer

import (
	"sync"
	"time"

	"github.com/cuemby/cyclecore/pkg/actiontimer"
	"github.com/cuemby/cyclecore/pkg/events"
)

// HandlerKind tags which of the three driver variants a Context carries.
type HandlerKind string

const (
	KindMail   HandlerKind = "mail"
	KindLogs   HandlerKind = "job-logs-retrieve"
	KindCustom HandlerKind = "custom-handler"
)

// Key1 disambiguates entries of the same handler kind for the same task
// submission: for mail/logs it is just (kind, event); a task may have
// several custom handlers configured for one event, indexed event-handler-00,
// event-handler-01, ... as the Kind field.
type Key1 struct {
	Kind  HandlerKind
	Event string
}

// Key uniquely identifies one event-timer entry.
type Key struct {
	Key1       Key1
	CyclePoint string
	TaskName   string
	SubmitNum  int
}

// CustomHandlerCtx drives a user-supplied shell command.
type CustomHandlerCtx struct {
	Key Key
	Cmd string
	// ID is passed to procpool as the submission's CorrelationID and shows
	// up in its dispatch debug log line; assigned once at setup time.
	ID string
}

// MailCtx drives a batched notification email.
type MailCtx struct {
	Key      Key
	MailFrom string
	MailTo   string
	MailSMTP string
	ID       string
}

// mailGroupKey is the field-equality grouping key for MailCtx: two entries
// group together iff these fields match, regardless of Key (which differs
// per task/submit).
type mailGroupKey struct {
	MailFrom string
	MailTo   string
	MailSMTP string
}

func (m MailCtx) groupKey() mailGroupKey {
	return mailGroupKey{MailFrom: m.MailFrom, MailTo: m.MailTo, MailSMTP: m.MailSMTP}
}

// JobLogsRetrieveCtx drives a remote job-log retrieval.
type JobLogsRetrieveCtx struct {
	Key        Key
	UserAtHost string
	MaxSize    string // empty means unlimited
	ID         string
}

// Context is the tagged sum type wrapping exactly one driver variant.
type Context struct {
	Kind   HandlerKind
	Custom *CustomHandlerCtx
	Mail   *MailCtx
	Logs   *JobLogsRetrieveCtx
}

// entry pairs a retry clock with its driver context.
type entry struct {
	timer *actiontimer.Timer
	ctx   Context
}

// Registry is the process-wide event-timer set (C5).
type Registry struct {
	mu           sync.Mutex
	entries      map[Key]*entry
	nextMailTime time.Time
	mailInterval time.Duration
	stopping     bool

	// changed receives an EventSomethingChanged notification whenever a
	// group settles (spec.md §1 Non-goals: "the core only sets a changed
	// flag" — the rest of the system decides what to do with it).
	changed *events.Broker
}

// NewRegistry creates an empty registry with the given mail batching window.
func NewRegistry(mailInterval time.Duration) *Registry {
	return &Registry{
		entries:      make(map[Key]*entry),
		mailInterval: mailInterval,
	}
}

// SetChangeBroker wires an events.Broker that receives an
// EventSomethingChanged notification every time a dispatched group settles
// successfully. Entries dropped after exhausting their retries publish
// nothing. Nil disables the notification.
func (r *Registry) SetChangeBroker(b *events.Broker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = b
}

// Add registers a new timer/context pair under key, replacing any existing
// entry (a fresh setup call always wins over a stale one).
func (r *Registry) Add(key Key, timer *actiontimer.Timer, ctx Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = &entry{timer: timer, ctx: ctx}
}

// Exists reports whether key is already registered — used by the C7 setup
// routines to avoid scheduling a duplicate logs-retrieval timer.
func (r *Registry) Exists(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[key]
	return ok
}

// Remove deletes an entry, e.g. on driver success or timer exhaustion.
func (r *Registry) Remove(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
}

// Len reports the number of live entries (test/metrics use).
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// SetStopping marks the registry as draining: mail batching windowing is
// bypassed once the scheduler is stopping (spec §4.5 step 1).
func (r *Registry) SetStopping(stopping bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopping = stopping
}
