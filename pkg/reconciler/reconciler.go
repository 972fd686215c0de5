// Package reconciler implements the C6 message reconciler: accepting an
// incoming or polled task status message, deciding accept/ignore/confirm-
// by-poll, and dispatching to the task state machine.
package reconciler

import (
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/cyclecore/pkg/actiontimer"
	"github.com/cuemby/cyclecore/pkg/config"
	"github.com/cuemby/cyclecore/pkg/db"
	"github.com/cuemby/cyclecore/pkg/eventtimer"
	"github.com/cuemby/cyclecore/pkg/handlers"
	"github.com/cuemby/cyclecore/pkg/log"
	"github.com/cuemby/cyclecore/pkg/status"
	"github.com/cuemby/cyclecore/pkg/taskstate"
	"github.com/rs/zerolog"
)

const (
	msgSubmitted    = "submitted"
	msgStarted      = "started"
	msgSucceeded    = "succeeded"
	msgFailed       = "failed"
	msgSubmitFailed = "submission failed"

	failMessagePrefix     = "CYLC_JOB_FAILED:"
	abortMessagePrefix    = "CYLC_JOB_ABORTED:"
	vacationMessagePrefix = "CYLC_JOB_VACATED:"
)

// PollFunc is invoked to request a fresh poll of the task before believing
// an apparently regressive message (spec §4.6). reason is a human-readable
// string for logs.
type PollFunc func(identity string, reason string)

// Message is one incoming or polled status message (spec §4.6's
// process_message argument list).
type Message struct {
	Severity     string // "INFO", "WARNING", "CRITICAL", "CUSTOM", ...
	Text         string
	IncomingTime time.Time // zero if this is a poll reply
	PollTime     time.Time // zero if this is an incoming message
	SubmitNum    int // compared only when HasSubmitNum is set
	HasSubmitNum bool // false means "not given" (polls may omit it)
}

// Task is the narrow view the reconciler needs of one task: its state
// machine, its identity/cycle-point/submit-num for handler setup, and its
// retry timers for the failed/submit-failed branches.
type Task struct {
	State      *taskstate.State
	Identity   string
	CyclePoint string
	Name       string
	Owner      string
	Host       string
	SubmitNum  int

	// RetryTimer / SubmitRetryTimer are the execution-retry and
	// submission-retry clocks (the source's try_timers[retrying] /
	// try_timers[submit-retrying]), distinct from the C5 handler timers:
	// these decide whether a failed/submit-failed message lines up a
	// retry or is definitive. Nil means no retries are configured.
	RetryTimer       *actiontimer.Timer
	SubmitRetryTimer *actiontimer.Timer

	EventData handlers.TaskEventData
}

// Reconciler implements C6 over a task's state machine, registering
// handler timers via the C5/C7/C8 collaborators and recording to C9.
type Reconciler struct {
	Registry  *eventtimer.Registry
	Lookup    *config.Lookup
	DB        db.Adapter
	LocalUser string

	logger zerolog.Logger
}

// New creates a Reconciler wired to its collaborators.
func New(reg *eventtimer.Registry, lookup *config.Lookup, adapter db.Adapter, localUser string) *Reconciler {
	return &Reconciler{
		Registry:  reg,
		Lookup:    lookup,
		DB:        adapter,
		LocalUser: localUser,
		logger:    log.WithComponent("reconciler"),
	}
}

// ProcessMessage implements spec §4.6's process_message.
func (r *Reconciler) ProcessMessage(task *Task, msg Message, poll PollFunc) {
	taskLog := log.WithTaskID(task.Identity)

	var eventTime time.Time
	switch {
	case !msg.IncomingTime.IsZero():
		if msg.HasSubmitNum && msg.SubmitNum != task.SubmitNum {
			taskLog.Warn().
				Int("have", task.SubmitNum).
				Int("got", msg.SubmitNum).
				Msg("ignoring message from stale submit-num")
			return
		}
		eventTime = msg.IncomingTime
	case !msg.PollTime.IsZero():
		eventTime = msg.PollTime
	default:
		eventTime = time.Now()
	}

	taskLog.Info().
		Str("status", string(task.State.Status)).
		Str("message", msg.Text).
		Msg("processing task message")

	outputSatisfied := task.State.Outputs.SetMsgTrgCompletion(msg.Text, true)

	switch {
	case msg.Text == msgStarted:
		if r.confirmByPoll(task, status.Running, poll) {
			return
		}
		r.processStarted(task, eventTime)

	case msg.Text == msgSucceeded:
		if r.confirmByPoll(task, status.Succeeded, poll) {
			return
		}
		r.processSucceeded(task, eventTime)

	case msg.Text == msgFailed:
		if r.confirmByPoll(task, status.Failed, poll) {
			return
		}
		r.processFailed(task, eventTime, "job failed")

	case msg.Text == msgSubmitFailed:
		if r.confirmByPoll(task, status.SubmitFailed, poll) {
			return
		}
		r.processSubmitFailed(task, eventTime)

	case msg.Text == msgSubmitted:
		if r.confirmByPoll(task, status.Submitted, poll) {
			return
		}
		r.processSubmitted(task, eventTime)

	case strings.HasPrefix(msg.Text, failMessagePrefix):
		signal := strings.TrimPrefix(msg.Text, failMessagePrefix)
		r.recordSignal(task, "signaled", signal, signal)
		if r.confirmByPoll(task, status.Failed, poll) {
			return
		}
		r.processFailed(task, eventTime, "job failed")

	case strings.HasPrefix(msg.Text, abortMessagePrefix):
		reason := strings.TrimPrefix(msg.Text, abortMessagePrefix)
		r.recordSignal(task, "aborted", msg.Text, reason)
		if r.confirmByPoll(task, status.Failed, poll) {
			return
		}
		r.processFailed(task, eventTime, reason)

	case strings.HasPrefix(msg.Text, vacationMessagePrefix):
		r.recordEvent(task, "vacated", msg.Text)
		task.State.Vacated(eventTime)

	case outputSatisfied:
		if r.DB != nil {
			_ = r.DB.PutUpdateTaskOutputs(task.Identity, db.TaskOutputsRow{
				Completed: task.State.Outputs.GetNotCompleted(),
			})
		}

	default:
		taskLog.Debug().
			Str("message", msg.Text).
			Msg("unhandled message, no state change")
		r.recordEvent(task, "message "+strings.ToLower(msg.Severity), msg.Text)
	}

	switch strings.ToUpper(msg.Severity) {
	case "WARNING", "CRITICAL", "CUSTOM":
		r.setupEventHandlers(task, strings.ToLower(msg.Severity), msg.Text)
	}
}

// confirmByPoll implements the confirm-by-poll rule of spec §4.6: before
// applying a transition that would move the task backwards past statusGT,
// poll instead and defer. The *next* message is always believed, whatever
// it is — poll_fn correlation is not tracked (spec §9 Open Question).
func (r *Reconciler) confirmByPoll(task *Task, statusGT status.Status, poll PollFunc) bool {
	if status.IsGT(task.State.Status, statusGT) && !task.State.ConfirmingWithPoll {
		if poll != nil {
			poll(task.Identity, fmt.Sprintf("polling %s to confirm state", task.Identity))
		}
		task.State.ConfirmingWithPoll = true
		return true
	}
	task.State.ConfirmingWithPoll = false
	return false
}

func (r *Reconciler) recordEvent(task *Task, event, message string) {
	if r.DB == nil {
		return
	}
	_ = r.DB.PutInsertTaskEvents(task.Identity, db.TaskEventRow{Time: time.Now(), Event: event, Message: message})
}

// recordSignal writes the signal/reason to both the job-row run_signal
// field and the event row, per spec §9's "preserve both writes" open
// question resolution.
func (r *Reconciler) recordSignal(task *Task, event, message, runSignal string) {
	r.recordEvent(task, event, message)
	if r.DB == nil {
		return
	}
	_ = r.DB.PutUpdateTaskJobs(task.Identity, task.SubmitNum, db.TaskJobDelta{RunSignal: runSignal})
}

func (r *Reconciler) setupEventHandlers(task *Task, event, message string) {
	handlers.SetupEventHandlers(r.Registry, r.Lookup, r.DB, handlers.SetupTaskRef{
		TaskRef:    config.TaskRef{Name: task.Name, Owner: task.Owner, Host: task.Host},
		CyclePoint: task.CyclePoint,
		SubmitNum:  task.SubmitNum,
		LocalUser:  r.LocalUser,
	}, event, message, task.EventData)
}

func (r *Reconciler) processStarted(task *Task, eventTime time.Time) {
	wasVacated := task.State.JobVacated
	task.State.MessageStarted(eventTime)
	if r.DB != nil {
		_ = r.DB.PutUpdateTaskJobs(task.Identity, task.SubmitNum, db.TaskJobDelta{TimeRunStart: &eventTime})
	}
	if wasVacated {
		r.logger.Warn().Str("task", task.Identity).Msg("vacated job restarted")
	}
	r.setupEventHandlers(task, "started", "job started")
}

func (r *Reconciler) processSucceeded(task *Task, eventTime time.Time) {
	task.State.MessageSucceeded(eventTime)
	if r.DB != nil {
		zero := 0
		_ = r.DB.PutUpdateTaskJobs(task.Identity, task.SubmitNum, db.TaskJobDelta{RunStatus: &zero, TimeRunExit: &eventTime})
	}
	if !task.State.Outputs.AllCompleted() {
		r.logger.Info().
			Str("task", task.Identity).
			Strs("not_completed", task.State.Outputs.GetNotCompleted()).
			Msg("succeeded with outputs not completed")
	}
	r.setupEventHandlers(task, "succeeded", "job succeeded")
}

func (r *Reconciler) processFailed(task *Task, eventTime time.Time, message string) {
	if r.DB != nil {
		one := 1
		_ = r.DB.PutUpdateTaskJobs(task.Identity, task.SubmitNum, db.TaskJobDelta{RunStatus: &one, TimeRunExit: &eventTime})
	}

	delay, retriesRemain := peekRetry(task.RetryTimer, eventTime)
	if !retriesRemain {
		task.State.MessageFailed(eventTime, false)
		r.setupEventHandlers(task, "failed", message)
		r.logger.Warn().Str("task", task.Identity).Int("submit", task.SubmitNum).Msg("job failed")
		return
	}

	r.logger.Info().
		Str("task", task.Identity).
		Dur("delay", delay).
		Msg("failed, retrying")
	r.setupEventHandlers(task, "retry", fmt.Sprintf("job failed, retrying in %s", delay))
	task.State.MessageFailed(eventTime, true)
}

func (r *Reconciler) processSubmitFailed(task *Task, eventTime time.Time) {
	if r.DB != nil {
		one := 1
		_ = r.DB.PutUpdateTaskJobs(task.Identity, task.SubmitNum, db.TaskJobDelta{SubmitStatus: &one, TimeSubmitExit: &eventTime})
	}

	delay, retriesRemain := peekRetry(task.SubmitRetryTimer, eventTime)
	if !retriesRemain {
		task.State.SubmitFailed(eventTime, false)
		r.setupEventHandlers(task, "submission failed", "job submission failed")
		return
	}

	r.setupEventHandlers(task, "submission retry", fmt.Sprintf("job submission failed, retrying in %s", delay))
	task.State.SubmitFailed(eventTime, true)
}

func (r *Reconciler) processSubmitted(task *Task, eventTime time.Time) {
	if r.DB != nil {
		zero := 0
		_ = r.DB.PutUpdateTaskJobs(task.Identity, task.SubmitNum, db.TaskJobDelta{TimeSubmitExit: &eventTime, SubmitStatus: &zero})
	}
	task.State.MessageSubmitted(eventTime)
	r.setupEventHandlers(task, "submitted", "job submitted")
}

// peekRetry mirrors the source's "try_timers[...].next() is None" check:
// advancing the timer IS the decision of whether a retry is lined up, so
// a nil timer (no retries configured) or an exhausted one both mean
// "definitive failure".
func peekRetry(timer *actiontimer.Timer, now time.Time) (time.Duration, bool) {
	if timer == nil {
		return 0, false
	}
	delay, ok := timer.Next(now, false)
	return delay, ok
}
