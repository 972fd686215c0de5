/*
Package reconciler implements the message reconciler (C6): deciding, for
one incoming or polled task-status message, whether to accept it, ignore
it as stale, or defer it behind a confirm-by-poll round, and then applying
the resulting transition to the task's state machine.

# Message Flow

	Incoming message
	      │
	      ▼
	Stale submit-num? ──yes──▶ ignored, no state change
	      │no
	      ▼
	Output-set satisfaction check (spec §4.3's SetMsgTrgCompletion)
	      │
	      ▼
	Message grammar dispatch:
	  "started" / "succeeded" / "failed" / "submission failed" / "submitted"
	  CYLC_JOB_FAILED:<signal>
	  CYLC_JOB_ABORTED:<reason>
	  CYLC_JOB_VACATED:<host>
	      │
	      ▼
	confirmByPoll: would this transition move the task backwards past a
	status it has already passed? if so, request a poll and defer; the
	*next* message for this task is always believed, whatever it says.
	      │no
	      ▼
	Apply to taskstate.State, record to the DB adapter (C9), set up event
	handler timers (C5/C7) when the message severity warrants it.

# Retry Timers

Task.RetryTimer and Task.SubmitRetryTimer are actiontimer.Timer instances,
not static delay lists: processFailed/processSubmitFailed call peekRetry,
which advances the timer to decide whether a retry is lined up or the
failure is definitive. This keeps the retry-budget testable property (spec
§8) honest for execution/submission retries the same way it already holds
for the C5 handler timers.

# Signals

Aborted/signaled messages write to both the job row's run_signal field and
a task-event row (spec §4.6/§9): recordSignal does both writes from one
call so neither is forgotten.

# Confirm-by-poll and polling

poll_fn correlation is not tracked: the reconciler has no notion of "this
poll reply answers that specific poll request". The next message received
for a task is always believed, matching spec §9's Open Question
resolution. Vacated messages are the one case believed without polling:
they are taken as authoritative regardless of the task's current status.

# See Also

  - pkg/taskstate — the state machine this package drives
  - pkg/eventtimer — the registry/scheduler that C5/C7 handler timers live in
  - pkg/handlers — the C7 drivers setup_event_handlers registers timers for
  - pkg/db — the C9 adapter recordEvent/recordSignal write through
*/
package reconciler
