package reconciler

import (
	"testing"
	"time"

	"github.com/cuemby/cyclecore/pkg/actiontimer"
	"github.com/cuemby/cyclecore/pkg/config"
	"github.com/cuemby/cyclecore/pkg/db"
	"github.com/cuemby/cyclecore/pkg/eventtimer"
	"github.com/cuemby/cyclecore/pkg/status"
	"github.com/cuemby/cyclecore/pkg/taskstate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTask(t *testing.T) *Task {
	t.Helper()
	return &Task{
		State:      taskstate.New("foo.20180101T00", status.Ready),
		Identity:   "foo.20180101T00",
		CyclePoint: "20180101T00",
		Name:       "foo",
		SubmitNum:  1,
	}
}

func newReconciler() *Reconciler {
	return New(eventtimer.NewRegistry(time.Minute), &config.Lookup{}, nil, "cylc")
}

func TestNormalRunReachesSucceeded(t *testing.T) {
	r := newReconciler()
	task := newTask(t)
	now := time.Now()

	r.ProcessMessage(task, Message{Text: "submitted", IncomingTime: now, HasSubmitNum: true, SubmitNum: 1}, nil)
	r.ProcessMessage(task, Message{Text: "started", IncomingTime: now.Add(time.Second), HasSubmitNum: true, SubmitNum: 1}, nil)
	r.ProcessMessage(task, Message{Text: "succeeded", IncomingTime: now.Add(2 * time.Second), HasSubmitNum: true, SubmitNum: 1}, nil)

	assert.Equal(t, status.Succeeded, task.State.Status)
	assert.True(t, task.State.Outputs.IsCompleted("submitted"))
	assert.True(t, task.State.Outputs.IsCompleted("started"))
	assert.True(t, task.State.Outputs.IsCompleted("succeeded"))
}

func TestStaleStartedAfterSuccessTriggersConfirmByPoll(t *testing.T) {
	r := newReconciler()
	task := newTask(t)
	now := time.Now()

	r.ProcessMessage(task, Message{Text: "submitted", IncomingTime: now}, nil)
	r.ProcessMessage(task, Message{Text: "succeeded", IncomingTime: now.Add(2 * time.Second)}, nil)
	require.Equal(t, status.Succeeded, task.State.Status)

	polled := 0
	r.ProcessMessage(task, Message{Text: "started", IncomingTime: now.Add(time.Second)}, func(identity, reason string) {
		polled++
	})

	assert.Equal(t, status.Succeeded, task.State.Status, "status unchanged: late started did not regress it")
	assert.Equal(t, 1, polled, "poll_fn invoked exactly once")
}

func TestOutOfOrderSubmitNumIgnored(t *testing.T) {
	r := newReconciler()
	task := newTask(t)
	task.SubmitNum = 3

	r.ProcessMessage(task, Message{Text: "started", IncomingTime: time.Now(), HasSubmitNum: true, SubmitNum: 2}, nil)

	assert.Equal(t, status.Ready, task.State.Status, "no state change for stale submit-num")
}

func TestRetryPathSubmitFailedThenExhaustion(t *testing.T) {
	r := newReconciler()
	task := newTask(t)
	task.SubmitRetryTimer = actiontimer.New([]time.Duration{30 * time.Second})
	now := time.Now()

	r.ProcessMessage(task, Message{Text: "submission failed", IncomingTime: now}, nil)
	assert.Equal(t, status.SubmitRetrying, task.State.Status)

	// The retried submission puts the task back in ready; a submit failure
	// straight from submit-retrying would be a lattice regression and go to
	// confirm-by-poll instead.
	task.State.Status = status.Ready
	r.ProcessMessage(task, Message{Text: "submission failed", IncomingTime: now.Add(31 * time.Second)}, nil)
	assert.Equal(t, status.SubmitFailed, task.State.Status)
}

type recordingDB struct {
	events []db.TaskEventRow
	jobs   []db.TaskJobDelta
}

func (f *recordingDB) PutInsertTaskEvents(taskID string, row db.TaskEventRow) error {
	f.events = append(f.events, row)
	return nil
}

func (f *recordingDB) PutUpdateTaskJobs(taskID string, submitNum int, delta db.TaskJobDelta) error {
	f.jobs = append(f.jobs, delta)
	return nil
}

func (f *recordingDB) PutUpdateTaskOutputs(string, db.TaskOutputsRow) error { return nil }
func (f *recordingDB) Close() error                                         { return nil }

func TestAbortedMessageRecordsRunSignalAndEventRow(t *testing.T) {
	rec := &recordingDB{}
	r := New(eventtimer.NewRegistry(time.Minute), &config.Lookup{}, rec, "cylc")
	task := newTask(t)
	task.State.ResetState(status.Running)
	require.NoError(t, task.State.MessageStarted(time.Now()))

	r.ProcessMessage(task, Message{Text: "CYLC_JOB_ABORTED:custom abort reason", IncomingTime: time.Now()}, nil)

	assert.Equal(t, status.Failed, task.State.Status)

	sawRunSignal := false
	for _, d := range rec.jobs {
		if d.RunSignal == "custom abort reason" {
			sawRunSignal = true
		}
	}
	sawEventRow := false
	for _, e := range rec.events {
		if e.Event == "aborted" && e.Message == "CYLC_JOB_ABORTED:custom abort reason" {
			sawEventRow = true
		}
	}
	assert.True(t, sawRunSignal, "abort reason written to the job row's run_signal")
	assert.True(t, sawEventRow, "abort message written as an event row")
}

func TestVacatedResetsToSubmittedWithoutPoll(t *testing.T) {
	r := newReconciler()
	task := newTask(t)
	task.State.ResetState(status.Running)
	require.NoError(t, task.State.MessageStarted(time.Now()))

	polled := 0
	r.ProcessMessage(task, Message{Text: "CYLC_JOB_VACATED:host1", IncomingTime: time.Now()}, func(identity, reason string) {
		polled++
	})

	assert.Equal(t, status.Submitted, task.State.Status)
	assert.True(t, task.State.JobVacated)
	assert.Equal(t, 0, polled, "vacation is believed without polling")
}
