package taskstate

import (
	"testing"
	"time"

	"github.com/cuemby/cyclecore/pkg/status"
	"github.com/cuemby/cyclecore/pkg/taskoutput"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalRunCoherence(t *testing.T) {
	now := time.Now()
	ts := New("foo.20180101T00", status.Waiting)

	require.NoError(t, ts.MessageSubmitted(now))
	assert.Equal(t, status.Submitted, ts.Status)
	assert.True(t, ts.Outputs.IsCompleted(taskoutput.Submitted))

	require.NoError(t, ts.MessageStarted(now.Add(time.Second)))
	assert.Equal(t, status.Running, ts.Status)
	assert.True(t, ts.Outputs.IsCompleted(taskoutput.Started))

	require.NoError(t, ts.MessageSucceeded(now.Add(2*time.Second)))
	assert.Equal(t, status.Succeeded, ts.Status)
	assert.True(t, ts.Outputs.IsCompleted(taskoutput.Succeeded))
	require.Len(t, ts.RunHistory, 1)
}

func TestMessageSubmittedNoOpAfterStarted(t *testing.T) {
	now := time.Now()
	ts := New("foo.1", status.Submitted)
	require.NoError(t, ts.MessageStarted(now))
	require.NoError(t, ts.MessageSubmitted(now))
	assert.Equal(t, status.Running, ts.Status, "a stale submitted message must not regress a running task")
}

func TestSubmitRetryThenExhaustion(t *testing.T) {
	ts := New("foo.1", status.Ready)
	require.NoError(t, ts.SubmitFailed(time.Now(), true))
	assert.Equal(t, status.SubmitRetrying, ts.Status)

	require.NoError(t, ts.SubmitFailed(time.Now(), false))
	assert.Equal(t, status.SubmitFailed, ts.Status)
	assert.True(t, ts.Outputs.IsCompleted(taskoutput.SubmitFailed))
}

func TestVacatedResetsToSubmittedWithoutPoll(t *testing.T) {
	ts := New("foo.1", status.Running)
	ts.StartedAt = time.Now()
	require.NoError(t, ts.Vacated(time.Now()))
	assert.Equal(t, status.Submitted, ts.Status)
	assert.True(t, ts.JobVacated)
	assert.True(t, ts.StartedAt.IsZero())
}

func TestHoldFromNeverActiveParksImmediately(t *testing.T) {
	ts := New("foo.1", status.Waiting)
	ts.Hold()
	assert.Equal(t, status.Held, ts.Status)
	assert.Equal(t, status.Waiting, ts.HoldSwap)

	ts.Unhold()
	assert.Equal(t, status.Waiting, ts.Status)
	assert.Equal(t, status.Status(""), ts.HoldSwap)
}

func TestHoldFromActivePendsUntilFinish(t *testing.T) {
	ts := New("foo.1", status.Running)
	ts.Hold()
	assert.Equal(t, status.Running, ts.Status, "active tasks stay active; hold is deferred")
	assert.Equal(t, status.Held, ts.HoldSwap)
}

func TestResetWhileParkedReparksAtNewLatentStatus(t *testing.T) {
	ts := New("foo.1", status.Running)
	ts.Hold() // HoldSwap = held, Status stays running (pending hold-on-finish)

	require.NoError(t, ts.ResetState(status.Waiting))
	assert.Equal(t, status.Held, ts.Status, "resetting to a non-final status while parked re-parks the task")
	assert.Equal(t, status.Waiting, ts.HoldSwap)
}

func TestFinalStatusDropsStaleHoldInsteadOfParking(t *testing.T) {
	ts := New("foo.1", status.Running)
	ts.Hold() // HoldSwap = held, Status stays running (pending hold-on-finish)

	require.NoError(t, ts.MessageSucceeded(time.Now()))
	assert.Equal(t, status.Succeeded, ts.Status, "a final target drops the stale hold instead of parking it")
	assert.Equal(t, status.Status(""), ts.HoldSwap)
	assert.True(t, ts.Outputs.IsCompleted(taskoutput.Succeeded), "the succeeded output must survive, not get wiped by a false Held coherence pass")
}

func TestResetToWaitingClearsPrerequisites(t *testing.T) {
	ts := New("foo.1", status.Queued)
	p := &fakePrereq{satisfied: true}
	ts.Prerequisites = []Prerequisite{p}
	assert.True(t, ts.IsSatisfied())

	require.NoError(t, ts.ResetState(status.Waiting))
	assert.False(t, p.satisfied)
	assert.False(t, ts.IsSatisfied())
}

type fakePrereq struct{ satisfied bool }

func (f *fakePrereq) SatisfyMe(map[string]bool) bool   { return f.satisfied }
func (f *fakePrereq) IsSatisfied() bool                { return f.satisfied }
func (f *fakePrereq) SetSatisfied()                    { f.satisfied = true }
func (f *fakePrereq) SetNotSatisfied()                 { f.satisfied = false }
func (f *fakePrereq) GetResolvedDependencies() []string { return nil }
func (f *fakePrereq) GetTargetPoints() []string         { return nil }
