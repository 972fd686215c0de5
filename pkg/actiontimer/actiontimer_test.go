package actiontimer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyDelaysRetriesOnceImmediately(t *testing.T) {
	timer := New(nil)
	now := time.Now()

	delay, ok := timer.Next(now, false)
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), delay)

	_, ok = timer.Next(now, false)
	assert.False(t, ok, "second Next call should exhaust an empty delay list")
}

func TestRetryBudgetExhaustsAfterN(t *testing.T) {
	delays := []time.Duration{30 * time.Second, 60 * time.Second}
	timer := New(delays)
	now := time.Now()

	d1, ok := timer.Next(now, false)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, d1)

	d2, ok := timer.Next(now, false)
	require.True(t, ok)
	assert.Equal(t, 60*time.Second, d2)

	_, ok = timer.Next(now, false)
	assert.False(t, ok)
}

func TestNoExhaustNeverGivesUp(t *testing.T) {
	timer := New([]time.Duration{time.Second})
	now := time.Now()

	_, ok := timer.Next(now, true)
	require.True(t, ok)
	_, ok = timer.Next(now, true)
	require.True(t, ok)
	_, ok = timer.Next(now, true)
	assert.True(t, ok, "no-exhaust timers keep retrying on the last delay")
}

func TestIsDelayDone(t *testing.T) {
	timer := New([]time.Duration{10 * time.Second})
	now := time.Now()
	_, ok := timer.Next(now, false)
	require.True(t, ok)

	assert.False(t, timer.IsDelayDone(now))
	assert.True(t, timer.IsDelayDone(now.Add(11*time.Second)))
}

func TestWaitingFlag(t *testing.T) {
	timer := New(nil)
	assert.False(t, timer.Waiting())
	timer.SetWaiting()
	assert.True(t, timer.Waiting())
	timer.UnsetWaiting()
	assert.False(t, timer.Waiting())
}
