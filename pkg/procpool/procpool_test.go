package procpool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRunsCommandAndReportsSuccess(t *testing.T) {
	p := New(2)
	defer p.Stop()

	var mu sync.Mutex
	var got Result
	done := make(chan struct{})

	err := p.Submit(Context{CmdKey: "echo", Argv: []string{"echo", "hello"}, IDKeys: []string{"a", "b"}}, nil, func(res Result) {
		mu.Lock()
		got = res
		mu.Unlock()
		close(done)
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, got.RetCode)
	assert.Contains(t, got.Out, "hello")
	assert.Equal(t, []string{"a", "b"}, got.CmdKwargs)
}

func TestSubmitReportsNonZeroExit(t *testing.T) {
	p := New(1)
	defer p.Stop()

	done := make(chan Result, 1)
	err := p.Submit(Context{CmdKey: "false", Argv: []string{"false"}}, nil, func(res Result) {
		done <- res
	})
	require.NoError(t, err)

	select {
	case res := <-done:
		assert.NotEqual(t, 0, res.RetCode)
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired")
	}
}

func TestSubmitShellRunsCommandLineThroughShell(t *testing.T) {
	p := New(1)
	defer p.Stop()

	done := make(chan Result, 1)
	err := p.Submit(Context{
		CmdKey: "custom-handler",
		Argv:   []string{"echo one && echo two"},
		Shell:  true,
	}, nil, func(res Result) {
		done <- res
	})
	require.NoError(t, err)

	select {
	case res := <-done:
		assert.Equal(t, 0, res.RetCode)
		assert.Contains(t, res.Out, "one")
		assert.Contains(t, res.Out, "two")
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired")
	}
}

func TestSubmitAppendsExtraArgs(t *testing.T) {
	p := New(1)
	defer p.Stop()

	done := make(chan Result, 1)
	err := p.Submit(Context{CmdKey: "echo", Argv: []string{"echo"}}, []string{"extra"}, func(res Result) {
		done <- res
	})
	require.NoError(t, err)

	select {
	case res := <-done:
		assert.Contains(t, res.Out, "extra")
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired")
	}
}

func TestStopWaitsForInFlightCallback(t *testing.T) {
	p := New(1)
	called := make(chan struct{})
	err := p.Submit(Context{CmdKey: "sleep", Argv: []string{"sleep", "0"}}, nil, func(res Result) {
		close(called)
	})
	require.NoError(t, err)
	p.Stop()

	select {
	case <-called:
	default:
		t.Fatal("Stop returned before in-flight callback ran")
	}
}
