// Package procpool is the external process pool spec.md places out of
// scope ("the process pool that actually runs outbound sub-commands").
// It is the one point where parallelism exists in the system: the
// task-event core stays single-threaded and only ever calls Submit,
// never runs a sub-command itself.
package procpool

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/cuemby/cyclecore/pkg/log"
	"golang.org/x/sync/errgroup"
)

// Context describes one sub-command submission (spec §6: "context =
// {cmd_key, argv, env, stdin?, shell?, id_keys?}").
type Context struct {
	CmdKey string
	Argv   []string
	Env    []string
	Stdin  string
	IDKeys []string

	// Shell, when true, runs Argv[0] as a shell command line via
	// "/bin/sh -c" instead of exec'ing argv directly. The custom-handler
	// driver sets this (spec §6: "the template-substituted string, shell-
	// interpreted"); mail/logs dispatch never sets it, since neither ever
	// needs redirection, chaining or variable expansion.
	Shell bool

	Timeout time.Duration // 0 means no wall-clock timeout

	// CorrelationID, if set, ties this submission to the event-timer entry
	// that scheduled it; it is written on procpool's dispatch debug log line.
	CorrelationID string
}

// Result is handed back to the callback (spec §6: "process_ctx.ret_code",
// "process_ctx.err", "process_ctx.cmd_kwargs").
type Result struct {
	RetCode   int
	Out       string
	Err       string
	CmdKwargs []string
}

// Callback is invoked exactly once per accepted Submit, from a pool
// goroutine never from the caller's. A Submit that returns an error never
// invokes it.
type Callback func(res Result)

// Pool is a bounded worker pool fed by a 256-slot submission channel
// (Submit fails with "queue full" when it is full); Concurrency caps how many sub-commands run at once, mirroring the
// teacher's one-goroutine-per-monitored-entity pattern but capped instead
// of unbounded.
type Pool struct {
	concurrency int
	jobs        chan job
	wg          sync.WaitGroup
	mu          sync.Mutex
	stopped     bool
}

type job struct {
	ctx      Context
	cb       Callback
	extraArg []string
}

// New creates a pool with the given worker concurrency and starts it.
func New(concurrency int) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	p := &Pool{
		concurrency: concurrency,
		jobs:        make(chan job, 256),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// Submit queues a sub-command for execution (spec's put_command). extraArgs
// are appended to argv before exec, mirroring put_command's extra_args
// parameter; with Shell set only argv[0] is run, so they have no effect.
// The handler drivers in this module pass nil.
func (p *Pool) Submit(ctx Context, extraArgs []string, cb Callback) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return fmt.Errorf("procpool: submit after Stop")
	}
	p.mu.Unlock()

	select {
	case p.jobs <- job{ctx: ctx, cb: cb, extraArg: extraArgs}:
		return nil
	default:
		return fmt.Errorf("procpool: queue full")
	}
}

// run fans the job channel out across a bounded errgroup of workers.
func (p *Pool) run() {
	defer p.wg.Done()
	g := new(errgroup.Group)
	g.SetLimit(p.concurrency)

	for j := range p.jobs {
		j := j
		g.Go(func() error {
			p.execute(j)
			return nil
		})
	}
	_ = g.Wait()
}

func (p *Pool) execute(j job) {
	argv := append(append([]string{}, j.ctx.Argv...), j.extraArg...)
	if len(argv) == 0 {
		j.cb(Result{RetCode: 1, Err: "empty argv", CmdKwargs: j.ctx.IDKeys})
		return
	}

	timeout := j.ctx.Timeout
	if timeout <= 0 {
		timeout = 0
	}

	var execCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		execCtx, cancel = context.WithTimeout(context.Background(), timeout)
	} else {
		execCtx, cancel = context.WithCancel(context.Background())
	}
	defer cancel()

	var cmd *exec.Cmd
	if j.ctx.Shell {
		cmd = exec.CommandContext(execCtx, "/bin/sh", "-c", argv[0])
	} else {
		cmd = exec.CommandContext(execCtx, argv[0], argv[1:]...)
	}
	if len(j.ctx.Env) > 0 {
		cmd.Env = j.ctx.Env
	}
	if j.ctx.Stdin != "" {
		cmd.Stdin = bytes.NewBufferString(j.ctx.Stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Logger.Debug().
		Str("cmd_key", j.ctx.CmdKey).
		Str("correlation_id", j.ctx.CorrelationID).
		Strs("argv", argv).
		Msg("procpool: dispatching")

	err := cmd.Run()
	retCode := 0
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
		if stderr.Len() > 0 {
			errMsg = stderr.String()
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			retCode = exitErr.ExitCode()
		} else {
			retCode = 1
		}
	}

	j.cb(Result{
		RetCode:   retCode,
		Out:       stdout.String(),
		Err:       errMsg,
		CmdKwargs: j.ctx.IDKeys,
	})
}

// Stop closes the submission channel and waits for in-flight commands to
// complete their callbacks, per spec's "in-flight sub-commands complete
// normally" cancellation note.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
