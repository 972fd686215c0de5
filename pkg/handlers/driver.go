package handlers

import (
	"github.com/cuemby/cyclecore/pkg/db"
	"github.com/cuemby/cyclecore/pkg/procpool"
)

// ActivityLogger appends per-(task,submit) activity-log lines (spec §6:
// "Per-task activity log"). Implementations should fall back to the suite
// log if the job directory is absent (spec §7) — that policy lives in the
// concrete implementation the core is wired with, not here.
type ActivityLogger interface {
	Log(point, name string, submitNum int, line string)
}

// Driver bundles the three C7 handler drivers behind eventtimer.Dispatcher.
// It is the one place process-pool submissions and DB/activity-log
// side-effects meet.
type Driver struct {
	Pool     *procpool.Pool
	Ctx      SuiteContext
	DB       db.Adapter
	Activity ActivityLogger
}

// NewDriver wires a Driver with ssh/rsync command defaults matching the
// source's global-config defaults.
func NewDriver(pool *procpool.Pool, ctx SuiteContext, adapter db.Adapter, activity ActivityLogger) *Driver {
	if ctx.SSHCommand == "" {
		ctx.SSHCommand = "ssh"
	}
	if ctx.RsyncCommand == "" {
		ctx.RsyncCommand = "rsync -a --timeout=120"
	}
	return &Driver{Pool: pool, Ctx: ctx, DB: adapter, Activity: activity}
}
