package handlers

import (
	"fmt"

	"github.com/cuemby/cyclecore/pkg/eventtimer"
	"github.com/cuemby/cyclecore/pkg/procpool"
)

// DispatchCustom submits one shell command for a custom-handler entry
// (spec §4.5 step 2: "dispatch individually"; spec §6: "the template-
// substituted string (shell-interpreted)"). The command string was already
// built by BuildCustomHandlerCmd at setup time; it is run verbatim through
// a shell rather than split into argv, so redirection, `&&`/`;` chaining,
// `$VAR` expansion and globbing all work the way a configured handler
// command expects.
func (d *Driver) DispatchCustom(ctx eventtimer.CustomHandlerCtx, onResult func(ok bool, errMsg string)) {
	if ctx.Cmd == "" {
		onResult(false, "empty handler command")
		return
	}

	key := ctx.Key
	submitErr := d.Pool.Submit(procpool.Context{
		CmdKey:        "custom-handler",
		Argv:          []string{ctx.Cmd},
		Shell:         true,
		IDKeys:        []string{eventtimer.Describe(key)},
		CorrelationID: ctx.ID,
	}, nil, func(res procpool.Result) {
		ok := res.RetCode == 0
		line := fmt.Sprintf("%s ret_code=%d", ctx.Cmd, res.RetCode)
		if !ok {
			line += " err=" + res.Err
		}
		if d.Activity != nil {
			d.Activity.Log(key.CyclePoint, key.TaskName, key.SubmitNum, line)
		}
		onResult(ok, res.Err)
	})
	if submitErr != nil {
		onResult(false, submitErr.Error())
	}
}
