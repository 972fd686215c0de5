package handlers

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	shellwords "github.com/mattn/go-shellwords"

	"github.com/cuemby/cyclecore/pkg/eventtimer"
	"github.com/cuemby/cyclecore/pkg/procpool"
)

const (
	jobLogOut = "job.out"
	jobLogErr = "job.err"
)

// DispatchLogsGroup launches a single rsync-over-ssh per host+user group
// (spec §4.5 step 3, §6 "Log retrieval sub-command").
func (d *Driver) DispatchLogsGroup(keys []eventtimer.Key, ctx eventtimer.JobLogsRetrieveCtx, onResult func(ok bool, errMsg string)) {
	sshArgv, err := shellwords.Parse(d.Ctx.SSHCommand)
	if err != nil {
		onResult(false, fmt.Sprintf("bad ssh command: %v", err))
		return
	}
	rsyncArgv, err := shellwords.Parse(d.Ctx.RsyncCommand)
	if err != nil {
		onResult(false, fmt.Sprintf("bad rsync command: %v", err))
		return
	}

	argv := append([]string{}, rsyncArgv...)
	argv = append(argv, "--rsh="+strings.Join(sshArgv, " "))
	if d.Ctx.Debug {
		argv = append(argv, "-v")
	}
	if ctx.MaxSize != "" {
		argv = append(argv, "--max-size="+ctx.MaxSize)
	}

	includes := make(map[string]struct{})
	for _, k := range keys {
		includes[fmt.Sprintf("/%s", k.CyclePoint)] = struct{}{}
		includes[fmt.Sprintf("/%s/%s", k.CyclePoint, k.TaskName)] = struct{}{}
		includes[fmt.Sprintf("/%s/%s/%02d", k.CyclePoint, k.TaskName, k.SubmitNum)] = struct{}{}
		includes[fmt.Sprintf("/%s/%s/%02d/**", k.CyclePoint, k.TaskName, k.SubmitNum)] = struct{}{}
	}
	sortedIncludes := sortedSet(includes)
	for _, inc := range sortedIncludes {
		argv = append(argv, "--include="+inc)
	}
	argv = append(argv, "--exclude=/**")

	remoteDir := d.Ctx.RemoteJobLogDirFn(ctx.UserAtHost)
	argv = append(argv, ctx.UserAtHost+":"+remoteDir+"/")
	argv = append(argv, d.Ctx.LocalJobLogDir+"/")

	idKeys := make([]string, len(keys))
	for i, k := range keys {
		idKeys[i] = eventtimer.Describe(k)
	}

	submitErr := d.Pool.Submit(procpool.Context{
		CmdKey:        "job-logs-retrieve",
		Argv:          argv,
		Env:           os.Environ(),
		IDKeys:        idKeys,
		CorrelationID: ctx.ID,
	}, nil, func(res procpool.Result) {
		d.completeLogsGroup(keys, res, onResult)
	})
	if submitErr != nil {
		onResult(false, submitErr.Error())
	}
}

// completeLogsGroup re-derives per-task success from the local filesystem:
// job.out is always expected, job.err is additionally expected unless the
// triggering event is "succeeded" (spec §4.5: "Job-logs success is defined
// as existence of job.out plus (if the event is not succeeded) job.err").
func (d *Driver) completeLogsGroup(keys []eventtimer.Key, res procpool.Result, onResult func(ok bool, errMsg string)) {
	if res.RetCode != 0 {
		for _, k := range keys {
			if d.Activity != nil {
				d.Activity.Log(k.CyclePoint, k.TaskName, k.SubmitNum, "job-logs-retrieve ret_code="+fmt.Sprint(res.RetCode)+" err="+res.Err)
			}
		}
		onResult(false, res.Err)
		return
	}

	allOK := true
	for _, k := range keys {
		expect := []string{jobLogOut}
		if k.Key1.Event != "succeeded" {
			expect = append(expect, jobLogErr)
		}

		var missing []string
		for _, fname := range expect {
			path := filepath.Join(d.Ctx.LocalJobLogDir, k.CyclePoint, k.TaskName, fmt.Sprintf("%02d", k.SubmitNum), fname)
			if _, statErr := os.Stat(path); statErr != nil {
				missing = append(missing, fname)
			}
		}

		if len(missing) > 0 {
			allOK = false
			if d.Activity != nil {
				d.Activity.Log(k.CyclePoint, k.TaskName, k.SubmitNum,
					"File(s) not retrieved: "+strings.Join(missing, " "))
			}
		} else if d.Activity != nil {
			d.Activity.Log(k.CyclePoint, k.TaskName, k.SubmitNum, "job-logs-retrieve ret_code=0")
		}
	}

	onResult(allOK, "")
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
