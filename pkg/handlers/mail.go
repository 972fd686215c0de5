package handlers

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/cuemby/cyclecore/pkg/eventtimer"
	"github.com/cuemby/cyclecore/pkg/procpool"
)

// SuiteContext is the narrow slice of scheduler identity the mail/logs
// drivers need to render subjects, STDIN bodies and log directories.
type SuiteContext struct {
	Suite string
	Host  string
	Port  string
	Owner string

	// MailFooterTmpl, if set, is appended to the mail STDIN body with
	// %{host,port,owner,suite} substitution (spec §4.5).
	MailFooterTmpl string

	LocalJobLogDir    string
	RemoteJobLogDirFn func(userAtHost string) string

	// SSHCommand / RsyncCommand are the configured (global-config sourced)
	// command templates for the logs driver; defaulted by NewDriver.
	SSHCommand   string
	RsyncCommand string
	Debug        bool
}

// DispatchMailGroup builds one mail sub-command for a batch of grouped
// mail entries (spec §4.5 step 3, subject-selection rules).
func (d *Driver) DispatchMailGroup(keys []eventtimer.Key, ctx eventtimer.MailCtx, onResult func(bool, string)) {
	subject := mailSubject(keys, d.Ctx.Suite)
	stdin := mailStdin(keys, d.Ctx)

	env := os.Environ()
	if ctx.MailSMTP != "" {
		env = append(env, "smtp="+ctx.MailSMTP)
	}

	idKeys := make([]string, len(keys))
	for i, k := range keys {
		idKeys[i] = eventtimer.Describe(k)
	}

	err := d.Pool.Submit(procpool.Context{
		CmdKey:        "mail",
		Argv:          []string{"mail", "-s", subject, "-r", ctx.MailFrom, ctx.MailTo},
		Env:           env,
		Stdin:         stdin,
		IDKeys:        idKeys,
		CorrelationID: ctx.ID,
	}, nil, func(res procpool.Result) {
		ok := res.RetCode == 0
		for _, k := range keys {
			line := fmt.Sprintf("mail ret_code=%d", res.RetCode)
			if !ok {
				line += " err=" + res.Err
			}
			if d.Activity != nil {
				d.Activity.Log(k.CyclePoint, k.TaskName, k.SubmitNum, line)
			}
		}
		onResult(ok, res.Err)
	})
	if err != nil {
		onResult(false, err.Error())
	}
}

// mailSubject implements the 1-task/1-event, n-tasks/1-event, n-events
// selection rules verbatim.
func mailSubject(keys []eventtimer.Key, suite string) string {
	if len(keys) == 1 {
		k := keys[0]
		return fmt.Sprintf("[%s/%s/%02d %s] %s", k.CyclePoint, k.TaskName, k.SubmitNum, k.Key1.Event, suite)
	}

	events := make(map[string]struct{})
	for _, k := range keys {
		events[k.Key1.Event] = struct{}{}
	}
	if len(events) == 1 {
		var event string
		for e := range events {
			event = e
		}
		return fmt.Sprintf("[%d tasks %s] %s", len(keys), event, suite)
	}
	return fmt.Sprintf("[%d task events] %s", len(keys), suite)
}

// mailStdin builds the sorted event listing, the suite/host/port/owner
// block and the optional footer, per spec §4.5.
func mailStdin(keys []eventtimer.Key, ctx SuiteContext) string {
	sorted := append([]eventtimer.Key{}, keys...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.CyclePoint != b.CyclePoint {
			return a.CyclePoint < b.CyclePoint
		}
		if a.TaskName != b.TaskName {
			return a.TaskName < b.TaskName
		}
		return a.SubmitNum < b.SubmitNum
	})

	var b strings.Builder
	for _, k := range sorted {
		fmt.Fprintf(&b, "%s: %s/%s/%02d\n", k.Key1.Event, k.CyclePoint, k.TaskName, k.SubmitNum)
	}
	b.WriteString("\n")

	for _, label := range []struct{ name, value string }{
		{"suite", ctx.Suite}, {"host", ctx.Host}, {"port", ctx.Port}, {"owner", ctx.Owner},
	} {
		if label.value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label.name, label.value)
		}
	}

	if ctx.MailFooterTmpl != "" {
		footer := ctx.MailFooterTmpl
		footer = strings.ReplaceAll(footer, "%{host}", ctx.Host)
		footer = strings.ReplaceAll(footer, "%{port}", ctx.Port)
		footer = strings.ReplaceAll(footer, "%{owner}", ctx.Owner)
		footer = strings.ReplaceAll(footer, "%{suite}", ctx.Suite)
		b.WriteString(footer)
		b.WriteString("\n")
	}

	return b.String()
}
