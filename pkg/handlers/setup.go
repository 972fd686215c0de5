package handlers

import (
	"fmt"
	"time"

	"github.com/cuemby/cyclecore/pkg/actiontimer"
	"github.com/cuemby/cyclecore/pkg/config"
	"github.com/cuemby/cyclecore/pkg/db"
	"github.com/cuemby/cyclecore/pkg/eventtimer"
	"github.com/cuemby/cyclecore/pkg/log"
	"github.com/google/uuid"
)

// SetupTaskRef carries the identity the three setup routines need beyond
// config.TaskRef: cycle point, submit number and the local user@host for
// the "is this task remote" check.
type SetupTaskRef struct {
	config.TaskRef
	CyclePoint string
	SubmitNum  int
	LocalUser  string
}

func delaysOrZero(v interface{}) []time.Duration {
	durs, ok := v.([]time.Duration)
	if !ok || len(durs) == 0 {
		return []time.Duration{0}
	}
	return durs
}

// SetupEventHandlers runs the three parallel setup routines of spec §4.7
// and records the event to the DB, mirroring setup_event_handlers.
func SetupEventHandlers(reg *eventtimer.Registry, lookup *config.Lookup, adapter db.Adapter, task SetupTaskRef, event, message string, data TaskEventData) {
	if adapter != nil {
		_ = adapter.PutInsertTaskEvents(task.Name, db.TaskEventRow{
			Time:    time.Now(),
			Event:   event,
			Message: message,
		})
	}

	setupJobLogsRetrieval(reg, lookup, task, event)
	setupEventMail(reg, lookup, task, event)
	setupCustomEventHandlers(reg, lookup, task, event, data)
}

// setupJobLogsRetrieval mirrors _setup_job_logs_retrieval: only for
// failed/retry/succeeded, only for a genuinely remote task, only when
// configured, and only if no timer for this key already exists.
func setupJobLogsRetrieval(reg *eventtimer.Registry, lookup *config.Lookup, task SetupTaskRef, event string) {
	switch event {
	case "failed", "retry", "succeeded":
	default:
		return
	}

	userAtHost := task.Host
	if task.Owner != "" {
		userAtHost = task.Owner + "@" + task.Host
	}
	if userAtHost == task.LocalUser+"@localhost" || userAtHost == "localhost" {
		return
	}

	key := eventtimer.Key{
		Key1:       eventtimer.Key1{Kind: eventtimer.KindLogs, Event: event},
		CyclePoint: task.CyclePoint,
		TaskName:   task.Name,
		SubmitNum:  task.SubmitNum,
	}
	if reg.Exists(key) {
		return
	}

	ref := config.TaskRef{Name: task.Name, Owner: task.Owner, Host: task.Host}
	if retrieve, _ := lookup.GetHostConf(ref, "retrieve job logs", false, "").(bool); !retrieve {
		return
	}

	maxSize, _ := lookup.GetHostConf(ref, "retrieve job logs max size", "", "").(string)
	delays := delaysOrZero(lookup.GetHostConf(ref, "retrieve job logs retry delays", nil, ""))

	reg.Add(key, actiontimer.New(delays), eventtimer.Context{
		Kind: eventtimer.KindLogs,
		Logs: &eventtimer.JobLogsRetrieveCtx{Key: key, UserAtHost: userAtHost, MaxSize: maxSize, ID: uuid.NewString()},
	})
}

// setupEventMail mirrors _setup_event_mail: only for events in "mail
// events", one entry per (event, point, name, submit) — grouping happens
// later, at dispatch time, by MailCtx field-equality.
func setupEventMail(reg *eventtimer.Registry, lookup *config.Lookup, task SetupTaskRef, event string) {
	ref := config.TaskRef{Name: task.Name, Owner: task.Owner, Host: task.Host}
	mailEvents, _ := lookup.GetEventsConf(ref, "mail events", nil).([]string)
	if !containsString(mailEvents, event) {
		return
	}

	key := eventtimer.Key{
		Key1:       eventtimer.Key1{Kind: eventtimer.KindMail, Event: event},
		CyclePoint: task.CyclePoint,
		TaskName:   task.Name,
		SubmitNum:  task.SubmitNum,
	}
	if reg.Exists(key) {
		return
	}

	mailFrom, _ := lookup.GetEventsConf(ref, "mail from", "notifications@localhost").(string)
	mailTo, _ := lookup.GetEventsConf(ref, "mail to", task.LocalUser).(string)
	mailSMTP, _ := lookup.GetEventsConf(ref, "mail smtp", "").(string)
	delays := delaysOrZero(lookup.GetEventsConf(ref, "mail retry delays", nil))

	reg.Add(key, actiontimer.New(delays), eventtimer.Context{
		Kind: eventtimer.KindMail,
		Mail: &eventtimer.MailCtx{Key: key, MailFrom: mailFrom, MailTo: mailTo, MailSMTP: mailSMTP, ID: uuid.NewString()},
	})
}

// setupCustomEventHandlers mirrors _setup_custom_event_handlers: resolves
// the per-event or blanket handler list, builds one entry per handler
// (template-or-classic per Design Notes), indexed event-handler-NN.
func setupCustomEventHandlers(reg *eventtimer.Registry, lookup *config.Lookup, task SetupTaskRef, event string, data TaskEventData) {
	ref := config.TaskRef{Name: task.Name, Owner: task.Owner, Host: task.Host}

	handlers, _ := lookup.GetEventsConf(ref, event+" handler", nil).([]string)
	if handlers == nil {
		handlerEvents, _ := lookup.GetEventsConf(ref, "handler events", nil).([]string)
		if containsString(handlerEvents, event) {
			handlers, _ = lookup.GetEventsConf(ref, "handlers", nil).([]string)
		}
	}
	if len(handlers) == 0 {
		return
	}

	delays := delaysOrZero(lookup.GetEventsConf(ref, "handler retry delays",
		lookup.GetHostConf(ref, "task event handler retry delays", nil, "")))

	handlerData := data.BuildHandlerData()

	for i, handler := range handlers {
		key1Kind := eventtimer.HandlerKind(fmt.Sprintf("event-handler-%02d", i))
		key := eventtimer.Key{
			Key1:       eventtimer.Key1{Kind: key1Kind, Event: event},
			CyclePoint: task.CyclePoint,
			TaskName:   task.Name,
			SubmitNum:  task.SubmitNum,
		}
		if reg.Exists(key) {
			continue
		}

		cmd, err := BuildCustomHandlerCmd(handler, data.Event, data.Suite, data.ID, data.Message, handlerData)
		if err != nil {
			log.Logger.Error().Err(err).Str("task", task.Name).Str("event", event).Str("handler", handler).
				Msg("custom event handler template substitution failed, skipping")
			continue
		}

		reg.Add(key, actiontimer.New(delays), eventtimer.Context{
			Kind:   eventtimer.KindCustom,
			Custom: &eventtimer.CustomHandlerCtx{Key: key, Cmd: cmd, ID: uuid.NewString()},
		})
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
