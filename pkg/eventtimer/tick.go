package eventtimer

import (
	"fmt"
	"sort"
	"time"

	"github.com/cuemby/cyclecore/pkg/events"
	"github.com/cuemby/cyclecore/pkg/log"
)

// Dispatcher is the narrow contract the scheduler tick needs from the C7
// handler drivers. Each Dispatch* call must eventually invoke onResult
// exactly once; the registry marks the group waiting before dispatch and
// relies on the callback to clear it (failure) or remove the entries
// (success).
type Dispatcher interface {
	DispatchCustom(ctx CustomHandlerCtx, onResult func(ok bool, errMsg string))
	DispatchMailGroup(keys []Key, ctx MailCtx, onResult func(ok bool, errMsg string))
	DispatchLogsGroup(keys []Key, ctx JobLogsRetrieveCtx, onResult func(ok bool, errMsg string))
}

// ProcessEvents runs one scheduler tick (spec §4.5): it promotes ready
// entries, groups mail/log-retrieval entries by context, and hands work to
// dispatcher. Entries currently in flight (waiting) are skipped.
func (r *Registry) ProcessEvents(now time.Time, dispatcher Dispatcher) {
	type ready struct {
		key Key
		e   *entry
	}

	r.mu.Lock()
	var readyEntries []ready
	var toRemove []Key
	mailGroups := make(map[mailGroupKey][]Key)
	mailCtxByGroup := make(map[mailGroupKey]MailCtx)
	logGroups := make(map[string][]Key)
	logCtxByGroup := make(map[string]JobLogsRetrieveCtx)

	for key, e := range r.entries {
		if e.timer.Waiting() {
			continue
		}

		if !e.timer.IsTimeoutSet() {
			entryLog := log.WithEventKey(key.CyclePoint, key.TaskName, key.SubmitNum, key.Key1.Event)
			delay, ok := e.timer.Next(now, false)
			if !ok {
				entryLog.Warn().
					Str("handler", string(key.Key1.Kind)).
					Msg("event handler failed (retries exhausted)")
				toRemove = append(toRemove, key)
				continue
			}
			entryLog.Info().
				Str("handler", string(key.Key1.Kind)).
				Dur("delay", delay).
				Msg("event handler retry scheduled")
		}

		if !e.timer.IsDelayDone(now) {
			continue
		}

		if e.ctx.Kind == KindMail && !r.stopping && now.Before(r.nextMailTime) {
			continue
		}

		e.timer.SetWaiting()
		readyEntries = append(readyEntries, ready{key: key, e: e})

		switch e.ctx.Kind {
		case KindMail:
			gk := e.ctx.Mail.groupKey()
			mailGroups[gk] = append(mailGroups[gk], key)
			mailCtxByGroup[gk] = *e.ctx.Mail
		case KindLogs:
			gk := e.ctx.Logs.UserAtHost
			logGroups[gk] = append(logGroups[gk], key)
			logCtxByGroup[gk] = *e.ctx.Logs
		}
	}

	for _, key := range toRemove {
		delete(r.entries, key)
	}

	if len(mailGroups) > 0 {
		r.nextMailTime = now.Add(r.mailInterval)
	}
	r.mu.Unlock()

	for _, re := range readyEntries {
		if re.e.ctx.Kind == KindCustom {
			ctx := *re.e.ctx.Custom
			key := re.key
			dispatcher.DispatchCustom(ctx, func(ok bool, errMsg string) {
				r.completeGroup([]Key{key}, ok, errMsg)
			})
		}
	}

	for gk, keys := range mailGroups {
		sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })
		ctx := mailCtxByGroup[gk]
		dispatcher.DispatchMailGroup(keys, ctx, func(ok bool, errMsg string) {
			r.completeGroup(keys, ok, errMsg)
		})
	}

	for gk, keys := range logGroups {
		sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })
		ctx := logCtxByGroup[gk]
		dispatcher.DispatchLogsGroup(keys, ctx, func(ok bool, errMsg string) {
			r.completeGroup(keys, ok, errMsg)
		})
	}
}

// completeGroup applies a driver callback to every entry in a dispatched
// group: success removes them all, failure clears waiting so the next tick
// reschedules the next delay.
func (r *Registry) completeGroup(keys []Key, ok bool, errMsg string) {
	r.mu.Lock()
	broker := r.changed
	for _, key := range keys {
		e, exists := r.entries[key]
		if !exists {
			continue
		}
		if ok {
			delete(r.entries, key)
			continue
		}
		e.timer.UnsetWaiting()
		e.timer.ClearTimeout()
		_ = errMsg // surfaced via the per-task activity log by the caller
	}
	r.mu.Unlock()

	if ok && broker != nil {
		broker.Publish(&events.Event{Type: events.EventSomethingChanged, Message: "event-timer group settled"})
	}
}

func keyLess(a, b Key) bool {
	if a.CyclePoint != b.CyclePoint {
		return a.CyclePoint < b.CyclePoint
	}
	if a.TaskName != b.TaskName {
		return a.TaskName < b.TaskName
	}
	return a.SubmitNum < b.SubmitNum
}

// Describe renders "point/name/submit" for activity logs and mail bodies.
func Describe(key Key) string {
	return fmt.Sprintf("%s/%s/%02d", key.CyclePoint, key.TaskName, key.SubmitNum)
}
