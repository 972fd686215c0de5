// Package eventtimer implements the event-timer set: a process-wide
// registry mapping (handler-kind, event, cycle point, task, submit number)
// to an action-timer clock plus a driver context, and the scheduler tick
// that walks the registry, promotes ready entries, groups mail and
// log-retrieval entries by context, and hands work to a Dispatcher.
//
// Context variants (mail, job-logs-retrieve, custom-handler) are modelled
// as a tagged sum type rather than an interface hierarchy: the tick matches
// on Context.Kind and only one of the three pointer fields is populated.
// This keeps the registry a flat, comparable-by-value map instead of a tree
// of dynamic dispatch, and makes context grouping (mail batching, log
// retrieval by host) a plain map-keyed-by-struct operation.
package eventtimer
