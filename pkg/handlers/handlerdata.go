// Package handlers implements the three C7 drivers — mail batcher, job-log
// retriever, custom handler — that turn a ready event-timer entry into a
// process-pool submission. Each driver implements eventtimer.Dispatcher's
// corresponding method and shell-quotes everything it substitutes into a
// template, per the Design Notes' "uniform quoting" rule.
package handlers

import (
	"fmt"
	"sort"

	shellquote "github.com/kballard/go-shellquote"
)

// TaskEventData is the raw (unquoted) handler data for one task transition
// (spec §4.7). Meta and SuiteCfg carry the flattened suite/task metadata
// whose keys get the suite_/task_ treatment.
type TaskEventData struct {
	Event         string
	Suite         string
	Point         string
	Name          string
	SubmitNum     int
	ID            string
	Message       string
	BatchSysName  string
	BatchSysJobID string
	SubmitTime    string
	StartTime     string
	FinishTime    string
	UserAtHost    string
	SuiteCfg      map[string]string // "URL" aliases to suite_url
	TaskMeta      map[string]string // "URL" aliases to task_url
}

// quoteOrNone shell-quotes s, unless s is empty, in which case it quotes the
// literal string "None" per the Design Notes: null values must quote to
// "None" to preserve positional semantics.
func quoteOrNone(s string) string {
	if s == "" {
		return shellquote.Join("None")
	}
	return shellquote.Join(s)
}

// BuildHandlerData renders the substitution dictionary §4.7 describes,
// with every value already shell-quoted.
func (d TaskEventData) BuildHandlerData() map[string]string {
	m := map[string]string{
		"event":            shellquote.Join(d.Event),
		"suite":            shellquote.Join(d.Suite),
		"point":            shellquote.Join(d.Point),
		"name":             shellquote.Join(d.Name),
		"submit_num":       fmt.Sprintf("%d", d.SubmitNum),
		"id":               shellquote.Join(d.ID),
		"message":          shellquote.Join(d.Message),
		"batch_sys_name":   quoteOrNone(d.BatchSysName),
		"batch_sys_job_id": quoteOrNone(d.BatchSysJobID),
		"submit_time":      quoteOrNone(d.SubmitTime),
		"start_time":       quoteOrNone(d.StartTime),
		"finish_time":      quoteOrNone(d.FinishTime),
		"user@host":        quoteOrNone(d.UserAtHost),
	}

	for key, value := range d.SuiteCfg {
		if key == "URL" {
			m["suite_url"] = shellquote.Join(value)
			continue
		}
		m["suite_"+key] = shellquote.Join(value)
	}

	for key, value := range d.TaskMeta {
		if key == "URL" {
			m["task_url"] = shellquote.Join(value)
			continue
		}
		m[key] = shellquote.Join(value)
	}

	return m
}

// sortedKeys is a small helper for deterministic iteration over the
// handler-data map in tests and logs.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
