/*
Package metrics provides Prometheus metrics collection and exposition for
cyclecore.

The package defines and registers package-level collectors using the
Prometheus client library, covering task state, message reconciliation,
retry scheduling, the event-timer registry, and handler dispatch.

# Metrics Reference

Task state:

	cyclecore_tasks_total{status}
	cyclecore_task_state_transitions_total{from, to}

Reconciler:

	cyclecore_messages_processed_total{outcome}
	cyclecore_message_processing_duration_seconds
	cyclecore_confirm_by_poll_total

Retries:

	cyclecore_execution_retries_total
	cyclecore_submission_retries_total

Event-timer registry:

	cyclecore_event_timers_active{kind}
	cyclecore_event_timer_tick_duration_seconds

Handler dispatch:

	cyclecore_handler_dispatch_total{kind, outcome}
	cyclecore_handler_dispatch_duration_seconds{kind}

# Usage

	import "github.com/cuemby/cyclecore/pkg/metrics"

	http.Handle("/metrics", metrics.Handler())

	timer := metrics.NewTimer()
	// ... process a message ...
	timer.ObserveDuration(metrics.MessageProcessingDuration)

Collector samples a Registry on a fixed interval rather than being pushed
to on every mutation, the same pattern the teacher's reconciliation
collector used for cluster state:

	collector := metrics.NewCollector(registry)
	collector.Start()
	defer collector.Stop()

# Health Endpoint

RegisterComponent/SetVersion back a JSON `/healthz` handler independent of
the Prometheus exposition; see health.go.
*/
package metrics
