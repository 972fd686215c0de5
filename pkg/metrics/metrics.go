package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Task state metrics
	TasksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cyclecore_tasks_total",
			Help: "Total number of tasks by status",
		},
		[]string{"status"},
	)

	TaskStateTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclecore_task_state_transitions_total",
			Help: "Total number of task state transitions by from/to status",
		},
		[]string{"from", "to"},
	)

	// Reconciler metrics
	MessagesProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclecore_messages_processed_total",
			Help: "Total number of task messages processed by outcome",
		},
		[]string{"outcome"},
	)

	MessageProcessingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cyclecore_message_processing_duration_seconds",
			Help:    "Time taken to process one task message in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ConfirmByPollTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cyclecore_confirm_by_poll_total",
			Help: "Total number of times a message triggered confirm-by-poll",
		},
	)

	// Retry metrics
	ExecutionRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cyclecore_execution_retries_total",
			Help: "Total number of execution retries scheduled after a failed message",
		},
	)

	SubmissionRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cyclecore_submission_retries_total",
			Help: "Total number of submission retries scheduled after a submit-failed message",
		},
	)

	// Event-timer registry metrics
	EventTimersActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cyclecore_event_timers_active",
			Help: "Number of event-timer entries currently registered, by handler kind",
		},
		[]string{"kind"},
	)

	EventTimerTickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cyclecore_event_timer_tick_duration_seconds",
			Help:    "Time taken for one ProcessEvents tick in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Handler dispatch metrics
	HandlerDispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclecore_handler_dispatch_total",
			Help: "Total number of handler dispatches by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	HandlerDispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cyclecore_handler_dispatch_duration_seconds",
			Help:    "Handler dispatch duration in seconds by kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(TasksTotal)
	prometheus.MustRegister(TaskStateTransitionsTotal)
	prometheus.MustRegister(MessagesProcessedTotal)
	prometheus.MustRegister(MessageProcessingDuration)
	prometheus.MustRegister(ConfirmByPollTotal)
	prometheus.MustRegister(ExecutionRetriesTotal)
	prometheus.MustRegister(SubmissionRetriesTotal)
	prometheus.MustRegister(EventTimersActive)
	prometheus.MustRegister(EventTimerTickDuration)
	prometheus.MustRegister(HandlerDispatchTotal)
	prometheus.MustRegister(HandlerDispatchDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
