/*
Package log provides structured logging for cyclecore using zerolog.

The package wraps zerolog to provide JSON or console-formatted logging with
component-scoped child loggers, configurable log levels, and helper
functions for common logging patterns. All logs carry timestamps and
support filtering by severity for production debugging.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithComponent("reconciler")
	logger.Info().Str("task", "foo.20180101T00").Msg("processing task message")

	taskLogger := log.WithTaskID("foo.20180101T00")
	eventLogger := log.WithEventKey("20180101T00", "foo", 1, "succeeded")

# Output

Console (default):

	2018-01-01T10:30:02Z INF processing task message component=reconciler task=foo.20180101T00

JSON (log.Config{JSONOutput: true}):

	{"level":"info","time":"2018-01-01T10:30:02Z","component":"reconciler","task":"foo.20180101T00","message":"processing task message"}

# Log Levels

  - debug: verbose tracing (unhandled task messages, process-pool dispatch)
  - info: normal operational events (messages processed, handler retry
    scheduled)
  - warn: recoverable problems (stale submit-num ignored, handler exhausted
    retries, job failed)
  - error: operation failed and needs attention (custom handler template
    substitution failed)

cyclecore does not rotate its own log files; pair the console/JSON output
with an external rotator (logrotate, a sidecar, or the orchestrator's log
driver) the same way the teacher leaves rotation to the deployment
environment.
*/
package log
