/*
Package events provides an in-memory event broker for cyclecore's pub/sub
signalling.

The broker broadcasts "something changed" notifications from the task-event
core to whatever external layer schedules and submits tasks. spec.md's
Non-goals scope that scheduling decision out of this module entirely: the
core's job stops at setting a changed flag.

# Architecture

	┌──────────────────── EVENT BROKER ────────────────────────┐
	│                                                            │
	│  Publisher → Event Channel (buffer: 100)                  │
	│       ↓                                                    │
	│  Broadcast Loop                                            │
	│       ↓                                                    │
	│  Subscriber Channels (buffer: 50 each)                     │
	└────────────────────────────────────────────────────────────┘

Event types:

  - task.state_changed: the task state machine applied a transition
  - task.output_completed: an output was marked complete
  - handler.dispatched: a C7 driver call returned
  - handler.timed_out: an event-timer entry exhausted its retries
  - registry.changed: a dispatched group settled successfully (exhaustion
    does not publish); this is the signal `pkg/eventtimer` wires via
    `Registry.SetChangeBroker`

# Usage

	import "github.com/cuemby/cyclecore/pkg/events"

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			fmt.Printf("[%s] %s: %s\n", event.Timestamp.Format(time.RFC3339), event.Type, event.Message)
		}
	}()

	reg := eventtimer.NewRegistry(60 * time.Second)
	reg.SetChangeBroker(broker)

Delivery to subscribers is non-blocking: a full subscriber buffer drops the
event rather than stalling the broadcast loop. Publish itself returns once
the event is queued on the broker's internal channel (or the broker is
stopped), so it waits while that 100-event buffer is full.

# Integration Points

  - pkg/eventtimer: publishes registry.changed on group settle
  - pkg/reconciler: the natural place to publish task.state_changed /
    task.output_completed, left to the caller that owns the Task value
  - whatever scheduling layer sits outside this module: subscribes to learn
    when to re-evaluate task readiness
*/
package events
