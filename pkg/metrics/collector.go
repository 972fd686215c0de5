package metrics

import (
	"time"

	"github.com/cuemby/cyclecore/pkg/eventtimer"
)

// Collector periodically samples the event-timer registry and publishes
// gauge metrics from it. It does not itself drive ProcessEvents.
type Collector struct {
	registry *eventtimer.Registry
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector over reg.
func NewCollector(reg *eventtimer.Registry) *Collector {
	return &Collector{
		registry: reg,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics on a 15-second interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	EventTimersActive.WithLabelValues("total").Set(float64(c.registry.Len()))
}
