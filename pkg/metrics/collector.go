package metrics

import (
	"time"
)

// Reporter publishes its current state into gauges when polled
type Reporter interface {
	ReportMetrics()
}

// Collector periodically polls reporters for gauge values
type Collector struct {
	reporters []Reporter
	interval  time.Duration
	stopCh    chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(interval time.Duration, reporters ...Reporter) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		reporters: reporters,
		interval:  interval,
		stopCh:    make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
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

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	for _, r := range c.reporters {
		r.ReportMetrics()
	}
}
