// Package ratelimit throttles repetitive log lines while still counting
// every occurrence.
package ratelimit

import (
	"sync"
	"time"
)

// Counter counts events and allows one report per interval. The zero value
// reports every event. Safe for concurrent use.
type Counter struct {
	interval time.Duration
	now      func() time.Time

	mu         sync.Mutex
	total      uint64
	suppressed uint64
	lastReport time.Time
}

// NewCounter returns a Counter allowing a report at most once per interval.
func NewCounter(interval time.Duration) *Counter {
	return &Counter{interval: interval}
}

// Inc records one event. It returns the running total, the number of events
// swallowed since the last allowed report, and whether this event may be
// reported.
func (c *Counter) Inc() (total, suppressed uint64, report bool) {
	if c == nil {
		return 0, 0, false
	}
	now := time.Now()
	if c.now != nil {
		now = c.now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total++
	if c.interval > 0 && !c.lastReport.IsZero() && now.Sub(c.lastReport) < c.interval {
		c.suppressed++
		return c.total, c.suppressed, false
	}
	suppressed = c.suppressed
	c.suppressed = 0
	c.lastReport = now
	return c.total, suppressed, true
}

// Reset clears the report window so the next event is reported, e.g. after
// the condition being counted has cleared.
func (c *Counter) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.lastReport = time.Time{}
	c.suppressed = 0
	c.mu.Unlock()
}

// Total returns the number of events recorded.
func (c *Counter) Total() uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}
