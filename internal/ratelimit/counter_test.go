package ratelimit

import (
	"testing"
	"time"
)

func TestCounterThrottlesWithinInterval(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCounter(time.Minute)
	c.now = func() time.Time { return now }

	if _, _, ok := c.Inc(); !ok {
		t.Fatalf("first event should be reported")
	}
	for i := 0; i < 3; i++ {
		if _, _, ok := c.Inc(); ok {
			t.Fatalf("event %d inside the interval should be suppressed", i)
		}
	}
	now = now.Add(time.Minute)
	total, suppressed, ok := c.Inc()
	if !ok || total != 5 || suppressed != 3 {
		t.Fatalf("got total=%d suppressed=%d ok=%v, want 5/3/true", total, suppressed, ok)
	}
}

func TestCounterReset(t *testing.T) {
	c := NewCounter(time.Hour)
	c.Inc()
	if _, _, ok := c.Inc(); ok {
		t.Fatalf("expected suppression")
	}
	c.Reset()
	if _, suppressed, ok := c.Inc(); !ok || suppressed != 0 {
		t.Fatalf("expected report after reset, got ok=%v suppressed=%d", ok, suppressed)
	}
	if c.Total() != 3 {
		t.Fatalf("total=%d want 3", c.Total())
	}
}

func TestCounterZeroIntervalAndNil(t *testing.T) {
	c := NewCounter(0)
	for i := 0; i < 3; i++ {
		if _, _, ok := c.Inc(); !ok {
			t.Fatalf("zero interval should always report")
		}
	}
	var nilCounter *Counter
	if _, _, ok := nilCounter.Inc(); ok {
		t.Fatalf("nil counter should not report")
	}
}
