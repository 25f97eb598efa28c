package connectivity

import (
	"context"
	"sync"
	"time"
)

// Checker is anything that can answer a reachability question.
type Checker interface {
	Probe(ctx context.Context) bool
}

// Monitor re-probes on a fixed interval until stopped. It is the explicit
// handle for the periodic connectivity check owned by one screen activation.
type Monitor struct {
	checker  Checker
	interval time.Duration
	onChange func(online bool)

	mu      sync.Mutex
	online  bool
	known   bool
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewMonitor returns a stopped monitor. onChange may be nil; it is called
// from the monitor goroutine whenever the online flag flips.
func NewMonitor(checker Checker, interval time.Duration, onChange func(bool)) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		checker:  checker,
		interval: interval,
		onChange: onChange,
	}
}

// Seed records an online state learned elsewhere (e.g. the activation probe)
// without firing onChange.
func (m *Monitor) Seed(online bool) {
	m.mu.Lock()
	m.online = online
	m.known = true
	m.mu.Unlock()
}

// Online returns the latest known state and whether any state is known yet.
func (m *Monitor) Online() (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online, m.known
}

// Start launches the probe loop. The first probe happens one interval after
// Start. Calling Start on a running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	if m == nil || m.checker == nil {
		return
	}
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	m.running = true
	m.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				m.check(runCtx)
			}
		}
	}()
}

// CheckNow probes immediately and applies the result like a tick would,
// firing onChange on a flip. A monitor without a checker reports offline.
func (m *Monitor) CheckNow(ctx context.Context) bool {
	if m == nil || m.checker == nil {
		return false
	}
	return m.check(ctx)
}

func (m *Monitor) check(ctx context.Context) bool {
	online := m.checker.Probe(ctx)
	if ctx.Err() != nil {
		return online
	}
	m.mu.Lock()
	changed := m.known && m.online != online
	m.online = online
	m.known = true
	m.mu.Unlock()
	if changed && m.onChange != nil {
		m.onChange(online)
	}
	return online
}

// Stop cancels the loop and waits for its goroutine to exit. Safe to call
// more than once and on a monitor that was never started.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	done := m.done
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	<-done
}

// Running reports whether the probe loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
