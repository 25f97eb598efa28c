// Package connectivity answers "is the network reachable right now?" with a
// single lightweight probe, and re-asks on a fixed interval while a screen is
// active.
package connectivity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	DefaultTarget   = "https://www.google.com"
	DefaultTimeout  = 5 * time.Second
	DefaultInterval = 30 * time.Second
)

// ErrProbe marks a failed reachability probe in Status.Err.
var ErrProbe = errors.New("connectivity: probe failed")

// Status is the outcome of the most recent probe.
type Status struct {
	Target    string
	Online    bool
	Latency   time.Duration
	CheckedAt time.Time
	Err       error
}

// Prober issues HEAD requests against a highly-available target.
type Prober struct {
	target  string
	timeout time.Duration
	client  *http.Client
	logger  *log.Logger

	mu   sync.Mutex
	last Status
}

// NewProber builds a prober for target. A nil client gets a private one that
// does not follow redirects, so a captive portal redirect is not mistaken for
// reachability of the target itself; any 3xx then reads as offline. Pass a
// client with default redirect handling to judge the final response instead.
func NewProber(target string, timeout time.Duration, client *http.Client, logger *log.Logger) *Prober {
	if strings.TrimSpace(target) == "" {
		target = DefaultTarget
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if client == nil {
		client = &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	return &Prober{
		target:  target,
		timeout: timeout,
		client:  client,
		logger:  logger,
	}
}

// Probe reports whether the target answered with a 2xx status. Transport
// errors, timeouts and other statuses all report false; the cause is kept in
// Last().Err and never returned. One attempt per call.
func (p *Prober) Probe(ctx context.Context) bool {
	if p == nil {
		return false
	}
	start := time.Now()
	err := p.head(ctx)
	status := Status{
		Target:    p.target,
		Online:    err == nil,
		Latency:   time.Since(start),
		CheckedAt: start.UTC(),
		Err:       err,
	}
	p.mu.Lock()
	prev := p.last
	p.last = status
	p.mu.Unlock()

	if err != nil && (prev.CheckedAt.IsZero() || prev.Online) {
		p.logf("connectivity: probe %s failed: %v", p.target, err)
	} else if err == nil && !prev.CheckedAt.IsZero() && !prev.Online {
		p.logf("connectivity: %s reachable again (%s)", p.target, status.Latency.Round(time.Millisecond))
	}
	return status.Online
}

func (p *Prober) head(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, p.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.target, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrProbe, err)
	}
	req.Header.Set("Cache-Control", "no-cache, no-store")
	req.Header.Set("Pragma", "no-cache")
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProbe, err)
	}
	resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: status %s", ErrProbe, resp.Status)
	}
	return nil
}

// Last returns the most recent probe outcome; zero before the first probe.
func (p *Prober) Last() Status {
	if p == nil {
		return Status{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *Prober) logf(format string, args ...any) {
	if p == nil || p.logger == nil {
		return
	}
	p.logger.Printf(format, args...)
}
