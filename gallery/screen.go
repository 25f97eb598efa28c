package gallery

import (
	"context"
	"log"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"flickrgallery/connectivity"
)

// View is what the gallery screen renders.
type View struct {
	URLs       []string
	CapturedAt time.Time
	Source     Source
	Online     bool
	Refreshing bool
	FetchErr   error
}

// Screen ties one gallery activation to a Manager: it shows the cached list
// at once, refreshes in the background when online, and re-probes
// connectivity until deactivated.
type Screen struct {
	manager *Manager
	checker connectivity.Checker
	cfg     ScreenConfig
	logger  *log.Logger

	// notifyMu orders onUpdate calls and lets Deactivate wait out one in
	// progress. onUpdate must not call Activate or Deactivate.
	notifyMu sync.Mutex

	mu       sync.Mutex
	active   bool
	gen      uint64
	view     View
	onUpdate func(View)
	monitor  *connectivity.Monitor
	cancel   context.CancelFunc

	wg sync.WaitGroup
}

func NewScreen(manager *Manager, checker connectivity.Checker, cfg ScreenConfig, logger *log.Logger) *Screen {
	cfg.normalize()
	return &Screen{
		manager: manager,
		checker: checker,
		cfg:     cfg,
		logger:  logger,
	}
}

// Activate loads the snapshot and returns it as the provisional view. The
// connectivity probe runs alongside the load; once it answers, an online
// screen runs a refresh cycle in the background and reports the outcome
// through onUpdate. Activating an active screen returns the current view.
func (s *Screen) Activate(ctx context.Context, onUpdate func(View)) View {
	s.mu.Lock()
	if s.active {
		v := s.view
		s.mu.Unlock()
		return cloneView(v)
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.gen++
	gen := s.gen
	s.active = true
	s.onUpdate = onUpdate
	s.cancel = cancel
	s.mu.Unlock()

	probed := make(chan bool, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		probed <- s.probe(runCtx)
	}()

	provisional := cacheResult(s.manager.LoadSnapshot(ctx))
	monitor := connectivity.NewMonitor(s.checker, s.cfg.ProbeInterval, func(online bool) {
		s.setOnline(gen, online)
	})

	s.mu.Lock()
	if s.gen != gen {
		// Deactivated while loading.
		s.mu.Unlock()
		return viewOf(provisional, true, false)
	}
	// Optimistically online until the first probe answers.
	s.view = viewOf(provisional, true, true)
	s.monitor = monitor
	v := s.view
	s.mu.Unlock()

	monitor.Start(runCtx)
	s.wg.Add(1)
	go s.initialCycle(runCtx, gen, probed, monitor)
	return cloneView(v)
}

func (s *Screen) initialCycle(ctx context.Context, gen uint64, probed <-chan bool, monitor *connectivity.Monitor) {
	defer s.wg.Done()
	var online bool
	select {
	case online = <-probed:
	case <-ctx.Done():
		return
	}
	monitor.Seed(online)
	s.setOnline(gen, online)
	if !online {
		s.finish(gen)
		return
	}

	// The cycle outlives deactivation so a save is never cut short; only
	// its result is dropped.
	cycleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CycleTimeout)
	defer cancel()
	res := s.manager.ResolveCurrentList(cycleCtx, true)
	if !s.apply(gen, res, true) {
		s.logf("gallery: screen deactivated, discarding %s result", res.Source)
	}
}

// Refresh runs a manual refresh: connectivity probe and snapshot load in
// parallel, then a refresh cycle. It returns ErrScreenInactive when the
// screen is not active or is deactivated before the cycle completes.
func (s *Screen) Refresh(ctx context.Context) (View, error) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return View{}, ErrScreenInactive
	}
	gen := s.gen
	monitor := s.monitor
	s.view.Refreshing = true
	s.mu.Unlock()

	var online bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if monitor != nil {
			// Records the answer and reports a flip like a periodic tick.
			online = monitor.CheckNow(gctx)
		} else {
			online = s.probe(gctx)
		}
		return gctx.Err()
	})
	g.Go(func() error {
		provisional := cacheResult(s.manager.LoadSnapshot(gctx))
		s.mu.Lock()
		if s.gen == gen && s.active {
			s.view = viewOf(provisional, s.view.Online, true)
		}
		s.mu.Unlock()
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		s.finish(gen)
		return View{}, err
	}
	s.setOnline(gen, online)

	res := s.manager.Refresh(ctx, online, s.cfg.ForceManualRefresh)
	if err := ctx.Err(); err != nil {
		s.finish(gen)
		return View{}, err
	}
	if !s.apply(gen, res, online) {
		return View{}, ErrScreenInactive
	}
	return s.View(), nil
}

// Deactivate stops periodic probing and drops any result still in flight.
// When it returns no further onUpdate calls are made for this activation.
func (s *Screen) Deactivate() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.gen++
	monitor := s.monitor
	cancel := s.cancel
	s.monitor = nil
	s.cancel = nil
	s.onUpdate = nil
	s.view.Refreshing = false
	s.mu.Unlock()

	monitor.Stop()
	if cancel != nil {
		cancel()
	}
	s.notifyMu.Lock()
	s.notifyMu.Unlock()
}

// Wait blocks until background work started by Activate has finished,
// including cycles whose results were discarded.
func (s *Screen) Wait() {
	s.wg.Wait()
}

// View returns a copy of the current view.
func (s *Screen) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneView(s.view)
}

// Active reports whether the screen is between Activate and Deactivate.
func (s *Screen) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Screen) probe(ctx context.Context) bool {
	if s.checker == nil {
		return false
	}
	return s.checker.Probe(ctx)
}

func (s *Screen) setOnline(gen uint64, online bool) {
	s.update(gen, func(v *View) {
		v.Online = online
	})
}

func (s *Screen) finish(gen uint64) {
	s.update(gen, func(v *View) {
		v.Refreshing = false
	})
}

func (s *Screen) apply(gen uint64, res Result, online bool) bool {
	return s.update(gen, func(v *View) {
		*v = viewOf(res, online, false)
	})
}

// update applies fn to the view of activation gen and notifies onUpdate when
// the list or connectivity changed. It reports false when gen is no longer
// the active activation.
func (s *Screen) update(gen uint64, fn func(*View)) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if !s.active || s.gen != gen {
		s.mu.Unlock()
		return false
	}
	prev := s.view
	fn(&s.view)
	next := cloneView(s.view)
	notify := s.onUpdate
	s.mu.Unlock()

	if notify != nil && visibleChange(prev, next) {
		notify(next)
	}
	return true
}

func visibleChange(prev, next View) bool {
	return prev.Online != next.Online ||
		prev.Source != next.Source ||
		!prev.CapturedAt.Equal(next.CapturedAt) ||
		!slices.Equal(prev.URLs, next.URLs)
}

func viewOf(res Result, online, refreshing bool) View {
	return View{
		URLs:       res.URLs,
		CapturedAt: res.CapturedAt,
		Source:     res.Source,
		Online:     online,
		Refreshing: refreshing,
		FetchErr:   res.FetchErr,
	}
}

func cloneView(v View) View {
	v.URLs = slices.Clone(v.URLs)
	return v
}

func (s *Screen) logf(format string, args ...any) {
	if s == nil || s.logger == nil {
		return
	}
	s.logger.Printf(format, args...)
}
