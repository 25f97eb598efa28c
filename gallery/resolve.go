package gallery

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"flickrgallery/snapshot"
)

// Source tags where a resolved list came from.
type Source string

const (
	SourceNone    Source = "none"
	SourceCache   Source = "cache"
	SourceNetwork Source = "network"
)

// Result is what a refresh cycle hands to the display layer.
type Result struct {
	URLs       []string
	CapturedAt time.Time
	Source     Source

	// FetchErr is set when the remote fetch failed and the cached result
	// was kept instead. SaveErr is set when a fresh list was shown but could
	// not be persisted.
	FetchErr error
	SaveErr  error
}

// Empty reports whether the result carries no URLs.
func (r Result) Empty() bool {
	return len(r.URLs) == 0
}

func (r Result) clone() Result {
	r.URLs = snapshot.CloneURLs(r.URLs)
	return r
}

// ResolveCurrentList loads the snapshot as a provisional result and, when
// isConnected, fetches a candidate list and reconciles the two. It never
// fetches while offline and never overwrites the cache with a failed or
// empty fetch. If ctx ends before the cycle does, the result is empty with
// FetchErr wrapping ctx.Err(); the cycle itself still completes.
func (m *Manager) ResolveCurrentList(ctx context.Context, isConnected bool) Result {
	return m.cycle(ctx, isConnected, false)
}

// Refresh is the manual (pull-to-refresh) variant of ResolveCurrentList.
// With force set, any non-empty fetch is saved even when it matches the
// cached list, restarting the expiry window.
func (m *Manager) Refresh(ctx context.Context, isConnected, force bool) Result {
	return m.cycle(ctx, isConnected, force && isConnected)
}

// cycle runs at most one refresh per Manager at a time. Concurrent callers
// asking for the same mode share the running cycle. The cycle itself runs on
// a detached context bounded by CycleTimeout, so a caller that gives up only
// stops waiting; the fetch and save still complete for everyone else.
func (m *Manager) cycle(ctx context.Context, connected, force bool) Result {
	key := m.cfg.CacheKey + "|" + strconv.FormatBool(connected) + "|" + strconv.FormatBool(force)
	ch := m.group.DoChan(key, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.CycleTimeout)
		defer cancel()
		m.cycleMu.Lock()
		defer m.cycleMu.Unlock()
		return m.resolve(runCtx, connected, force), nil
	})
	select {
	case r := <-ch:
		res := r.Val.(Result)
		if r.Shared {
			res = res.clone()
		}
		return res
	case <-ctx.Done():
		return Result{
			URLs:     []string{},
			Source:   SourceNone,
			FetchErr: fmt.Errorf("%w: %w", ErrNetworkFetch, ctx.Err()),
		}
	}
}

func (m *Manager) resolve(ctx context.Context, connected, force bool) Result {
	res := cacheResult(m.LoadSnapshot(ctx))
	if !connected {
		return res
	}
	if m.fetch == nil {
		res.FetchErr = fmt.Errorf("%w: no fetcher configured", ErrNetworkFetch)
		return res
	}

	urls, err := m.fetch.FetchRemoteList(ctx)
	if err != nil {
		if !errors.Is(err, ErrNetworkFetch) {
			err = fmt.Errorf("%w: %v", ErrNetworkFetch, err)
		}
		m.logf("gallery: fetch failed, keeping %s result: %v", res.Source, err)
		res.FetchErr = err
		return res
	}
	if len(urls) == 0 {
		m.logf("gallery: fetch returned no photos, keeping %s result", res.Source)
		return res
	}

	if force || m.ShouldAccept(ctx, urls) {
		fresh := Result{URLs: snapshot.CloneURLs(urls), Source: SourceNetwork}
		capturedAt, err := m.SaveSnapshot(ctx, urls)
		if err != nil {
			fresh.SaveErr = err
			return fresh
		}
		fresh.CapturedAt = capturedAt
		m.logf("gallery: accepted %d urls (fp=%016x)", len(urls), snapshot.Fingerprint(urls))
		return fresh
	}

	if res.Empty() {
		// Cold cache that nonetheless matched; show the list without saving.
		return Result{URLs: snapshot.CloneURLs(urls), Source: SourceNetwork}
	}
	return res
}

func cacheResult(snap snapshot.Snapshot) Result {
	if snap.Empty() {
		return Result{URLs: []string{}, Source: SourceNone}
	}
	return Result{URLs: snap.URLs, CapturedAt: snap.CapturedAt, Source: SourceCache}
}
