// Package gallery decides what image list a gallery screen shows: the
// persisted snapshot, a fresh copy of the remote feed, or nothing, given
// connectivity and what is already cached.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"flickrgallery/snapshot"
)

// Fetcher returns the remote feed as an ordered URL list. An empty list is a
// valid answer; failures are reported as errors and never panic.
type Fetcher interface {
	FetchRemoteList(ctx context.Context) ([]string, error)
}

// Manager owns the persisted snapshot and the refresh decision.
//
// Refresh cycles on one Manager are serialized; identical concurrent
// requests share a single cycle. Writes from different processes sharing
// the store are last-writer-wins.
type Manager struct {
	cfg    Config
	store  snapshot.Store
	fetch  Fetcher
	logger *log.Logger

	cycleMu sync.Mutex
	group   singleflight.Group
}

func NewManager(cfg Config, store snapshot.Store, fetch Fetcher, logger *log.Logger) *Manager {
	cfg.normalize()
	return &Manager{
		cfg:    cfg,
		store:  store,
		fetch:  fetch,
		logger: logger,
	}
}

// Config returns the normalized configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// LoadSnapshot reads the persisted list and capture time as one unit. Any
// storage failure yields the empty snapshot; an unavailable cache looks
// exactly like an empty one.
func (m *Manager) LoadSnapshot(ctx context.Context) snapshot.Snapshot {
	snap, err := m.readSnapshot(ctx)
	if err != nil {
		m.logf("gallery: load snapshot: %v", err)
		return emptySnapshot()
	}
	return snap
}

func emptySnapshot() snapshot.Snapshot {
	return snapshot.Snapshot{URLs: []string{}}
}

func (m *Manager) readSnapshot(ctx context.Context) (snapshot.Snapshot, error) {
	if m.store == nil {
		return snapshot.Snapshot{}, fmt.Errorf("%w: no store configured", ErrStorageRead)
	}
	values, err := m.readPair(ctx)
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("%w: %v", ErrStorageRead, err)
	}
	rawURLs, ok := values[m.cfg.CacheKey]
	if !ok {
		// A timestamp without a list is leftover from an interrupted write.
		return emptySnapshot(), nil
	}
	urls, err := snapshot.DecodeURLs(rawURLs)
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("%w: %v", ErrStorageRead, err)
	}
	snap := snapshot.Snapshot{URLs: urls}
	if rawTS, ok := values[m.cfg.TimestampKey]; ok {
		ts, err := snapshot.DecodeTimestamp(rawTS)
		if err != nil {
			// Keep the list usable offline; a zero capture time reads as expired.
			m.logf("gallery: ignoring unreadable %s: %v", m.cfg.TimestampKey, err)
		} else {
			snap.CapturedAt = ts
		}
	}
	return snap, nil
}

func (m *Manager) readPair(ctx context.Context) (map[string]string, error) {
	if b, ok := m.store.(snapshot.Batcher); ok {
		return b.GetMany(ctx, m.cfg.CacheKey, m.cfg.TimestampKey)
	}
	values := make(map[string]string, 2)
	for _, key := range []string{m.cfg.CacheKey, m.cfg.TimestampKey} {
		v, ok, err := m.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			values[key] = v
		}
	}
	return values, nil
}

// SaveSnapshot persists urls with the current time and returns that time
// (millisecond precision). Stores implementing snapshot.Batcher write both
// entries in one batch. Other stores clear the timestamp first, so an
// interrupted save leaves a list with no timestamp, which reads as expired
// and is overwritten by the next refresh.
func (m *Manager) SaveSnapshot(ctx context.Context, urls []string) (capturedAt time.Time, err error) {
	if m.store == nil {
		return time.Time{}, fmt.Errorf("%w: no store configured", ErrStorageWrite)
	}
	defer func() {
		if err != nil {
			m.logf("gallery: save snapshot: %v", err)
		}
	}()
	encoded, err := snapshot.EncodeURLs(urls)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	now := snapshot.TruncateMillis(m.cfg.Now())
	entries := []snapshot.Entry{
		{Key: m.cfg.CacheKey, Value: encoded},
		{Key: m.cfg.TimestampKey, Value: snapshot.EncodeTimestamp(now)},
	}
	if b, ok := m.store.(snapshot.Batcher); ok {
		if err := b.SetMany(ctx, entries...); err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", ErrStorageWrite, err)
		}
		return now, nil
	}
	if err := m.store.Delete(ctx, m.cfg.TimestampKey); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	for _, e := range entries {
		if err := m.store.Set(ctx, e.Key, e.Value); err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", ErrStorageWrite, err)
		}
	}
	return now, nil
}

// ShouldAccept reports whether candidate should replace the persisted
// snapshot: always when the snapshot is missing, empty or expired, otherwise
// only when candidate differs from it element by element.
func (m *Manager) ShouldAccept(ctx context.Context, candidate []string) bool {
	snap, err := m.readSnapshot(ctx)
	if err != nil {
		accept := !m.cfg.RejectOnError
		m.logf("gallery: cannot evaluate snapshot (%v); accept=%t", err, accept)
		return accept
	}
	return m.accepts(snap, candidate)
}

func (m *Manager) accepts(snap snapshot.Snapshot, candidate []string) bool {
	if snap.Empty() || snap.Expired(m.cfg.Now(), m.cfg.Expiry) {
		return true
	}
	return !snapshot.SameSequence(snap.URLs, candidate)
}

// Clear removes the persisted snapshot.
func (m *Manager) Clear(ctx context.Context) error {
	if m.store == nil {
		return fmt.Errorf("%w: no store configured", ErrStorageWrite)
	}
	var errs []error
	for _, key := range []string{m.cfg.TimestampKey, m.cfg.CacheKey} {
		if err := m.store.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrStorageWrite, errors.Join(errs...))
	}
	m.logf("gallery: cache cleared")
	return nil
}

func (m *Manager) logf(format string, args ...any) {
	if m == nil || m.logger == nil {
		return
	}
	m.logger.Printf(format, args...)
}
