package gallery

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"flickrgallery/snapshot"
)

var errDisk = errors.New("disk on fire")

// fakeStore is a plain key/value store that records every mutation.
type fakeStore struct {
	mu       sync.Mutex
	items    map[string]string
	ops      []string
	readErr  error
	writeErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{items: make(map[string]string)}
}

func (s *fakeStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return "", false, s.readErr
	}
	v, ok := s.items[key]
	return v, ok, nil
}

func (s *fakeStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, "set "+key)
	if s.writeErr != nil {
		return s.writeErr
	}
	s.items[key] = value
	return nil
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, "delete "+key)
	if s.writeErr != nil {
		return s.writeErr
	}
	delete(s.items, key)
	return nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) put(key, value string) {
	s.mu.Lock()
	s.items[key] = value
	s.mu.Unlock()
}

func (s *fakeStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ops)
}

func (s *fakeStore) history() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ops...)
}

// batchStore adds paired reads and writes on top of fakeStore.
type batchStore struct {
	*fakeStore
}

func newBatchStore() *batchStore {
	return &batchStore{fakeStore: newFakeStore()}
}

func (s *batchStore) GetMany(_ context.Context, keys ...string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := s.items[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (s *batchStore) SetMany(_ context.Context, entries ...snapshot.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, "batch")
	if s.writeErr != nil {
		return s.writeErr
	}
	for _, e := range entries {
		s.items[e.Key] = e.Value
	}
	return nil
}

// fakeFetcher returns a scripted list. When gate is set each call blocks on
// it after signalling started.
type fakeFetcher struct {
	urls    []string
	err     error
	calls   atomic.Int32
	started chan struct{}
	gate    chan struct{}

	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeFetcher) FetchRemoteList(ctx context.Context) ([]string, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return append([]string(nil), f.urls...), nil
}

type fakeChecker struct {
	online atomic.Bool
	probes atomic.Int32
}

func newFakeChecker(online bool) *fakeChecker {
	c := &fakeChecker{}
	c.online.Store(online)
	return c
}

func (c *fakeChecker) Probe(context.Context) bool {
	c.probes.Add(1)
	return c.online.Load()
}

var testNow = time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{Now: func() time.Time { return testNow }}
}

// seed writes a snapshot straight into the store, bypassing the manager.
func seed(s *fakeStore, urls []string, capturedAt time.Time) {
	encoded, err := snapshot.EncodeURLs(urls)
	if err != nil {
		panic(err)
	}
	s.put(DefaultCacheKey, encoded)
	if !capturedAt.IsZero() {
		s.put(DefaultTimestampKey, snapshot.EncodeTimestamp(capturedAt))
	}
}
