package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/cockroachdb/pebble"
)

const (
	pebbleKeyPrefix = "kv|"

	defaultPebbleCacheBytes   = int64(1 << 20)
	defaultPebbleMemTableSize = uint64(4 << 20)
)

// PebbleStore persists entries in a Pebble database directory. Paired writes
// go through a single batch so the list and its timestamp land together.
type PebbleStore struct {
	mu    sync.RWMutex
	db    *pebble.DB
	cache *pebble.Cache
	path  string
}

// OpenPebble opens or creates the Pebble database at path.
func OpenPebble(path string) (*PebbleStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("snapshot: pebble path is empty")
	}
	if info, err := os.Stat(path); err == nil {
		if !info.IsDir() {
			return nil, fmt.Errorf("snapshot: %s exists and is not a directory", path)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("snapshot: stat path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: ensure directory: %w", err)
	}

	opts := &pebble.Options{
		Cache:        pebble.NewCache(defaultPebbleCacheBytes),
		MemTableSize: defaultPebbleMemTableSize,
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		opts.Cache.Unref()
		return nil, fmt.Errorf("snapshot: pebble open: %w", err)
	}
	return &PebbleStore{db: db, cache: opts.Cache, path: path}, nil
}

func pebbleKey(key string) []byte {
	return []byte(pebbleKeyPrefix + key)
}

// Get reads one key.
func (s *PebbleStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return "", false, ErrStoreClosed
	}
	return pebbleRead(s.db, key)
}

// GetMany reads keys from one consistent point-in-time view.
func (s *PebbleStore) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrStoreClosed
	}
	snap := s.db.NewSnapshot()
	defer snap.Close()
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		v, ok, err := pebbleRead(snap, key)
		if err != nil {
			return nil, err
		}
		if ok {
			out[key] = v
		}
	}
	return out, nil
}

func pebbleRead(r pebble.Reader, key string) (string, bool, error) {
	data, closer, err := r.Get(pebbleKey(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("snapshot: pebble get %s: %w", key, err)
	}
	value := string(data)
	_ = closer.Close()
	return value, true, nil
}

// Set writes one key durably.
func (s *PebbleStore) Set(ctx context.Context, key, value string) error {
	return s.SetMany(ctx, Entry{Key: key, Value: value})
}

// SetMany commits all entries in one synced batch.
func (s *PebbleStore) SetMany(ctx context.Context, entries ...Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrStoreClosed
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	for _, e := range entries {
		if err := batch.Set(pebbleKey(e.Key), []byte(e.Value), nil); err != nil {
			return fmt.Errorf("snapshot: pebble batch set %s: %w", e.Key, err)
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("snapshot: pebble commit: %w", err)
	}
	return nil
}

// Delete removes key; deleting a missing key is not an error.
func (s *PebbleStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrStoreClosed
	}
	if err := s.db.Delete(pebbleKey(key), pebble.Sync); err != nil {
		return fmt.Errorf("snapshot: pebble delete %s: %w", key, err)
	}
	return nil
}

// Close releases the database and its block cache.
func (s *PebbleStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if s.cache != nil {
		s.cache.Unref()
		s.cache = nil
	}
	return err
}
