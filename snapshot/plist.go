package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"howett.net/plist"
)

// PlistStore keeps all entries in one property-list dictionary file, the way
// a mobile app's preferences file holds its key/value storage. Every write
// rewrites the file through a temp file and rename, so a reader sees either
// the old or the new dictionary.
type PlistStore struct {
	mu     sync.Mutex
	path   string
	closed bool
}

// OpenPlist prepares the store at path. The file is created on first write.
func OpenPlist(path string) (*PlistStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("snapshot: plist path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: ensure directory: %w", err)
	}
	s := &PlistStore{path: path}
	if _, err := s.readLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PlistStore) readLocked() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: read plist: %w", err)
	}
	if len(data) == 0 {
		return map[string]string{}, nil
	}
	items := map[string]string{}
	if _, err := plist.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("snapshot: decode plist: %w", err)
	}
	return items, nil
}

func (s *PlistStore) writeLocked(items map[string]string) error {
	data, err := plist.MarshalIndent(items, plist.XMLFormat, "\t")
	if err != nil {
		return fmt.Errorf("snapshot: encode plist: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "prefs-*.tmp")
	if err != nil {
		return fmt.Errorf("snapshot: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshot: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshot: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("snapshot: finalize temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("snapshot: replace plist: %w", err)
	}
	return nil
}

func (s *PlistStore) Get(ctx context.Context, key string) (string, bool, error) {
	values, err := s.GetMany(ctx, key)
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (s *PlistStore) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	items, err := s.readLocked()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		if v, ok := items[key]; ok {
			out[key] = v
		}
	}
	return out, nil
}

func (s *PlistStore) Set(ctx context.Context, key, value string) error {
	return s.SetMany(ctx, Entry{Key: key, Value: value})
}

func (s *PlistStore) SetMany(ctx context.Context, entries ...Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	items, err := s.readLocked()
	if err != nil {
		return err
	}
	for _, e := range entries {
		items[e.Key] = e.Value
	}
	return s.writeLocked(items)
}

func (s *PlistStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	items, err := s.readLocked()
	if err != nil {
		return err
	}
	if _, ok := items[key]; !ok {
		return nil
	}
	delete(items, key)
	return s.writeLocked(items)
}

func (s *PlistStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
