package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// ErrStoreClosed is returned by stores used after Close.
var ErrStoreClosed = errors.New("snapshot: store is closed")

// Store is the key/value capability the gallery persists its snapshot into.
// Get reports ok=false for a missing key; a missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Entry is a single key/value pair written through a Batcher.
type Entry struct {
	Key   string
	Value string
}

// Batcher is implemented by stores that can read or write several keys as one
// unit. Keys missing from the store are absent from the GetMany result.
type Batcher interface {
	GetMany(ctx context.Context, keys ...string) (map[string]string, error)
	SetMany(ctx context.Context, entries ...Entry) error
}

// Backend names accepted by Open.
const (
	BackendPebble = "pebble"
	BackendSQLite = "sqlite"
	BackendPlist  = "plist"
	BackendMemory = "memory"
)

// Options configures Open.
type Options struct {
	Backend          string
	Path             string
	PreflightTimeout time.Duration
	Logger           *log.Logger
}

// Open returns the store selected by opts.Backend.
func Open(opts Options) (Store, error) {
	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	if backend != BackendMemory && strings.TrimSpace(opts.Path) == "" {
		return nil, fmt.Errorf("snapshot: %s store path is empty", backend)
	}
	switch backend {
	case "", BackendPebble:
		return OpenPebble(opts.Path)
	case BackendSQLite:
		return OpenSQLite(opts.Path, opts.PreflightTimeout, opts.Logger)
	case BackendPlist:
		return OpenPlist(opts.Path)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("snapshot: unsupported store backend %q", opts.Backend)
	}
}
