package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openBackends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	stores := map[string]Store{}
	for _, backend := range []string{BackendPebble, BackendSQLite, BackendPlist, BackendMemory} {
		path := ""
		switch backend {
		case BackendPebble:
			path = filepath.Join(dir, "pebble")
		case BackendSQLite:
			path = filepath.Join(dir, "gallery.db")
		case BackendPlist:
			path = filepath.Join(dir, "prefs.plist")
		}
		store, err := Open(Options{Backend: backend, Path: path, PreflightTimeout: time.Second})
		if err != nil {
			t.Fatalf("open %s: %v", backend, err)
		}
		stores[backend] = store
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range openBackends(t) {
		if _, ok, err := store.Get(ctx, "missing"); err != nil || ok {
			t.Fatalf("%s: expected missing key, ok=%t err=%v", name, ok, err)
		}
		if err := store.Set(ctx, "flickr_images_cache", `["a","b"]`); err != nil {
			t.Fatalf("%s: set: %v", name, err)
		}
		if err := store.Set(ctx, "flickr_images_cache", `["c"]`); err != nil {
			t.Fatalf("%s: overwrite: %v", name, err)
		}
		got, ok, err := store.Get(ctx, "flickr_images_cache")
		if err != nil || !ok || got != `["c"]` {
			t.Fatalf("%s: get mismatch: %q ok=%t err=%v", name, got, ok, err)
		}
		if err := store.Delete(ctx, "flickr_images_cache"); err != nil {
			t.Fatalf("%s: delete: %v", name, err)
		}
		if err := store.Delete(ctx, "flickr_images_cache"); err != nil {
			t.Fatalf("%s: second delete: %v", name, err)
		}
		if _, ok, _ := store.Get(ctx, "flickr_images_cache"); ok {
			t.Fatalf("%s: expected key to be deleted", name)
		}
	}
}

func TestStoreBatchPair(t *testing.T) {
	ctx := context.Background()
	for name, store := range openBackends(t) {
		batcher, ok := store.(Batcher)
		if !ok {
			t.Fatalf("%s: expected store to implement Batcher", name)
		}
		err := batcher.SetMany(ctx,
			Entry{Key: "urls", Value: `["a"]`},
			Entry{Key: "ts", Value: "1700000000000"},
		)
		if err != nil {
			t.Fatalf("%s: set many: %v", name, err)
		}
		values, err := batcher.GetMany(ctx, "urls", "ts", "absent")
		if err != nil {
			t.Fatalf("%s: get many: %v", name, err)
		}
		if len(values) != 2 || values["urls"] != `["a"]` || values["ts"] != "1700000000000" {
			t.Fatalf("%s: unexpected values %v", name, values)
		}
	}
}

func TestStoreClosed(t *testing.T) {
	ctx := context.Background()
	for name, store := range openBackends(t) {
		if err := store.Close(); err != nil {
			t.Fatalf("%s: close: %v", name, err)
		}
		if _, _, err := store.Get(ctx, "k"); !errors.Is(err, ErrStoreClosed) {
			t.Fatalf("%s: expected ErrStoreClosed, got %v", name, err)
		}
		if err := store.Set(ctx, "k", "v"); !errors.Is(err, ErrStoreClosed) {
			t.Fatalf("%s: expected ErrStoreClosed on set, got %v", name, err)
		}
	}
}

func TestPebblePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pebble")
	store, err := OpenPebble(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	reopened, err := OpenPebble(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if v, ok, err := reopened.Get(ctx, "k"); err != nil || !ok || v != "v" {
		t.Fatalf("expected persisted value, got %q ok=%t err=%v", v, ok, err)
	}
}

func TestPebbleRejectsFilePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := OpenPebble(path); err == nil {
		t.Fatalf("expected error opening pebble on a regular file")
	}
}

func TestSQLiteQuarantinesCorruptFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "gallery.db")
	if err := os.WriteFile(path, []byte("not a sqlite database"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	store, err := OpenSQLite(path, time.Second, nil)
	if err != nil {
		t.Fatalf("expected corrupt db to be replaced, got %v", err)
	}
	defer store.Close()
	if _, ok, err := store.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("expected empty store after quarantine, ok=%t err=%v", ok, err)
	}
	matches, _ := filepath.Glob(path + ".bad-*")
	if len(matches) == 0 {
		t.Fatalf("expected quarantined file next to %s", path)
	}
}

func TestPlistRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.plist")
	if err := os.WriteFile(path, []byte("<<< not a plist"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := OpenPlist(path); err == nil {
		t.Fatalf("expected decode error for garbage plist")
	}
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	if _, err := Open(Options{Backend: "redis", Path: "x"}); err == nil {
		t.Fatalf("expected unsupported backend error")
	}
	if _, err := Open(Options{Backend: BackendPebble}); err == nil {
		t.Fatalf("expected empty path error")
	}
}
