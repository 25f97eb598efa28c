package config

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gallery.yaml")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write gallery.yaml: %v", err)
	}
	return path
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	t.Setenv(EnvAPIKey, "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.LoadedFrom != "" {
		t.Fatalf("expected empty LoadedFrom, got %q", cfg.LoadedFrom)
	}
	if cfg.Cache.CacheKey != "flickr_images_cache" || cfg.Cache.TimestampKey != "flickr_cache_timestamp" {
		t.Fatalf("unexpected cache keys %q/%q", cfg.Cache.CacheKey, cfg.Cache.TimestampKey)
	}
	if cfg.Cache.Expiry() != 24*time.Hour {
		t.Fatalf("expected 24h expiry, got %s", cfg.Cache.Expiry())
	}
	if cfg.Connectivity.ProbeInterval() != 30*time.Second {
		t.Fatalf("expected 30s probe interval, got %s", cfg.Connectivity.ProbeInterval())
	}
	if cfg.Feed.PerPage != 20 || cfg.Store.Backend != "pebble" {
		t.Fatalf("unexpected defaults: per_page=%d backend=%s", cfg.Feed.PerPage, cfg.Store.Backend)
	}
	if cfg.Cache.RejectOnError {
		t.Fatalf("expected accept-on-error by default")
	}
	if cfg.Connectivity.FollowRedirects {
		t.Fatalf("expected redirects not followed by default")
	}
}

func TestLoadOverridesAndFillsDefaults(t *testing.T) {
	t.Setenv(EnvAPIKey, "")
	path := writeConfig(t, `feed:
  api_key: "abc"
  per_page: 50
cache:
  expiry_seconds: 60
  reject_on_error: true
connectivity:
  follow_redirects: true
store:
  backend: " SQLite "
  path: "/tmp/gallery.db"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.LoadedFrom != path {
		t.Fatalf("expected LoadedFrom=%s, got %s", path, cfg.LoadedFrom)
	}
	if cfg.Feed.APIKey != "abc" || cfg.Feed.PerPage != 50 {
		t.Fatalf("feed overrides not applied: %+v", cfg.Feed)
	}
	if cfg.Feed.Endpoint == "" || cfg.Feed.Page != 1 {
		t.Fatalf("feed defaults not filled: %+v", cfg.Feed)
	}
	if cfg.Cache.Expiry() != time.Minute || !cfg.Cache.RejectOnError {
		t.Fatalf("cache overrides not applied: %+v", cfg.Cache)
	}
	if cfg.Cache.CacheKey != "flickr_images_cache" {
		t.Fatalf("cache key default lost: %q", cfg.Cache.CacheKey)
	}
	if !cfg.Connectivity.FollowRedirects {
		t.Fatalf("expected connectivity.follow_redirects=true")
	}
	if cfg.Store.Backend != "sqlite" {
		t.Fatalf("expected normalized backend sqlite, got %q", cfg.Store.Backend)
	}
}

func TestLoadAPIKeyFromEnv(t *testing.T) {
	t.Setenv(EnvAPIKey, "from-env")
	path := writeConfig(t, "feed:\n  api_key: \"from-file\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Feed.APIKey != "from-env" {
		t.Fatalf("expected env api key, got %q", cfg.Feed.APIKey)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"negative expiry":  "cache:\n  expiry_seconds: -1\n",
		"negative probe":   "connectivity:\n  probe_interval_seconds: -5\n",
		"huge page":        "feed:\n  per_page: 501\n",
		"unknown backend":  "store:\n  backend: redis\n",
		"malformed yaml":   "feed: [\n",
		"wrong value type": "cache:\n  expiry_seconds: soon\n",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, text)); err == nil {
				t.Fatalf("expected Load() to fail")
			}
		})
	}
}

func TestLoadRejectsMissingAndDirectory(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.yaml")); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected Load() to reject a directory")
	}
}

func TestPrintHidesAPIKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Feed.APIKey = "secret-key"
	cfg.Logging.Enabled = true
	var buf bytes.Buffer
	cfg.Print(&buf)
	out := buf.String()
	if strings.Contains(out, "secret-key") {
		t.Fatalf("api key leaked: %s", out)
	}
	for _, want := range []string{"Config: defaults", "api_key=set", "Store: pebble", "Logging:"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %s", want, out)
		}
	}
}
