package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// EnvAPIKey overrides feed.api_key when set.
const EnvAPIKey = "FLICKR_API_KEY"

// Config represents the complete gallery configuration.
type Config struct {
	Feed         FeedConfig         `yaml:"feed"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
	Cache        CacheConfig        `yaml:"cache"`
	Store        StoreConfig        `yaml:"store"`
	Screen       ScreenConfig       `yaml:"screen"`
	Logging      LoggingConfig      `yaml:"logging"`

	// LoadedFrom is the file the configuration was read from, empty when
	// only defaults are in effect.
	LoadedFrom string `yaml:"-"`
}

// FeedConfig points at the Flickr REST endpoint.
type FeedConfig struct {
	Endpoint          string `yaml:"endpoint"`
	APIKey            string `yaml:"api_key"`
	PerPage           int    `yaml:"per_page"`
	Page              int    `yaml:"page"`
	RequestTimeoutSec int    `yaml:"request_timeout_seconds"`
	UserAgent         string `yaml:"user_agent"`
}

// ConnectivityConfig controls the reachability probe.
type ConnectivityConfig struct {
	Target           string `yaml:"target"`
	ProbeTimeoutSec  int    `yaml:"probe_timeout_seconds"`
	ProbeIntervalSec int    `yaml:"probe_interval_seconds"`
	// FollowRedirects judges the probe on the final response of a redirect
	// chain instead of treating any redirect as offline.
	FollowRedirects bool `yaml:"follow_redirects"`
}

// CacheConfig names the persisted snapshot entries and their lifetime.
type CacheConfig struct {
	CacheKey      string `yaml:"cache_key"`
	TimestampKey  string `yaml:"timestamp_key"`
	ExpirySeconds int    `yaml:"expiry_seconds"`
	RejectOnError bool   `yaml:"reject_on_error"`
}

// StoreConfig selects the key/value backend.
type StoreConfig struct {
	Backend             string `yaml:"backend"`
	Path                string `yaml:"path"`
	PreflightTimeoutSec int    `yaml:"preflight_timeout_seconds"`
}

// ScreenConfig tunes the gallery screen lifecycle.
type ScreenConfig struct {
	CycleTimeoutSec    int  `yaml:"cycle_timeout_seconds"`
	ForceManualRefresh bool `yaml:"force_manual_refresh"`
}

// LoggingConfig controls the optional daily log file.
type LoggingConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Feed: FeedConfig{
			Endpoint:          "https://api.flickr.com/services/rest/",
			PerPage:           20,
			Page:              1,
			RequestTimeoutSec: 15,
			UserAgent:         "flickrgallery/1.0",
		},
		Connectivity: ConnectivityConfig{
			Target:           "https://www.google.com",
			ProbeTimeoutSec:  5,
			ProbeIntervalSec: 30,
		},
		Cache: CacheConfig{
			CacheKey:      "flickr_images_cache",
			TimestampKey:  "flickr_cache_timestamp",
			ExpirySeconds: 24 * 60 * 60,
		},
		Store: StoreConfig{
			Backend:             "pebble",
			Path:                filepath.Join("data", "gallery"),
			PreflightTimeoutSec: 10,
		},
		Screen: ScreenConfig{
			CycleTimeoutSec: 60,
		},
		Logging: LoggingConfig{
			Dir:           filepath.Join("data", "logs"),
			RetentionDays: 7,
		},
	}
}

// Load reads YAML from path over the defaults. An empty path returns the
// defaults. FLICKR_API_KEY, when set, replaces feed.api_key.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	path = strings.TrimSpace(path)
	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("config path %s is a directory", path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		cfg.LoadedFrom = path
	}
	if key := strings.TrimSpace(os.Getenv(EnvAPIKey)); key != "" {
		cfg.Feed.APIKey = key
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) validate() error {
	checks := []struct {
		name  string
		value int
	}{
		{"feed.per_page", c.Feed.PerPage},
		{"feed.page", c.Feed.Page},
		{"feed.request_timeout_seconds", c.Feed.RequestTimeoutSec},
		{"connectivity.probe_timeout_seconds", c.Connectivity.ProbeTimeoutSec},
		{"connectivity.probe_interval_seconds", c.Connectivity.ProbeIntervalSec},
		{"cache.expiry_seconds", c.Cache.ExpirySeconds},
		{"store.preflight_timeout_seconds", c.Store.PreflightTimeoutSec},
		{"screen.cycle_timeout_seconds", c.Screen.CycleTimeoutSec},
		{"logging.retention_days", c.Logging.RetentionDays},
	}
	for _, check := range checks {
		if check.value < 0 {
			return fmt.Errorf("%s must be >= 0 (got %d)", check.name, check.value)
		}
	}
	if c.Feed.PerPage > 500 {
		return fmt.Errorf("feed.per_page must be <= 500 (got %d)", c.Feed.PerPage)
	}
	switch strings.ToLower(strings.TrimSpace(c.Store.Backend)) {
	case "", "pebble", "sqlite", "plist", "memory":
	default:
		return fmt.Errorf("store.backend %q is not one of pebble, sqlite, plist, memory", c.Store.Backend)
	}
	return nil
}

// normalize fills zero values with defaults.
func (c *Config) normalize() {
	def := DefaultConfig()
	c.Feed.Endpoint = strings.TrimSpace(c.Feed.Endpoint)
	if c.Feed.Endpoint == "" {
		c.Feed.Endpoint = def.Feed.Endpoint
	}
	if c.Feed.PerPage == 0 {
		c.Feed.PerPage = def.Feed.PerPage
	}
	if c.Feed.Page == 0 {
		c.Feed.Page = def.Feed.Page
	}
	if c.Feed.RequestTimeoutSec == 0 {
		c.Feed.RequestTimeoutSec = def.Feed.RequestTimeoutSec
	}
	c.Connectivity.Target = strings.TrimSpace(c.Connectivity.Target)
	if c.Connectivity.Target == "" {
		c.Connectivity.Target = def.Connectivity.Target
	}
	if c.Connectivity.ProbeTimeoutSec == 0 {
		c.Connectivity.ProbeTimeoutSec = def.Connectivity.ProbeTimeoutSec
	}
	if c.Connectivity.ProbeIntervalSec == 0 {
		c.Connectivity.ProbeIntervalSec = def.Connectivity.ProbeIntervalSec
	}
	if strings.TrimSpace(c.Cache.CacheKey) == "" {
		c.Cache.CacheKey = def.Cache.CacheKey
	}
	if strings.TrimSpace(c.Cache.TimestampKey) == "" {
		c.Cache.TimestampKey = def.Cache.TimestampKey
	}
	if c.Cache.ExpirySeconds == 0 {
		c.Cache.ExpirySeconds = def.Cache.ExpirySeconds
	}
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = def.Store.Backend
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		c.Store.Path = def.Store.Path
	}
	if c.Store.PreflightTimeoutSec == 0 {
		c.Store.PreflightTimeoutSec = def.Store.PreflightTimeoutSec
	}
	if c.Screen.CycleTimeoutSec == 0 {
		c.Screen.CycleTimeoutSec = def.Screen.CycleTimeoutSec
	}
	if strings.TrimSpace(c.Logging.Dir) == "" {
		c.Logging.Dir = def.Logging.Dir
	}
	if c.Logging.RetentionDays == 0 {
		c.Logging.RetentionDays = def.Logging.RetentionDays
	}
}

func (c FeedConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

func (c ConnectivityConfig) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSec) * time.Second
}

func (c ConnectivityConfig) ProbeInterval() time.Duration {
	return time.Duration(c.ProbeIntervalSec) * time.Second
}

func (c CacheConfig) Expiry() time.Duration {
	return time.Duration(c.ExpirySeconds) * time.Second
}

func (c StoreConfig) PreflightTimeout() time.Duration {
	return time.Duration(c.PreflightTimeoutSec) * time.Second
}

func (c ScreenConfig) CycleTimeout() time.Duration {
	return time.Duration(c.CycleTimeoutSec) * time.Second
}

// Print writes a short summary of the effective configuration.
func (c *Config) Print(w io.Writer) {
	source := c.LoadedFrom
	if source == "" {
		source = "defaults"
	}
	fmt.Fprintf(w, "Config: %s\n", source)
	key := "unset"
	if c.Feed.APIKey != "" {
		key = "set"
	}
	fmt.Fprintf(w, "Feed: %s (per_page=%d page=%d api_key=%s)\n", c.Feed.Endpoint, c.Feed.PerPage, c.Feed.Page, key)
	fmt.Fprintf(w, "Connectivity: %s every %s (timeout %s, follow_redirects=%t)\n", c.Connectivity.Target, c.Connectivity.ProbeInterval(), c.Connectivity.ProbeTimeout(), c.Connectivity.FollowRedirects)
	policy := "accept"
	if c.Cache.RejectOnError {
		policy = "reject"
	}
	fmt.Fprintf(w, "Cache: %s/%s expiry=%s on-error=%s\n", c.Cache.CacheKey, c.Cache.TimestampKey, c.Cache.Expiry(), policy)
	fmt.Fprintf(w, "Store: %s at %s\n", c.Store.Backend, c.Store.Path)
	if c.Logging.Enabled {
		fmt.Fprintf(w, "Logging: %s (retain %s days)\n", c.Logging.Dir, humanize.Comma(int64(c.Logging.RetentionDays)))
	}
}
