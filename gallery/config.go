package gallery

import (
	"strings"
	"time"
)

const (
	DefaultCacheKey     = "flickr_images_cache"
	DefaultTimestampKey = "flickr_cache_timestamp"
	DefaultExpiry       = 24 * time.Hour

	DefaultProbeInterval = 30 * time.Second
	DefaultCycleTimeout  = time.Minute
)

// Config fixes the cache namespace and freshness policy for one Manager.
type Config struct {
	CacheKey     string
	TimestampKey string
	Expiry       time.Duration

	// RejectOnError flips ShouldAccept's answer when the current snapshot
	// cannot be read. The default (false) accepts, favouring fresh data over
	// a cache that may be unreadable.
	RejectOnError bool

	// CycleTimeout bounds one refresh cycle. Cycles run detached from the
	// caller's context so a save is never cut short by one caller leaving.
	CycleTimeout time.Duration

	// Now is the clock used for capture times and expiry; nil means time.Now.
	Now func() time.Time
}

func (c *Config) normalize() {
	if strings.TrimSpace(c.CacheKey) == "" {
		c.CacheKey = DefaultCacheKey
	}
	if strings.TrimSpace(c.TimestampKey) == "" {
		c.TimestampKey = DefaultTimestampKey
	}
	if c.Expiry <= 0 {
		c.Expiry = DefaultExpiry
	}
	if c.CycleTimeout <= 0 {
		c.CycleTimeout = DefaultCycleTimeout
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// ScreenConfig tunes one screen activation.
type ScreenConfig struct {
	ProbeInterval time.Duration
	// CycleTimeout bounds a refresh cycle that keeps running after the
	// screen has been deactivated.
	CycleTimeout time.Duration
	// ForceManualRefresh saves every non-empty fetch made by Refresh, even
	// when it matches the cached list.
	ForceManualRefresh bool
}

func (c *ScreenConfig) normalize() {
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = DefaultProbeInterval
	}
	if c.CycleTimeout <= 0 {
		c.CycleTimeout = DefaultCycleTimeout
	}
}
