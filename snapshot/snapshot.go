// Package snapshot holds the persisted gallery snapshot (an ordered image-URL
// list plus its capture time) and the key/value stores it is written to.
package snapshot

import (
	"encoding/binary"
	"time"

	"github.com/zeebo/xxh3"
)

// Snapshot is the unit of truth persisted between runs. A zero CapturedAt
// means no snapshot has been captured yet.
type Snapshot struct {
	URLs       []string
	CapturedAt time.Time
}

// Empty reports whether the snapshot holds no URLs.
func (s Snapshot) Empty() bool {
	return len(s.URLs) == 0
}

// Expired reports whether the snapshot is older than window at now. A snapshot
// without a capture time is always expired.
func (s Snapshot) Expired(now time.Time, window time.Duration) bool {
	if s.CapturedAt.IsZero() {
		return true
	}
	return now.Sub(s.CapturedAt) > window
}

// Clone returns a copy whose URL slice does not alias s.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{URLs: CloneURLs(s.URLs), CapturedAt: s.CapturedAt}
}

// CloneURLs copies urls. A nil input stays nil.
func CloneURLs(urls []string) []string {
	if urls == nil {
		return nil
	}
	out := make([]string, len(urls))
	copy(out, urls)
	return out
}

// SameSequence reports whether a and b hold the same URLs in the same order.
func SameSequence(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	if Fingerprint(a) != Fingerprint(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Fingerprint returns an order-sensitive digest of urls. Each element is
// length-prefixed so ["ab","c"] and ["a","bc"] differ.
func Fingerprint(urls []string) uint64 {
	h := xxh3.New()
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(urls)))
	_, _ = h.Write(lenBuf[:n])
	for _, u := range urls {
		n = binary.PutUvarint(lenBuf[:], uint64(len(u)))
		_, _ = h.Write(lenBuf[:n])
		_, _ = h.WriteString(u)
	}
	return h.Sum64()
}

// TruncateMillis drops sub-millisecond precision so a time survives a round
// trip through the epoch-millisecond encoding unchanged.
func TruncateMillis(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.UnixMilli(t.UnixMilli()).UTC()
}
