package aprs

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/madpsy/ax25aprs/ax25"
	"github.com/madpsy/ax25aprs/clock"
)

// dedupKey is a 64-bit digest of (destination, source, frame type,
// payload) — spec.md §4.6 deliberately narrows the aioax25 source's
// full sha256 digest down to a 64-bit hash, which is plenty for a
// collision-tolerant seen-it-before cache over a 28-second window.
type dedupKey uint64

func hashFrame(frame ax25.Frame) dedupKey {
	h := fnv.New64a()
	_, _ = h.Write([]byte(frame.Path.Destination().String()))
	_, _ = h.Write([]byte(frame.Path.Source().String()))
	h.Write([]byte{byte(frame.Type)})
	h.Write(frame.Payload)
	return dedupKey(h.Sum64())
}

// DedupCache tracks recently-seen frame hashes so retransmissions and
// digipeat loops don't get processed twice (spec.md §4.6/§4.9, C-dedup).
// It is safe for concurrent use.
type DedupCache struct {
	mu     sync.Mutex
	expiry time.Duration
	clock  clock.Clock
	seen   map[dedupKey]time.Time
}

// NewDedupCache creates a cache that forgets entries after expiry has
// elapsed since they were last seen (spec.md default: 28s).
func NewDedupCache(expiry time.Duration, c clock.Clock) *DedupCache {
	if c == nil {
		c = clock.Real{}
	}
	return &DedupCache{
		expiry: expiry,
		clock:  c,
		seen:   make(map[dedupKey]time.Time),
	}
}

// Seen reports whether frame has been observed within the expiry
// window, recording it as seen (refreshing its expiry) either way.
func (d *DedupCache) Seen(frame ax25.Frame) bool {
	key := hashFrame(frame)
	now := d.clock.Now()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.pruneLocked(now)

	_, dup := d.seen[key]
	d.seen[key] = now.Add(d.expiry)
	return dup
}

func (d *DedupCache) pruneLocked(now time.Time) {
	for k, exp := range d.seen {
		if now.After(exp) {
			delete(d.seen, k)
		}
	}
}

// Len reports the number of entries currently cached, for tests.
func (d *DedupCache) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
