// Package cache implements the two-tier response cache: a byte-bounded
// in-memory LRU in front of a durable file store. Entries carry only their
// payload and stored-at stamp; freshness is decided at read time from the
// caller's TTL class, so the same payload can be fresh for one consumer
// and stale for another.
package cache

import (
	"time"

	"github.com/roasbeef/marquee/internal/catalog"
)

// Entry is one cached payload with its write stamp.
type Entry struct {
	// StoredAt is when the payload was written.
	StoredAt time.Time `json:"stored_at"`

	// Payload is the raw response body.
	Payload []byte `json:"payload"`
}

// Config tunes a tiered cache.
type Config struct {
	// Dir is the durable tier directory.
	Dir string

	// MemoryEntries bounds the memory tier entry count.
	MemoryEntries int

	// MemoryBytes bounds the memory tier payload bytes.
	MemoryBytes int64

	// Now is the clock, defaulting to time.Now.
	Now func() time.Time
}

const (
	defaultMemoryEntries = 512
	defaultMemoryBytes   = 8 << 20

	// DefaultSweepAge is the durable tier retention used by the
	// periodic sweep.
	DefaultSweepAge = 7 * 24 * time.Hour
)

// TieredCache reads through memory into the durable tier, promoting
// durable hits, and writes through both tiers.
type TieredCache struct {
	mem *memoryTier
	dur *durableTier
	now func() time.Time
}

// New creates a tiered cache rooted at cfg.Dir, creating the directory if
// needed.
func New(cfg Config) (*TieredCache, error) {
	if cfg.MemoryEntries <= 0 {
		cfg.MemoryEntries = defaultMemoryEntries
	}
	if cfg.MemoryBytes <= 0 {
		cfg.MemoryBytes = defaultMemoryBytes
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	mem, err := newMemoryTier(cfg.MemoryEntries, cfg.MemoryBytes)
	if err != nil {
		return nil, err
	}

	dur, err := newDurableTier(cfg.Dir)
	if err != nil {
		return nil, err
	}

	return &TieredCache{mem: mem, dur: dur, now: cfg.Now}, nil
}

// Get looks up a payload. A fresh entry (age within the class TTL) is
// always returned. An expired entry is a miss unless allowExpired is set,
// in which case it is returned with the stale flag raised. Durable hits
// are promoted into the memory tier either way.
func (t *TieredCache) Get(key string, class Class,
	allowExpired bool) (catalog.Stale[[]byte], bool) {

	entry, ok := t.mem.get(key)
	if !ok {
		entry, ok = t.dur.get(key)
		if !ok {
			return catalog.Stale[[]byte]{}, false
		}
		t.mem.put(key, entry)
	}

	age := t.now().Sub(entry.StoredAt)
	if age <= class.TTL() {
		return catalog.Stale[[]byte]{Value: entry.Payload}, true
	}

	if !allowExpired {
		return catalog.Stale[[]byte]{}, false
	}

	return catalog.Stale[[]byte]{
		Value:   entry.Payload,
		IsStale: true,
	}, true
}

// Put writes a payload through both tiers, stamping it with the current
// time. A durable write failure leaves the memory tier consistent with the
// durable tier rather than ahead of it.
func (t *TieredCache) Put(key string, payload []byte) error {
	entry := Entry{StoredAt: t.now(), Payload: payload}

	if err := t.dur.put(key, entry); err != nil {
		t.mem.remove(key)
		return err
	}
	t.mem.put(key, entry)

	return nil
}

// DropMemory discards the memory tier only. Durable entries survive and
// repopulate memory on demand.
func (t *TieredCache) DropMemory() {
	t.mem.purge()
}

// Clear discards both tiers.
func (t *TieredCache) Clear() error {
	t.mem.purge()
	return t.dur.clear()
}

// Sweep removes durable entries older than maxAge and returns how many
// were removed. Sweeping is retention, not freshness: entries between
// their TTL and the sweep age stay on disk to serve allow-expired reads.
func (t *TieredCache) Sweep(maxAge time.Duration) (int, error) {
	removed, err := t.dur.sweep(t.now().Add(-maxAge))
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		log.Debugf("Swept %d expired cache entries", removed)
	}

	return removed, nil
}

// MemoryLen reports the memory tier entry count.
func (t *TieredCache) MemoryLen() int {
	return t.mem.len()
}
