package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// memoryTier is the fast tier: an LRU bounded both by entry count and by
// total payload bytes. The byte bound evicts oldest-first, same as the
// count bound.
type memoryTier struct {
	mu    sync.Mutex
	lru   *lru.Cache[string, Entry]
	bytes int64

	maxBytes int64
}

func newMemoryTier(maxEntries int, maxBytes int64) (*memoryTier, error) {
	m := &memoryTier{maxBytes: maxBytes}

	c, err := lru.NewWithEvict(maxEntries,
		func(_ string, e Entry) {
			m.bytes -= int64(len(e.Payload))
		},
	)
	if err != nil {
		return nil, err
	}
	m.lru = c

	return m, nil
}

func (m *memoryTier) get(key string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.lru.Get(key)
}

func (m *memoryTier) put(key string, e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Remove first so the eviction callback settles the byte count for
	// an overwritten entry.
	m.lru.Remove(key)
	m.lru.Add(key, e)
	m.bytes += int64(len(e.Payload))

	for m.bytes > m.maxBytes && m.lru.Len() > 1 {
		m.lru.RemoveOldest()
	}
}

func (m *memoryTier) remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lru.Remove(key)
}

func (m *memoryTier) purge() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lru.Purge()
}

func (m *memoryTier) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.lru.Len()
}
