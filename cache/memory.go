package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value      []byte
	generation uint64
	expiresAt  time.Time
}

// MemoryCache is a process-local cache: a key -> (value, generation, expiry)
// map plus a single generation counter. An entry is a hit only while its
// generation matches the current one and it has not expired, so
// InvalidateAll is one counter increment rather than a key enumeration.
type MemoryCache struct {
	sync.RWMutex
	items      map[string]entry
	generation uint64
}

func NewMemory() *MemoryCache {
	return &MemoryCache{items: make(map[string]entry)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.Lock()
	defer c.Unlock()

	e, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if e.generation != c.generation || time.Now().After(e.expiresAt) {
		delete(c.items, key)
		return nil, false
	}
	return e.value, true
}

func (c *MemoryCache) Put(_ context.Context, key string, value []byte, ttl time.Duration) {
	c.Lock()
	defer c.Unlock()

	c.items[key] = entry{
		value:      value,
		generation: c.generation,
		expiresAt:  time.Now().Add(ttl),
	}
}

func (c *MemoryCache) InvalidateAll(_ context.Context) {
	c.Lock()
	defer c.Unlock()

	c.generation++
	// Stale entries are unreachable now; drop them instead of waiting for
	// the TTL to reclaim the memory.
	for key, e := range c.items {
		if e.generation != c.generation {
			delete(c.items, key)
		}
	}
}

// Size reports the number of stored entries, expired or not.
func (c *MemoryCache) Size() int {
	c.RLock()
	defer c.RUnlock()

	return len(c.items)
}
