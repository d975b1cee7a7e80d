package secrets

import (
	"sync"
	"time"
)

// CacheConfig configures resolved secret caching. A zero TTL disables the
// cache.
type CacheConfig struct {
	TTL     time.Duration
	MaxSize int
}

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// cache holds resolved secrets until they expire. When full, the entry
// closest to expiry is evicted.
type cache struct {
	config  CacheConfig
	now     func() time.Time
	mu      sync.Mutex
	entries map[string]cacheEntry
}

func newCache(cfg CacheConfig) *cache {
	return &cache{config: cfg, now: time.Now, entries: make(map[string]cacheEntry)}
}

func (c *cache) get(name string) (string, bool) {
	if c.config.TTL <= 0 {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[name]
	if !ok {
		return "", false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, name)
		return "", false
	}
	return e.value, true
}

func (c *cache) set(name, value string) {
	if c.config.TTL <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[name]; !ok && c.config.MaxSize > 0 && len(c.entries) >= c.config.MaxSize {
		var oldest string
		var oldestAt time.Time
		for k, e := range c.entries {
			if oldest == "" || e.expiresAt.Before(oldestAt) {
				oldest, oldestAt = k, e.expiresAt
			}
		}
		delete(c.entries, oldest)
	}
	c.entries[name] = cacheEntry{value: value, expiresAt: c.now().Add(c.config.TTL)}
}

func (c *cache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

func (c *cache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
