package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCacheConfig configures a MemoryCache.
type MemoryCacheConfig struct {
	// MaxEntries bounds the number of live entries. When full, the entry
	// closest to expiry is evicted.
	// Default: 10000
	MaxEntries int

	// Now returns the current time.
	// Default: time.Now
	Now func() time.Time
}

// MemoryCache is an in-process Cache with per-entry expiry.
type MemoryCache struct {
	config MemoryCacheConfig

	mu        sync.RWMutex
	entries   map[string]cacheEntry
	hits      int64
	misses    int64
	evictions int64
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryCache creates an empty memory cache.
func NewMemoryCache(config ...MemoryCacheConfig) *MemoryCache {
	var cfg MemoryCacheConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10000
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &MemoryCache{
		config:  cfg,
		entries: make(map[string]cacheEntry),
	}
}

// Get retrieves a value from the cache. Returns (nil, false) on miss or expiry.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	now := c.config.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if ok && !now.Before(entry.expiresAt) {
		delete(c.entries, key)
		ok = false
	}
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	return entry.value, true
}

// Set stores a value with the given TTL. A TTL <= 0 stores nothing.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if ttl <= 0 {
		return nil
	}
	now := c.config.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.config.MaxEntries {
		c.evictLocked(now)
	}
	c.entries[key] = cacheEntry{value: value, expiresAt: now.Add(ttl)}
	return nil
}

// Delete removes a value from the cache. Deleting a missing key is not an error.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Purge drops every expired entry and returns how many were removed.
func (c *MemoryCache) Purge() int {
	now := c.config.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// evictLocked removes expired entries, or the one closest to expiry if
// none have expired.
func (c *MemoryCache) evictLocked(now time.Time) {
	var (
		victim   string
		earliest time.Time
	)
	expired := 0
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
			expired++
			continue
		}
		if victim == "" || entry.expiresAt.Before(earliest) {
			victim, earliest = key, entry.expiresAt
		}
	}
	if expired == 0 && victim != "" {
		delete(c.entries, victim)
		c.evictions++
	}
}

// MemoryCacheStats is a snapshot of cache counters.
type MemoryCacheStats struct {
	Entries   int   `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// Stats returns the current counters. Entries includes expired entries
// not yet purged.
func (c *MemoryCache) Stats() MemoryCacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return MemoryCacheStats{
		Entries:   len(c.entries),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

var _ Cache = (*MemoryCache)(nil)
