package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is the in-process layer of the weather cache. It holds
// encoded weather reports keyed by Key("weather", city) for the lifetime
// of one command, and takes disk hits promoted by LayeredCache.
type MemoryCache struct {
	cache *gocache.Cache
}

// NewMemoryCache returns an empty cache whose entries live for defaultTTL
// unless Set names another ttl. Expired reports are swept every
// cleanupInterval.
func NewMemoryCache(defaultTTL time.Duration, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Get returns the encoded report stored under key, if it has not expired.
// The returned slice is shared with the cache and must not be modified.
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	if val, found := c.cache.Get(key); found {
		if b, ok := val.([]byte); ok {
			return b, true
		}
	}
	return nil, false
}

// Set stores a private copy of value, so the weather client may reuse the
// buffer it decoded the API response into. A zero ttl uses the default.
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	c.cache.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

// Delete drops the report for key
func (c *MemoryCache) Delete(key string) error {
	c.cache.Delete(key)
	return nil
}

// Clear drops every cached report
func (c *MemoryCache) Clear() error {
	c.cache.Flush()
	return nil
}
