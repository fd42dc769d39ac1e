package cache

import "time"

// LayeredCache checks memory first and falls back to disk. With no disk
// directory it is memory-only.
type LayeredCache struct {
	memory Cache
	disk   Cache
}

// NewLayeredCache creates a new layered cache
func NewLayeredCache(ttl time.Duration, diskDir string) *LayeredCache {
	lc := &LayeredCache{
		memory: NewMemoryCache(ttl, 10*time.Minute),
	}
	if diskDir != "" {
		lc.disk = NewDiskCache(diskDir, ttl)
	}
	return lc
}

// Get retrieves a value, promoting disk hits into memory
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.memory.Get(key); found {
		return val, true
	}

	if c.disk == nil {
		return nil, false
	}
	if val, found := c.disk.Get(key); found {
		_ = c.memory.Set(key, val, 0)
		return val, true
	}

	return nil, false
}

// Set stores a value in both layers
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	if err := c.memory.Set(key, value, ttl); err != nil {
		return err
	}
	if c.disk == nil {
		return nil
	}
	return c.disk.Set(key, value, ttl)
}

// Delete removes a value from both layers
func (c *LayeredCache) Delete(key string) error {
	_ = c.memory.Delete(key)
	if c.disk == nil {
		return nil
	}
	return c.disk.Delete(key)
}

// Clear removes all values from both layers
func (c *LayeredCache) Clear() error {
	_ = c.memory.Clear()
	if c.disk == nil {
		return nil
	}
	return c.disk.Clear()
}
