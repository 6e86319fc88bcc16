// Package cache provides the in-memory snapshot cache: a small keyed store
// with a per-entry time-to-live and a FIFO bound on the number of keys.
package cache

import (
	"sync"
	"time"
)

// Well-known keys and their lifetimes
const (
	KeyEnvScan   = "env_scan"
	KeyStructure = "structure"
	KeyBuild     = "build"

	DefaultTTL   = 5 * time.Second
	StructureTTL = 30 * time.Second
	BuildTTL     = 60 * time.Second

	DefaultMaxEntries = 10
)

// Options configures a Cache. Zero values fall back to the defaults.
type Options struct {
	MaxEntries int
	DefaultTTL time.Duration
	// Now is the clock used for expiry; time.Now when nil
	Now func() time.Time
}

type entry struct {
	value     any
	writtenAt time.Time
	ttl       time.Duration
}

// Cache is safe for concurrent use
type Cache struct {
	mu         sync.Mutex
	entries    map[string]entry
	order      []string // insertion order, oldest first
	maxEntries int
	defaultTTL time.Duration
	now        func() time.Time
}

// New creates an empty cache
func New(opts Options) *Cache {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{
		entries:    make(map[string]entry, opts.MaxEntries),
		order:      make([]string, 0, opts.MaxEntries),
		maxEntries: opts.MaxEntries,
		defaultTTL: opts.DefaultTTL,
		now:        opts.Now,
	}
}

// Get returns the value stored under key. An entry whose lifetime has
// elapsed is removed and reported as absent.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.writtenAt.Add(e.ttl)) {
		c.removeLocked(key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the default lifetime
func (c *Cache) Set(key string, value any) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores value under key. Writing an existing key replaces it and
// counts as a fresh insertion for eviction order. When a new key would
// exceed the bound, the earliest inserted entry is evicted.
func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.removeLocked(key)
	} else if len(c.order) >= c.maxEntries {
		c.removeLocked(c.order[0])
	}

	c.entries[key] = entry{value: value, writtenAt: c.now(), ttl: ttl}
	c.order = append(c.order, key)
}

// Delete drops the given keys when present
func (c *Cache) Delete(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		if _, ok := c.entries[key]; ok {
			c.removeLocked(key)
		}
	}
}

// Len reports the number of stored entries, expired ones included
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys returns the stored keys, oldest first
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

func (c *Cache) removeLocked(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// GetAs fetches key and asserts it to T. A value of a different type is
// reported as a miss.
func GetAs[T any](c *Cache, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}
