package cache

import (
	"sync"
	"time"
)

const defaultMaxEntries = 10_000

// Cache is a bounded TTL map. Expired entries are dropped lazily on read
// and swept when a write finds the map full.
type Cache[V any] struct {
	mu         sync.RWMutex
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	m          map[string]entry[V]
}

type entry[V any] struct {
	val V
	exp time.Time
}

func New[V any](ttl time.Duration) *Cache[V] {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return &Cache[V]{
		ttl:        ttl,
		maxEntries: defaultMaxEntries,
		now:        time.Now,
		m:          make(map[string]entry[V]),
	}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	now := c.now()
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}

	if now.After(e.exp) {
		c.mu.Lock()
		if cur, still := c.m[key]; still && now.After(cur.exp) {
			delete(c.m, key)
		}
		c.mu.Unlock()
		return zero, false
	}

	return e.val, true
}

// Set stores val. When the cache is full and nothing has expired, the
// write is dropped; callers treat the cache as best effort.
func (c *Cache[V]) Set(key string, val V) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.m[key]; !exists && len(c.m) >= c.maxEntries {
		c.sweepLocked(now)
		if len(c.m) >= c.maxEntries {
			return
		}
	}

	c.m[key] = entry[V]{val: val, exp: now.Add(c.ttl)}
}

// GetOrLoad returns the cached value for key or calls load and caches a
// successful result. Errors are returned as is and never cached.
func (c *Cache[V]) GetOrLoad(key string, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err := load()
	if err != nil {
		return v, err
	}

	c.Set(key, v)
	return v, nil
}

func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

func (c *Cache[V]) sweepLocked(now time.Time) {
	for k, e := range c.m {
		if now.After(e.exp) {
			delete(c.m, k)
		}
	}
}
