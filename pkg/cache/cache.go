package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Options configures a Cache instance.
type Options struct {
	TTL        time.Duration
	MaxEntries int
}

type entry struct {
	value     interface{}
	expiresAt time.Time
	lastUsed  time.Time
}

// Cache is a small TTL cache with deterministic expiry: entries are checked
// against their deadline on every read, so eviction never depends on a
// background sweep. Loads through Get are deduplicated with singleflight.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*entry
	order []string
	opts  Options
	sf    singleflight.Group
	now   func() time.Time
}

func New(opts Options) *Cache {
	return &Cache{
		items: make(map[string]*entry),
		order: make([]string, 0, 64),
		opts:  opts,
		now:   time.Now,
	}
}

// NewWithClock returns a cache using the given clock. Tests use this to make
// TTL expiry deterministic.
func NewWithClock(opts Options, now func() time.Time) *Cache {
	c := New(opts)
	c.now = now
	return c
}

// Loader loads a value for a key on cache miss.
type Loader func(ctx context.Context, key string) (interface{}, bool, error)

type loadResult struct {
	val interface{}
	ok  bool
	err error
}

// Get returns the cached value for key, loading it via loader on a miss.
// Concurrent misses for the same key share a single load.
func (c *Cache) Get(ctx context.Context, key string, loader Loader) (interface{}, bool, error) {
	if val, ok := c.Peek(key); ok {
		return val, true, nil
	}

	result, _, _ := c.sf.Do(key, func() (interface{}, error) {
		val, ok, err := loader(ctx, key)
		if ok {
			c.Set(key, val, c.opts.TTL)
		}
		return loadResult{val: val, ok: ok, err: err}, nil
	})
	res := result.(loadResult)
	if !res.ok {
		return nil, false, res.err
	}
	return res.val, true, nil
}

// Set stores a value with an explicit TTL.
func (c *Cache) Set(key string, val interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.opts.TTL
	}
	now := c.now()
	e := &entry{value: val, expiresAt: now.Add(ttl), lastUsed: now}
	c.mu.Lock()
	if _, exists := c.items[key]; !exists {
		c.order = append(c.order, key)
	}
	c.items[key] = e
	c.evictIfNeeded()
	c.mu.Unlock()
}

// Peek returns a cached value without triggering a load. Expired entries are
// dropped on read.
func (c *Cache) Peek(key string) (interface{}, bool) {
	now := c.now()
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if now.After(e.expiresAt) {
		c.Delete(key)
		return nil, false
	}
	c.mu.Lock()
	e.lastUsed = now
	c.mu.Unlock()
	return e.value, true
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.removeFromOrder(key)
	c.mu.Unlock()
}

// Len reports the number of live (unexpired) entries.
func (c *Cache) Len() int {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, e := range c.items {
		if !now.After(e.expiresAt) {
			n++
		}
	}
	return n
}

func (c *Cache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func (c *Cache) evictIfNeeded() {
	if c.opts.MaxEntries <= 0 || len(c.items) <= c.opts.MaxEntries {
		return
	}
	// Insertion-order eviction; fine for the small caches we run
	excess := len(c.items) - c.opts.MaxEntries
	for excess > 0 && len(c.order) > 0 {
		victim := c.order[0]
		c.order = c.order[1:]
		delete(c.items, victim)
		excess--
	}
}
