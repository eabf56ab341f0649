package cache

import (
	"context"
	"sync"
	"time"
)

type item struct {
	data     []byte
	deadline time.Time
}

func (it item) liveAt(t time.Time) bool {
	return t.Before(it.deadline)
}

// MemoryCache keeps session tokens and cached site lookups in process. It
// serves a single API instance; deployments with several instances share
// sessions through RedisCache instead.
//
// Reads treat an item past its deadline as absent. A janitor goroutine
// drops such items every sweep interval until Close.
type MemoryCache struct {
	mu    sync.Mutex
	items map[string]item
	clock func() time.Time

	sweepEvery time.Duration
	done       chan struct{}
	closeOnce  sync.Once
}

// NewMemoryCache returns a cache swept once a minute.
func NewMemoryCache() *MemoryCache {
	return newMemoryCache(time.Now, time.Minute)
}

func newMemoryCache(clock func() time.Time, sweepEvery time.Duration) *MemoryCache {
	c := &MemoryCache{
		items:      make(map[string]item),
		clock:      clock,
		sweepEvery: sweepEvery,
		done:       make(chan struct{}),
	}
	go c.janitor()
	return c
}

// lookup returns a private copy of the live value under key.
func (c *MemoryCache) lookup(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[key]
	if !ok || !it.liveAt(c.clock()) {
		return nil, false
	}
	return append([]byte(nil), it.data...), true
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	if data, ok := c.lookup(key); ok {
		return data, nil
	}
	return nil, ErrCacheMiss
}

// Set stores a copy of value until ttl elapses. A non-positive ttl leaves
// nothing behind.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		delete(c.items, key)
		return nil
	}
	c.items[key] = item{
		data:     append([]byte(nil), value...),
		deadline: c.clock().Add(ttl),
	}
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}

// GetOrSet runs fn without holding the lock, so two callers missing the
// same site may both load it; the later write wins.
func (c *MemoryCache) GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, error) {
	if data, ok := c.lookup(key); ok {
		return data, nil
	}

	data, err := fn()
	if err != nil {
		return nil, err
	}
	if err := c.Set(ctx, key, data, ttl); err != nil {
		return nil, err
	}
	return data, nil
}

// Len counts live items, e.g. active sessions plus cached sites.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	n := 0
	for _, it := range c.items {
		if it.liveAt(now) {
			n++
		}
	}
	return n
}

// Sweep drops every item past its deadline and reports how many went.
func (c *MemoryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	removed := 0
	for key, it := range c.items {
		if !it.liveAt(now) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

func (c *MemoryCache) janitor() {
	ticker := time.NewTicker(c.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// Close stops the janitor. It is safe to call more than once.
func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

var _ Cache = (*MemoryCache)(nil)
