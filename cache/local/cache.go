package local

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when a key does not exist or has expired.
var ErrNotFound = errors.New("cache: key not found")

// Config holds LocalCache settings.
type Config struct {
	GCInterval time.Duration
}

type item struct {
	value    string
	deadline time.Time // zero means no expiry
}

func (it item) live(now time.Time) bool {
	return it.deadline.IsZero() || now.Before(it.deadline)
}

// LocalCache is an in-process string KV store with TTL support. It backs
// sessions, the penalty run lock, and the cached run summary when Redis
// is not configured.
type LocalCache struct {
	mu    sync.Mutex
	items map[string]item
	every time.Duration
	done  chan struct{}
}

// NewCache creates a LocalCache and starts its expiry sweeper.
func NewCache(cfg Config) (*LocalCache, error) {
	every := cfg.GCInterval
	if every <= 0 {
		every = 30 * time.Second
	}
	c := &LocalCache{
		items: make(map[string]item),
		every: every,
		done:  make(chan struct{}),
	}
	go c.sweepLoop()
	return c, nil
}

// Close stops the expiry sweeper.
func (c *LocalCache) Close() {
	close(c.done)
}

func (c *LocalCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[key]
	if !ok || !it.live(time.Now()) {
		delete(c.items, key)
		return "", ErrNotFound
	}
	return it.value, nil
}

func (c *LocalCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = newItem(value, ttl)
	return nil
}

func (c *LocalCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.items, k)
	}
	return nil
}

func (c *LocalCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[key]
	if !ok {
		return false, nil
	}
	if !it.live(time.Now()) {
		delete(c.items, key)
		return false, nil
	}
	return true, nil
}

func (c *LocalCache) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if it, ok := c.items[key]; ok && it.live(time.Now()) {
		return false, nil
	}
	c.items[key] = newItem(value, ttl)
	return true, nil
}

func (c *LocalCache) Expire(_ context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[key]
	if !ok || !it.live(time.Now()) {
		delete(c.items, key)
		return ErrNotFound
	}
	it.deadline = time.Now().Add(ttl)
	c.items[key] = it
	return nil
}

func newItem(value string, ttl time.Duration) item {
	it := item{value: value}
	if ttl > 0 {
		it.deadline = time.Now().Add(ttl)
	}
	return it
}

func (c *LocalCache) sweepLoop() {
	ticker := time.NewTicker(c.every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for k, it := range c.items {
				if !it.live(now) {
					delete(c.items, k)
				}
			}
			c.mu.Unlock()
		case <-c.done:
			return
		}
	}
}
