package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Entry is a cached value with its bookkeeping.
type Entry struct {
	Value       []byte
	InsertedAt  time.Time
	TTL         time.Duration
	LastAccess  time.Time
	AccessCount int64
}

func (e *Entry) expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.InsertedAt) >= e.TTL
}

// MemoryCache is an in-process LRU cache with per-entry TTL.
// It serves single-instance deployments and tests.
type MemoryCache struct {
	entries *lru.Cache[string, *Entry]
	mu      sync.Mutex
	now     func() time.Time
}

// NewMemoryCache creates a cache holding at most size entries.
func NewMemoryCache(size int) (*MemoryCache, error) {
	if size <= 0 {
		size = 10000
	}
	entries, err := lru.New[string, *Entry](size)
	if err != nil {
		return nil, err
	}
	return &MemoryCache{entries: entries, now: time.Now}, nil
}

// SetClock replaces the time source.
func (c *MemoryCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	now := c.now()
	if e.expired(now) {
		c.entries.Remove(key)
		return nil, ErrCacheMiss
	}
	e.LastAccess = now
	e.AccessCount++
	return e.Value, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	buf := make([]byte, len(value))
	copy(buf, value)
	c.entries.Add(key, &Entry{Value: buf, InsertedAt: now, TTL: ttl, LastAccess: now})
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		c.entries.Remove(k)
	}
	return nil
}

func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Peek(key)
	if !ok {
		return false, nil
	}
	if e.expired(c.now()) {
		c.entries.Remove(key)
		return false, nil
	}
	return true, nil
}

// Inspect returns a copy of the bookkeeping for key without touching it.
func (c *MemoryCache) Inspect(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries.Peek(key)
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

func (c *MemoryCache) Close() error {
	c.entries.Purge()
	return nil
}

var _ Cache = (*MemoryCache)(nil)
