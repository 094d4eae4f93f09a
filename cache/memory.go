package cache

import (
	"container/list"
	"context"
	"path"
	"sync"
	"time"
)

// DefaultCapacity is the entry limit used when NewLRU is given a non-positive capacity.
const DefaultCapacity = 1024

// LRU is a bounded in-process cache with per-entry TTL.
//
// At capacity, Set evicts the least recently used entry. Get refreshes
// recency; an expired entry is removed on Get and reported as a miss.
type LRU struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	entries  map[string]*list.Element
	now      func() time.Time
}

type lruEntry struct {
	key       string
	value     []byte
	createdAt time.Time
	expiresAt time.Time
}

// LRUOption configures an LRU.
type LRUOption func(*LRU)

// WithClock replaces time.Now. Intended for tests.
func WithClock(now func() time.Time) LRUOption {
	return func(c *LRU) {
		if now != nil {
			c.now = now
		}
	}
}

// NewLRU creates an in-memory LRU cache holding at most capacity entries.
func NewLRU(capacity int, opts ...LRUOption) *LRU {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &LRU{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get retrieves a value from the cache. Returns (nil, false, nil) on miss or expiry.
func (c *LRU) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	entry := el.Value.(*lruEntry)
	if !c.now().Before(entry.expiresAt) {
		c.removeElement(el)
		return nil, false, nil
	}
	c.order.MoveToFront(el)
	return entry.value, true, nil
}

// Set stores a value with the given TTL. TTL<=0 is a no-op.
func (c *LRU) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := ValidateKey(key); err != nil {
		return err
	}

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*lruEntry)
		entry.value = value
		entry.createdAt = now
		entry.expiresAt = now.Add(ttl)
		c.order.MoveToFront(el)
		return nil
	}

	if c.order.Len() >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}

	c.entries[key] = c.order.PushFront(&lruEntry{
		key:       key,
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	})
	return nil
}

// Delete removes a value from the cache. Idempotent - no error on miss.
func (c *LRU) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		c.removeElement(el)
	}
	c.mu.Unlock()
	return nil
}

// Clear drops every entry.
func (c *LRU) Clear(_ context.Context) error {
	c.mu.Lock()
	c.order.Init()
	c.entries = make(map[string]*list.Element, c.capacity)
	c.mu.Unlock()
	return nil
}

// ClearMatching drops the entries whose keys match pattern.
func (c *LRU) ClearMatching(_ context.Context, pattern string) error {
	if err := CheckPattern(pattern); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, el := range c.entries {
		if ok, _ := path.Match(pattern, key); ok {
			c.removeElement(el)
		}
	}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *LRU) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.entries, el.Value.(*lruEntry).key)
}

var (
	_ Backend        = (*LRU)(nil)
	_ Clearer        = (*LRU)(nil)
	_ PatternClearer = (*LRU)(nil)
)
