package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process LRU cache with TTL expiry
type MemoryCache struct {
	maxSize int
	items   map[string]*memoryItem
	lruList *list.List
	mu      sync.Mutex
	now     func() time.Time
}

type memoryItem struct {
	key       string
	value     []byte
	element   *list.Element
	expiresAt time.Time
}

// NewMemoryCache creates a cache holding at most maxSize entries
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &MemoryCache{
		maxSize: maxSize,
		items:   make(map[string]*memoryItem),
		lruList: list.New(),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.items[key]
	if !exists {
		return nil, false, nil
	}
	if c.now().After(item.expiresAt) {
		c.removeItem(item)
		return nil, false, nil
	}

	c.lruList.MoveToFront(item.element)
	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	expiresAt := c.now().Add(ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, exists := c.items[key]; exists {
		existing.value = stored
		existing.expiresAt = expiresAt
		c.lruList.MoveToFront(existing.element)
		return nil
	}

	item := &memoryItem{key: key, value: stored, expiresAt: expiresAt}
	item.element = c.lruList.PushFront(item)
	c.items[key] = item

	for len(c.items) > c.maxSize {
		oldest := c.lruList.Back()
		if oldest == nil {
			break
		}
		c.removeItem(oldest.Value.(*memoryItem))
	}
	return nil
}

// Len returns the number of stored entries, expired ones included
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*memoryItem)
	c.lruList.Init()
	return nil
}

func (c *MemoryCache) removeItem(item *memoryItem) {
	delete(c.items, item.key)
	c.lruList.Remove(item.element)
}
