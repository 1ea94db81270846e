package query

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// CacheEntry is one cached answer keyed by the question fingerprint.
type CacheEntry struct {
	Fingerprint     string    `json:"fingerprint"`
	Question        string    `json:"question"`
	Answer          string    `json:"answer"`
	Confidence      float64   `json:"confidence"`
	SimilarityScore float64   `json:"similarity_score"`
	ResponseType    string    `json:"response_type"`
	CreatedAt       time.Time `json:"created_at"`
	HitCount        int       `json:"hit_count"`
}

// Cache stores responses by fingerprint. Get returns (nil, nil) on a miss.
// Implementations increment the entry's hit count on every hit.
type Cache interface {
	Get(ctx context.Context, fingerprint string) (*CacheEntry, error)
	Set(ctx context.Context, entry CacheEntry) error
}

// lruCache is the in-process cache. Policy, deterministic by construction:
// entries expire after ttl and are dropped on access; when the cache is at
// capacity the least-recently-used entry is evicted before insert. A race
// between two misses for one fingerprint resolves last-writer-wins.
type lruCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[string]*list.Element
	order    *list.List
}

func NewLRUCache(capacity int, ttl time.Duration) Cache {
	if capacity <= 0 {
		capacity = 1000
	}
	return &lruCache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

func (c *lruCache) Get(_ context.Context, fingerprint string) (*CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[fingerprint]
	if !ok {
		return nil, nil
	}

	entry := elem.Value.(*CacheEntry)
	if c.ttl > 0 && time.Since(entry.CreatedAt) > c.ttl {
		c.order.Remove(elem)
		delete(c.entries, fingerprint)
		return nil, nil
	}

	entry.HitCount++
	c.order.MoveToFront(elem)

	snapshot := *entry
	return &snapshot, nil
}

func (c *lruCache) Set(_ context.Context, entry CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[entry.Fingerprint]; ok {
		stored := elem.Value.(*CacheEntry)
		*stored = entry
		c.order.MoveToFront(elem)
		return nil
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*CacheEntry).Fingerprint)
		}
	}

	stored := entry
	c.entries[entry.Fingerprint] = c.order.PushFront(&stored)
	return nil
}
