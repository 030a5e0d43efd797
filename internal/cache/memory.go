package cache

import (
	"container/list"
	"sync"
	"time"
)

// Memory is the L1 cache: an LRU bounded by total byte size.
type Memory struct {
	capacity int64
	size     int64

	items    map[string]*list.Element
	eviction *list.List // front is most recently used

	mu    sync.Mutex
	stats Stats
	now   func() time.Time
}

type memoryEntry struct {
	key       string
	value     []byte
	timestamp time.Time
	hits      int64
}

var _ Store = (*Memory)(nil)

// NewMemory creates a memory cache holding at most capacity bytes.
func NewMemory(capacity int64) *Memory {
	return &Memory{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
		stats:    Stats{Capacity: capacity},
		now:      time.Now,
	}
}

// Get retrieves a value and marks it most recently used.
func (c *Memory) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}

	c.eviction.MoveToFront(elem)
	entry := elem.Value.(*memoryEntry)
	entry.hits++
	c.stats.Hits++
	return entry.value, true
}

// Put stores a value, evicting least recently used items to make room.
func (c *Memory) Put(key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	valueSize := int64(len(value))
	if valueSize > c.capacity {
		return ErrItemTooLarge
	}

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
	for c.size+valueSize > c.capacity && c.eviction.Len() > 0 {
		c.evictOldest()
	}

	entry := &memoryEntry{key: key, value: value, timestamp: c.now()}
	c.items[key] = c.eviction.PushFront(entry)
	c.size += valueSize
	return nil
}

// Delete removes an entry.
func (c *Memory) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
	return nil
}

// Clear removes all entries.
func (c *Memory) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.eviction.Init()
	c.size = 0
}

// Contains checks for a key without touching the LRU order.
func (c *Memory) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.items[key]
	return ok
}

// Size returns the current size in bytes.
func (c *Memory) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Stats returns cache statistics.
func (c *Memory) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = c.size
	stats.ItemCount = int64(len(c.items))
	stats.computeHitRate()
	return stats
}

// LRU returns metadata for the n least recently used entries, oldest first.
func (c *Memory) LRU(n int) []Metadata {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]Metadata, 0, n)
	for elem := c.eviction.Back(); elem != nil && len(entries) < n; elem = elem.Prev() {
		entry := elem.Value.(*memoryEntry)
		entries = append(entries, Metadata{
			Key:       entry.key,
			Size:      int64(len(entry.value)),
			Timestamp: entry.timestamp,
			Hits:      entry.hits,
			Level:     LevelL1,
		})
	}
	return entries
}

// Prune removes entries stored more than maxAge ago.
func (c *Memory) Prune(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-maxAge)
	pruned := 0
	for elem := c.eviction.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*memoryEntry).timestamp.Before(cutoff) {
			c.removeElement(elem)
			pruned++
		}
		elem = prev
	}
	return pruned
}

// evictOldest removes the least recently used item (must be called with lock held).
func (c *Memory) evictOldest() {
	if elem := c.eviction.Back(); elem != nil {
		c.removeElement(elem)
		c.stats.Evictions++
	}
}

// removeElement removes an element from the cache (must be called with lock held).
func (c *Memory) removeElement(elem *list.Element) {
	c.eviction.Remove(elem)
	entry := elem.Value.(*memoryEntry)
	delete(c.items, entry.key)
	c.size -= int64(len(entry.value))
}
