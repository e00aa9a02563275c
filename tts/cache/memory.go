// Package cache stores synthesized audio so repeated reads of the
// same text skip the engine. A byte-capped memory tier sits in front
// of a compressed disk tier.
package cache

import (
	"container/list"
	"errors"
	"sync"
)

// ErrItemTooLarge is returned when a single entry exceeds the cache
// capacity.
var ErrItemTooLarge = errors.New("item too large for cache")

// MemoryCache is the L1 tier: an in-process LRU capped by total bytes.
type MemoryCache struct {
	capacity int64

	mu       sync.Mutex
	size     int64
	items    map[string]*list.Element
	eviction *list.List

	hits, misses int64
}

type memoryEntry struct {
	key   string
	value []byte
}

func NewMemoryCache(capacity int64) *MemoryCache {
	return &MemoryCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
	}
}

func (c *MemoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.eviction.MoveToFront(elem)
	c.hits++
	return elem.Value.(*memoryEntry).value, true
}

func (c *MemoryCache) Put(key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := int64(len(value))
	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*memoryEntry)
		c.size += size - int64(len(entry.value))
		entry.value = value
		c.eviction.MoveToFront(elem)
		return nil
	}

	if size > c.capacity {
		return ErrItemTooLarge
	}
	for c.size+size > c.capacity && c.eviction.Len() > 0 {
		c.evictOldest()
	}

	elem := c.eviction.PushFront(&memoryEntry{key: key, value: value})
	c.items[key] = elem
	c.size += size
	return nil
}

func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.eviction.Init()
	c.size = 0
}

// Size reports the bytes currently held.
func (c *MemoryCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Len reports the number of entries.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats reports hit and miss counts.
func (c *MemoryCache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *MemoryCache) evictOldest() {
	if elem := c.eviction.Back(); elem != nil {
		c.removeElement(elem)
	}
}

func (c *MemoryCache) removeElement(elem *list.Element) {
	entry := elem.Value.(*memoryEntry)
	c.eviction.Remove(elem)
	delete(c.items, entry.key)
	c.size -= int64(len(entry.value))
}
