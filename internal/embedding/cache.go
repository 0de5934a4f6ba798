package embedding

import (
	"container/list"
	"sync"
)

// vectorCache is an LRU cache mapping sentence text to its embedding vector.
// Experiment templates repeat the same sentences across runs, so hits are common.
type vectorCache struct {
	capacity int
	entries  map[string]*list.Element
	order    *list.List
	mu       sync.Mutex
}

type vectorEntry struct {
	text string
	vec  []float32
}

func newVectorCache(capacity int) *vectorCache {
	if capacity <= 0 {
		capacity = 1024
	}
	return &vectorCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// get returns the cached vector for text if present. Takes the write lock:
// the recency bump mutates the list, and concurrent server requests share
// one embedder.
func (c *vectorCache) get(text string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[text]; ok {
		c.order.MoveToFront(elem)
		return elem.Value.(*vectorEntry).vec, true
	}
	return nil, false
}

// set stores the vector for text, evicting the least recently used entry at capacity.
func (c *vectorCache) set(text string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[text]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*vectorEntry).vec = vec
		return
	}

	elem := c.order.PushFront(&vectorEntry{text: text, vec: vec})
	c.entries[text] = elem

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*vectorEntry).text)
		}
	}
}
