package embedding

import (
	"fmt"
	"sync"
	"testing"
)

func TestVectorCache_GetSet(t *testing.T) {
	c := newVectorCache(2)
	if v, ok := c.get("Alice was kind."); ok || v != nil {
		t.Fatal("expected miss on empty cache")
	}
	c.set("Alice was kind.", []float32{1, 2, 3})
	v, ok := c.get("Alice was kind.")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("get: got %v, %v", v, ok)
	}
	c.set("b", []float32{4, 5})
	c.set("c", []float32{6}) // evicts the first entry
	if _, ok := c.get("Alice was kind."); ok {
		t.Error("expected first entry to be evicted")
	}
	if _, ok := c.get("b"); !ok {
		t.Error("expected b to remain")
	}
	if _, ok := c.get("c"); !ok {
		t.Error("expected c to be present")
	}
}

func TestVectorCache_ConcurrentAccess(t *testing.T) {
	c := newVectorCache(8)
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("sentence %d", (g+i)%16)
				c.set(key, []float32{float32(i)})
				c.get(key)
			}
		}(g)
	}
	wg.Wait()
}

func TestVectorCache_DefaultCapacity(t *testing.T) {
	c := newVectorCache(0)
	c.set("x", []float32{1})
	if _, ok := c.get("x"); !ok {
		t.Error("cache with default capacity should store entries")
	}
}
