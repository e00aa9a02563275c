package cache

import (
	"fmt"
	"testing"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache(1024)

	if _, ok := c.Get("missing"); ok {
		t.Error("hit on empty cache")
	}
	if err := c.Put("a", []byte("audio data")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, ok := c.Get("a")
	if !ok || string(got) != "audio data" {
		t.Errorf("Get = %q, %v", got, ok)
	}

	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("stats = %d hits, %d misses, want 1/1", hits, misses)
	}
}

func TestMemoryCacheLRUEviction(t *testing.T) {
	c := NewMemoryCache(30)

	c.Put("a", make([]byte, 10))
	c.Put("b", make([]byte, 10))
	c.Put("c", make([]byte, 10))

	// Touch a so b is the coldest entry.
	c.Get("a")
	c.Put("d", make([]byte, 10))

	if _, ok := c.Get("b"); ok {
		t.Error("coldest entry survived eviction")
	}
	for _, key := range []string{"a", "c", "d"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("entry %q evicted unexpectedly", key)
		}
	}
	if c.Size() > 30 {
		t.Errorf("size %d over capacity", c.Size())
	}
}

func TestMemoryCacheTooLarge(t *testing.T) {
	c := NewMemoryCache(10)
	if err := c.Put("big", make([]byte, 11)); err != ErrItemTooLarge {
		t.Errorf("Put oversized = %v, want ErrItemTooLarge", err)
	}
	if c.Len() != 0 {
		t.Errorf("oversized entry stored")
	}
}

func TestMemoryCacheUpdateExisting(t *testing.T) {
	c := NewMemoryCache(100)
	c.Put("k", make([]byte, 40))
	c.Put("k", make([]byte, 10))

	if c.Size() != 10 {
		t.Errorf("size after shrink = %d, want 10", c.Size())
	}
	if c.Len() != 1 {
		t.Errorf("len = %d, want 1", c.Len())
	}
}

func TestMemoryCacheDeleteAndClear(t *testing.T) {
	c := NewMemoryCache(1024)
	for i := 0; i < 5; i++ {
		c.Put(fmt.Sprintf("k%d", i), []byte("x"))
	}

	c.Delete("k2")
	if _, ok := c.Get("k2"); ok {
		t.Error("deleted entry still present")
	}
	c.Delete("k2")

	c.Clear()
	if c.Len() != 0 || c.Size() != 0 {
		t.Errorf("after Clear: len=%d size=%d", c.Len(), c.Size())
	}
}
