package cache

import "testing"

func TestLRUGetPut(t *testing.T) {
	t.Parallel()

	c := New(2)
	c.Put(Key{Frame: 1}, []byte("a"))
	c.Put(Key{Frame: 2}, []byte("b"))

	v, ok := c.Get(Key{Frame: 1})
	if !ok || string(v) != "a" {
		t.Fatalf("Get(1) = %q, %v", v, ok)
	}
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	c := New(2)
	c.Put(Key{Frame: 1}, []byte("a"))
	c.Put(Key{Frame: 2}, []byte("b"))

	// Touch frame 1 so frame 2 becomes the least-recently-used entry.
	c.Get(Key{Frame: 1})

	c.Put(Key{Frame: 3}, []byte("c"))

	if _, ok := c.Get(Key{Frame: 2}); ok {
		t.Error("frame 2 should have been evicted")
	}
	if _, ok := c.Get(Key{Frame: 1}); !ok {
		t.Error("frame 1 should still be cached")
	}
	if _, ok := c.Get(Key{Frame: 3}); !ok {
		t.Error("frame 3 should be cached")
	}
}

func TestLRUClear(t *testing.T) {
	t.Parallel()

	c := New(4)
	c.Put(Key{Frame: 1}, []byte("a"))
	c.Clear()

	if c.Len() != 0 {
		t.Fatalf("Len() after Clear = %d, want 0", c.Len())
	}
	if _, ok := c.Get(Key{Frame: 1}); ok {
		t.Error("frame 1 should be gone after Clear")
	}
}

func TestLRUUpdateExistingKeyRefreshesRecency(t *testing.T) {
	t.Parallel()

	c := New(2)
	c.Put(Key{Frame: 1}, []byte("a"))
	c.Put(Key{Frame: 2}, []byte("b"))
	c.Put(Key{Frame: 1}, []byte("a2")) // re-insert, should become MRU

	c.Put(Key{Frame: 3}, []byte("c")) // should evict frame 2, not frame 1

	if _, ok := c.Get(Key{Frame: 2}); ok {
		t.Error("frame 2 should have been evicted")
	}
	v, ok := c.Get(Key{Frame: 1})
	if !ok || string(v) != "a2" {
		t.Errorf("frame 1 = %q, %v, want a2,true", v, ok)
	}
}

func TestLRUDefaultCapacity(t *testing.T) {
	t.Parallel()

	c := New(0)
	for i := 0; i < DefaultCapacity+5; i++ {
		c.Put(Key{Frame: i}, []byte{byte(i)})
	}
	if c.Len() != DefaultCapacity {
		t.Errorf("Len() = %d, want %d", c.Len(), DefaultCapacity)
	}
}

func TestLRUStats(t *testing.T) {
	t.Parallel()

	c := New(2)
	c.Put(Key{Frame: 1}, []byte("a"))
	c.Get(Key{Frame: 1}) // hit
	c.Get(Key{Frame: 2}) // miss

	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("Stats() = hits=%d misses=%d, want 1,1", hits, misses)
	}
}
