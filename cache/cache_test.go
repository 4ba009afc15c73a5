package cache

import (
	"fmt"
	"sync"
	"testing"
)

func TestShardedCacheGetSet(t *testing.T) {
	c := NewSharded[string, int](8, StringHasher)

	if _, ok := c.Get("missing"); ok {
		t.Error("Get on empty cache returned ok = true, want false")
	}

	c.Set("a", 1)
	c.Set("b", 2)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v, want 1, true", v, ok)
	}
	if v, ok := c.Get("b"); !ok || v != 2 {
		t.Errorf("Get(b) = %d, %v, want 2, true", v, ok)
	}

	// Overwrite keeps a single entry.
	c.Set("a", 10)
	if v, _ := c.Get("a"); v != 10 {
		t.Errorf("Get(a) after overwrite = %d, want 10", v)
	}
	if got := c.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

func TestShardedCacheGetOrCreate(t *testing.T) {
	c := NewSharded[string, int](8, StringHasher)

	calls := 0
	create := func() int {
		calls++
		return 42
	}

	if v := c.GetOrCreate("k", create); v != 42 {
		t.Errorf("GetOrCreate = %d, want 42", v)
	}
	if v := c.GetOrCreate("k", create); v != 42 {
		t.Errorf("GetOrCreate (hit) = %d, want 42", v)
	}
	if calls != 1 {
		t.Errorf("create called %d times, want 1", calls)
	}
}

func TestShardedCacheGetOrCreateSingleWinner(t *testing.T) {
	c := NewSharded[string, int](8, StringHasher)

	var mu sync.Mutex
	created := 0

	var wg sync.WaitGroup
	results := make([]int, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.GetOrCreate("shared", func() int {
				mu.Lock()
				created++
				n := created
				mu.Unlock()
				return n
			})
		}(i)
	}
	wg.Wait()

	if created != 1 {
		t.Errorf("create ran %d times for one key, want 1", created)
	}
	for i, v := range results {
		if v != results[0] {
			t.Errorf("goroutine %d observed %d, want %d (single winning value)", i, v, results[0])
		}
	}
}

func TestShardedCacheDelete(t *testing.T) {
	c := NewSharded[string, int](8, StringHasher)
	c.Set("a", 1)

	if !c.Delete("a") {
		t.Error("Delete(a) = false, want true")
	}
	if c.Delete("a") {
		t.Error("Delete(a) second time = true, want false")
	}
	if _, ok := c.Get("a"); ok {
		t.Error("Get(a) after delete returned ok = true")
	}
}

func TestShardedCacheEviction(t *testing.T) {
	// Capacity 2 per shard; same-shard keys via identity hasher.
	c := NewSharded[uint64, int](2, Uint64Hasher)

	// Keys 0, 16, 32 all land in shard 0 (multiples of DefaultShardCount).
	c.Set(0, 0)
	c.Set(16, 1)
	c.Set(32, 2) // evicts key 0 (oldest)

	if _, ok := c.Get(0); ok {
		t.Error("oldest entry survived eviction")
	}
	if _, ok := c.Get(32); !ok {
		t.Error("newest entry was evicted")
	}
	if stats := c.Stats(); stats.Evictions == 0 {
		t.Error("Stats().Evictions = 0 after eviction")
	}
}

func TestShardedCacheOnEvict(t *testing.T) {
	c := NewSharded[uint64, int](2, Uint64Hasher)

	type evicted struct {
		key   uint64
		value int
	}
	var got []evicted
	c.SetOnEvict(func(k uint64, v int) {
		got = append(got, evicted{k, v})
	})

	// Same-shard keys; the third insert displaces the oldest.
	c.Set(0, 10)
	c.Set(16, 11)
	c.Set(32, 12)

	if len(got) != 1 || got[0] != (evicted{0, 10}) {
		t.Fatalf("OnEvict saw %v, want [{0 10}]", got)
	}

	// Delete and Clear remove entries without the callback.
	c.Delete(16)
	c.Clear()
	if len(got) != 1 {
		t.Errorf("OnEvict called %d times after Delete and Clear, want 1", len(got))
	}
}

func TestShardedCacheRange(t *testing.T) {
	c := NewSharded[string, int](8, StringHasher)
	want := map[string]int{"a": 1, "b": 2, "c": 3}
	for k, v := range want {
		c.Set(k, v)
	}

	got := make(map[string]int)
	c.Range(func(k string, v int) bool {
		got[k] = v
		return true
	})

	if len(got) != len(want) {
		t.Fatalf("Range visited %d entries, want %d", len(got), len(want))
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("Range saw %s = %d, want %d", k, got[k], v)
		}
	}
}

func TestShardedCacheRangeEarlyStop(t *testing.T) {
	c := NewSharded[string, int](8, StringHasher)
	for i := 0; i < 10; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}

	visited := 0
	c.Range(func(string, int) bool {
		visited++
		return visited < 3
	})
	if visited != 3 {
		t.Errorf("Range visited %d entries after early stop, want 3", visited)
	}
}

func TestShardedCacheClear(t *testing.T) {
	c := NewSharded[string, int](8, StringHasher)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()

	if got := c.Len(); got != 0 {
		t.Errorf("Len() after Clear = %d, want 0", got)
	}
}

func TestShardedCacheStats(t *testing.T) {
	c := NewSharded[string, int](8, StringHasher)
	c.Set("a", 1)

	c.Get("a")       // hit
	c.Get("missing") // miss

	stats := c.Stats()
	if stats.Hits != 1 {
		t.Errorf("Hits = %d, want 1", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("HitRate = %v, want 0.5", stats.HitRate)
	}

	c.ResetStats()
	if stats = c.Stats(); stats.Hits != 0 || stats.Misses != 0 {
		t.Errorf("after ResetStats: hits=%d misses=%d, want 0, 0", stats.Hits, stats.Misses)
	}
}

func BenchmarkShardedCacheHit(b *testing.B) {
	c := NewSharded[string, int](DefaultCapacity, StringHasher)
	c.Set("key", 1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get("key")
	}
}

func BenchmarkShardedCacheParallel(b *testing.B) {
	c := NewSharded[uint64, int](DefaultCapacity, Uint64Hasher)
	for i := uint64(0); i < 256; i++ {
		c.Set(i, int(i))
	}

	b.RunParallel(func(pb *testing.PB) {
		var i uint64
		for pb.Next() {
			c.Get(i % 256)
			i++
		}
	})
}
