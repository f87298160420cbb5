package cache

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestGetMiss(t *testing.T) {
	c := New[string, int]()
	if _, ok := c.Get("missing"); ok {
		t.Fatal("Get on empty cache reported a hit")
	}
	hits, misses, _ := c.Stats()
	if hits != 0 || misses != 1 {
		t.Errorf("stats = %d hits, %d misses; want 0, 1", hits, misses)
	}
}

func TestPutGet(t *testing.T) {
	c := New[string, int]()
	c.Put("a", 42)
	got, ok := c.Get("a")
	if !ok || got != 42 {
		t.Fatalf("Get(a) = %d, %v; want 42, true", got, ok)
	}
	c.Put("a", 7)
	if got, _ := c.Get("a"); got != 7 {
		t.Errorf("Get after overwrite = %d, want 7", got)
	}
}

func TestGetOrCreate(t *testing.T) {
	c := New[string, int]()
	created := 0
	create := func() (int, error) {
		created++
		return 10 * created, nil
	}
	for i := 0; i < 3; i++ {
		got, err := c.GetOrCreate("k", create)
		if err != nil {
			t.Fatalf("GetOrCreate: %v", err)
		}
		if got != 10 {
			t.Fatalf("GetOrCreate = %d, want 10", got)
		}
	}
	if created != 1 {
		t.Errorf("create ran %d times, want 1", created)
	}
}

func TestGetOrCreateError(t *testing.T) {
	c := New[string, int]()
	boom := errors.New("boom")
	if _, err := c.GetOrCreate("k", func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("GetOrCreate error = %v, want boom", err)
	}
	// Failed creation caches nothing.
	if c.Len() != 0 {
		t.Errorf("Len after failed create = %d, want 0", c.Len())
	}
	got, err := c.GetOrCreate("k", func() (int, error) { return 5, nil })
	if err != nil || got != 5 {
		t.Fatalf("retry after failure = %d, %v", got, err)
	}
}

func TestTTLEviction(t *testing.T) {
	var evicted []string
	c := New(
		WithTTL[string, int](2),
		WithEvict[string, int](func(k string, _ int) { evicted = append(evicted, k) }))
	c.Put("a", 1)

	c.NextFrame()
	if c.Len() != 1 {
		t.Fatal("entry evicted before TTL expired")
	}
	c.NextFrame()
	if c.Len() != 0 {
		t.Fatal("entry survived past TTL")
	}
	if len(evicted) != 1 || evicted[0] != "a" {
		t.Errorf("evicted = %v, want [a]", evicted)
	}
	_, _, evictions := c.Stats()
	if evictions != 1 {
		t.Errorf("eviction count = %d, want 1", evictions)
	}
}

func TestAccessRefreshesTTL(t *testing.T) {
	c := New(WithTTL[string, int](2))
	c.Put("a", 1)
	for i := 0; i < 10; i++ {
		c.NextFrame()
		if _, ok := c.Get("a"); !ok {
			t.Fatalf("entry in active use evicted at frame %d", i)
		}
	}
}

func TestPersistentEntriesSurvive(t *testing.T) {
	c := New(WithTTL[string, int](1))
	c.Put("pinned", 1)
	if !c.SetPersistent("pinned", true) {
		t.Fatal("SetPersistent on present key reported false")
	}
	if c.SetPersistent("missing", true) {
		t.Fatal("SetPersistent on absent key reported true")
	}
	for i := 0; i < 5; i++ {
		c.NextFrame()
	}
	if _, ok := c.Get("pinned"); !ok {
		t.Fatal("persistent entry was evicted")
	}

	c.SetPersistent("pinned", false)
	c.NextFrame()
	if c.Len() != 0 {
		t.Fatal("unpinned entry survived past TTL")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New[uint64, int]()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := HashString(fmt.Sprintf("key-%d", i%10))
				_, _ = c.GetOrCreate(key, func() (int, error) { return i, nil })
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()
	if c.Len() != 10 {
		t.Errorf("Len = %d, want 10", c.Len())
	}
}

func TestHashHelpers(t *testing.T) {
	if HashString("a") == HashString("b") {
		t.Error("distinct strings hash equal")
	}
	if HashString("pipeline") != HashString("pipeline") {
		t.Error("hash is not deterministic")
	}
	if HashBytes([]byte("ab")) != HashBytes([]byte("a"), []byte("b")) {
		t.Error("HashBytes should hash the concatenation of its parts")
	}
}
