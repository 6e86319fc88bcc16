package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestGetWithinTTL(t *testing.T) {
	clock := newFakeClock()
	c := New(Options{Now: clock.Now})

	c.Set(KeyEnvScan, "snapshot")
	clock.Advance(4 * time.Second)

	v, ok := c.Get(KeyEnvScan)
	if !ok {
		t.Fatal("Get() should hit within TTL")
	}
	if v != "snapshot" {
		t.Errorf("Get() = %v, want snapshot", v)
	}
}

func TestGetExpiresAtBoundary(t *testing.T) {
	tests := []struct {
		name    string
		ttl     time.Duration
		advance time.Duration
		wantHit bool
	}{
		{name: "just before expiry", ttl: 5 * time.Second, advance: 5*time.Second - time.Millisecond, wantHit: true},
		{name: "exactly at expiry", ttl: 5 * time.Second, advance: 5 * time.Second, wantHit: false},
		{name: "after expiry", ttl: 5 * time.Second, advance: 6 * time.Second, wantHit: false},
		{name: "structure ttl", ttl: StructureTTL, advance: 29 * time.Second, wantHit: true},
		{name: "build ttl expired", ttl: BuildTTL, advance: 61 * time.Second, wantHit: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			c := New(Options{Now: clock.Now})
			c.SetWithTTL("k", 1, tt.ttl)
			clock.Advance(tt.advance)

			_, ok := c.Get("k")
			if ok != tt.wantHit {
				t.Errorf("Get() hit = %v, want %v", ok, tt.wantHit)
			}
			if !tt.wantHit && c.Len() != 0 {
				t.Errorf("expired entry should be purged, Len() = %d", c.Len())
			}
		})
	}
}

func TestBoundEvictsEarliestInserted(t *testing.T) {
	clock := newFakeClock()
	c := New(Options{Now: clock.Now})

	for i := 0; i < DefaultMaxEntries; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}
	// Reading k0 must not protect it: eviction is by insertion, not use.
	if _, ok := c.Get("k0"); !ok {
		t.Fatal("k0 should be present before overflow")
	}

	c.Set("k10", 10)

	if c.Len() != DefaultMaxEntries {
		t.Errorf("Len() = %d, want %d", c.Len(), DefaultMaxEntries)
	}
	if _, ok := c.Get("k0"); ok {
		t.Error("k0 should have been evicted")
	}
	if _, ok := c.Get("k10"); !ok {
		t.Error("k10 should be present")
	}
}

func TestOverwriteCountsAsInsertion(t *testing.T) {
	c := New(Options{MaxEntries: 3})

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	c.Set("a", 11) // moves a behind c
	c.Set("d", 4)  // evicts b

	want := []string{"c", "a", "d"}
	if diff := cmp.Diff(want, c.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
	v, _ := c.Get("a")
	if v != 11 {
		t.Errorf("Get(a) = %v, want 11", v)
	}
}

func TestOverwriteResetsTTL(t *testing.T) {
	clock := newFakeClock()
	c := New(Options{Now: clock.Now})

	c.Set("k", 1)
	clock.Advance(4 * time.Second)
	c.Set("k", 2)
	clock.Advance(4 * time.Second)

	if v, ok := c.Get("k"); !ok || v != 2 {
		t.Errorf("Get() = %v, %v; want 2, true", v, ok)
	}
}

func TestDelete(t *testing.T) {
	c := New(Options{})
	c.Set(KeyStructure, "s")
	c.Set(KeyEnvScan, "e")
	c.Set("other", "o")

	c.Delete(KeyStructure, KeyEnvScan, "missing")

	if diff := cmp.Diff([]string{"other"}, c.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
}

func TestGetAs(t *testing.T) {
	c := New(Options{})
	c.Set("n", 42)

	n, ok := GetAs[int](c, "n")
	if !ok || n != 42 {
		t.Errorf("GetAs[int]() = %d, %v; want 42, true", n, ok)
	}
	if _, ok := GetAs[string](c, "n"); ok {
		t.Error("GetAs[string]() should miss on type mismatch")
	}
	if _, ok := GetAs[int](c, "absent"); ok {
		t.Error("GetAs() should miss on absent key")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New(Options{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("k%d", (id*j)%15)
				c.Set(key, j)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	if c.Len() > DefaultMaxEntries {
		t.Errorf("Len() = %d exceeds bound %d", c.Len(), DefaultMaxEntries)
	}
}
