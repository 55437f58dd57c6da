package bridge

import (
	"sync"
	"testing"
)

func TestRingOverflowDropsOldest(t *testing.T) {
	r := NewRing[int](50)
	evictions := 0
	for i := 1; i <= 51; i++ {
		if r.Push(i) {
			evictions++
		}
	}
	if evictions != 1 {
		t.Errorf("evictions = %d, want 1", evictions)
	}
	if r.Len() != 50 {
		t.Fatalf("Len() = %d, want 50", r.Len())
	}
	items, ok := r.Drain()
	if !ok {
		t.Fatal("uncontended Drain failed")
	}
	if len(items) != 50 || items[0] != 2 || items[49] != 51 {
		t.Fatalf("drained %d items, first=%d last=%d; want 50, 2, 51", len(items), items[0], items[len(items)-1])
	}
	for i := 1; i < len(items); i++ {
		if items[i] != items[i-1]+1 {
			t.Fatalf("items out of order at %d: %v", i, items)
		}
	}
}

func TestRingDrainEmpties(t *testing.T) {
	r := NewRing[string](4)
	r.Push("a")
	r.Push("b")

	first, ok := r.Drain()
	if !ok || len(first) != 2 || first[0] != "a" || first[1] != "b" {
		t.Fatalf("first Drain = %v, %v", first, ok)
	}
	second, ok := r.Drain()
	if !ok || len(second) != 0 {
		t.Fatalf("second Drain = %v, %v; want empty", second, ok)
	}

	// The ring keeps working after wrap-around and drain.
	for i := 0; i < 10; i++ {
		r.Push("x")
	}
	r.Push("last")
	items, _ := r.Drain()
	if len(items) != 4 || items[3] != "last" {
		t.Fatalf("after wrap Drain = %v", items)
	}
}

func TestRingDrainDoesNotWaitForWriter(t *testing.T) {
	r := NewRing[int](4)
	r.Push(1)

	r.mu.Lock()
	items, ok := r.Drain()
	r.mu.Unlock()

	if ok || items != nil {
		t.Fatalf("contended Drain = %v, %v; want nil, false", items, ok)
	}
	items, ok = r.Drain()
	if !ok || len(items) != 1 {
		t.Fatalf("Drain after unlock = %v, %v; want the entry still queued", items, ok)
	}
}

func TestRingDefaultCapacity(t *testing.T) {
	if c := NewRing[int](0).Cap(); c != DefaultQueueCapacity {
		t.Errorf("Cap() = %d, want %d", c, DefaultQueueCapacity)
	}
}

func TestRingConcurrentPushNeverExceedsCapacity(t *testing.T) {
	r := NewRing[int](8)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				r.Push(i)
				r.Drain()
			}
		}()
	}
	wg.Wait()
	if r.Len() > r.Cap() {
		t.Fatalf("Len() = %d exceeds Cap() = %d", r.Len(), r.Cap())
	}
}
