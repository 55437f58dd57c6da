package bridge

import "sync"

// DefaultQueueCapacity is the size of each output queue.
const DefaultQueueCapacity = 50

// Ring is a bounded FIFO that evicts its oldest entry to admit a new one
// once full. Drain never waits on the lock: a fixed-tick consumer must not
// stall behind a writer, so a contended drain returns nothing and the data
// is picked up on the next tick.
type Ring[T any] struct {
	mu    sync.Mutex
	buf   []T
	head  int // index of the oldest entry
	count int
}

// NewRing creates a ring holding at most capacity entries.
// A non-positive capacity falls back to DefaultQueueCapacity.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v, evicting the oldest entry when the ring is full.
// It reports whether an entry was evicted.
func (r *Ring[T]) Push(v T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == len(r.buf) {
		r.buf[r.head] = v
		r.head = (r.head + 1) % len(r.buf)
		return true
	}
	r.buf[(r.head+r.count)%len(r.buf)] = v
	r.count++
	return false
}

// Drain removes and returns every entry, oldest first. ok is false when the
// lock was held by a writer; the ring is untouched in that case.
func (r *Ring[T]) Drain() (items []T, ok bool) {
	if !r.mu.TryLock() {
		return nil, false
	}
	defer r.mu.Unlock()

	if r.count == 0 {
		return nil, true
	}
	items = make([]T, r.count)
	var zero T
	for i := range items {
		idx := (r.head + i) % len(r.buf)
		items[i] = r.buf[idx]
		r.buf[idx] = zero
	}
	r.head, r.count = 0, 0
	return items, true
}

// Len returns the number of queued entries.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Cap returns the ring's capacity.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}
