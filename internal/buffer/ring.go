// Package buffer provides the bounded single-producer/single-consumer ring
// used on the ingest hot path. Push on a full ring fails fast; the caller
// decides whether to drop or retry.
package buffer

import "sync/atomic"

// Ring is a lock-free SPSC ring buffer. Exactly one goroutine may call
// Push and exactly one may call Pop.
type Ring[T any] struct {
	buf  []T
	mask uint64

	head atomic.Uint64 // consumer position
	_    [56]byte      // keep head and tail on separate cache lines
	tail atomic.Uint64 // producer position
}

// NewRing allocates a ring; capacity is rounded up to a power of two.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	size := 1
	for size < capacity {
		size <<= 1
	}
	return &Ring[T]{
		buf:  make([]T, size),
		mask: uint64(size - 1),
	}
}

// Push appends v, returning false when the ring is full.
func (r *Ring[T]) Push(v T) bool {
	tail := r.tail.Load()
	head := r.head.Load()
	if tail-head > r.mask {
		return false
	}
	r.buf[tail&r.mask] = v
	r.tail.Store(tail + 1)
	return true
}

// Pop removes the oldest value, returning false when the ring is empty.
func (r *Ring[T]) Pop() (T, bool) {
	var zero T
	head := r.head.Load()
	if head == r.tail.Load() {
		return zero, false
	}
	v := r.buf[head&r.mask]
	r.buf[head&r.mask] = zero
	r.head.Store(head + 1)
	return v, true
}

// Len returns the current occupancy. Safe to call from either side.
func (r *Ring[T]) Len() int {
	return int(r.tail.Load() - r.head.Load())
}

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Occupancy returns Len/Cap as a ratio in [0,1].
func (r *Ring[T]) Occupancy() float64 {
	return float64(r.Len()) / float64(len(r.buf))
}
