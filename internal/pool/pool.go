// Package pool bounds and reuses the allocations of the ingest path.
// Pools are warmed at construction so the first events do not pay an
// allocation spike; exhaustion falls back to fresh allocation (counted,
// never fatal).
package pool

import "sync/atomic"

// Pool is a fixed-capacity free list for *T instances.
type Pool[T any] struct {
	free  chan *T
	alloc func() *T
	reset func(*T)

	fallbackAllocs atomic.Uint64
	outstanding    atomic.Int64
}

// New builds a warmed pool of capacity instances.
func New[T any](capacity int, alloc func() *T, reset func(*T)) *Pool[T] {
	if capacity <= 0 {
		capacity = 1
	}
	p := &Pool[T]{
		free:  make(chan *T, capacity),
		alloc: alloc,
		reset: reset,
	}
	for i := 0; i < capacity; i++ {
		p.free <- alloc()
	}
	return p
}

// Get checks out a reset instance, allocating fresh past capacity.
func (p *Pool[T]) Get() *T {
	p.outstanding.Add(1)
	select {
	case v := <-p.free:
		p.reset(v)
		return v
	default:
		p.fallbackAllocs.Add(1)
		return p.alloc()
	}
}

// Put returns an instance for reuse. Instances beyond capacity are left
// for the garbage collector.
func (p *Pool[T]) Put(v *T) {
	if v == nil {
		return
	}
	p.outstanding.Add(-1)
	select {
	case p.free <- v:
	default:
	}
}

// Capacity returns the warmed capacity.
func (p *Pool[T]) Capacity() int {
	return cap(p.free)
}

// Free returns the number of idle pooled instances.
func (p *Pool[T]) Free() int {
	return len(p.free)
}

// FallbackAllocs reports how many Gets exceeded the pool capacity.
func (p *Pool[T]) FallbackAllocs() uint64 {
	return p.fallbackAllocs.Load()
}

// Outstanding reports checked-out instances not yet returned.
func (p *Pool[T]) Outstanding() int64 {
	return p.outstanding.Load()
}
