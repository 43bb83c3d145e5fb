// Package bus carries adapter events into the orchestrator. Publishing
// never blocks: when the consumer lags the event is dropped and counted,
// keeping adapter read loops healthy.
package bus

import (
	"context"
	"errors"
	"sync/atomic"

	"main/internal/source"
)

var (
	ErrQueueFull   = errors.New("event queue full")
	ErrQueueClosed = errors.New("event queue closed")
)

// Queue is a bounded, non-blocking queue of source events.
type Queue struct {
	ch      chan source.Event
	closed  uint32
	dropped atomic.Uint64
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan source.Event, capacity)}
}

// TryPublish enqueues an event without blocking.
func (q *Queue) TryPublish(e source.Event) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return ErrQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	default:
		q.dropped.Add(1)
		return ErrQueueFull
	}
}

// C exposes the receive side for the orchestrator's select loop.
func (q *Queue) C() <-chan source.Event {
	return q.ch
}

// Len returns the number of buffered events.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}

// Dropped reports events rejected because the queue was full.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Close stops the queue from accepting new events.
func (q *Queue) Close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.ch)
	}
}

// Run consumes events until the context is done or the queue is closed.
func (q *Queue) Run(ctx context.Context, handler func(source.Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-q.ch:
			if !ok {
				return
			}
			handler(e)
		}
	}
}
