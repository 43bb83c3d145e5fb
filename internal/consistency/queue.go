package consistency

import (
	"sync"

	"main/internal/model"
)

// Queue is the bounded anomaly buffer between the orchestrator loop and the
// downstream publishers. When full it drops the oldest record: anomalies are
// observational, so freshness wins over completeness.
type Queue struct {
	mu      sync.Mutex
	buf     []model.AnomalyRecord
	head    int
	size    int
	dropped uint64
	emitted uint64
}

// NewQueue allocates a queue holding at most capacity records.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Queue{buf: make([]model.AnomalyRecord, capacity)}
}

// Push enqueues rec, evicting the oldest record when full.
func (q *Queue) Push(rec model.AnomalyRecord) {
	if q == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == len(q.buf) {
		q.head = (q.head + 1) % len(q.buf)
		q.size--
		q.dropped++
	}
	q.buf[(q.head+q.size)%len(q.buf)] = rec
	q.size++
	q.emitted++
}

// Drain appends up to max records to buf in arrival order and returns it.
func (q *Queue) Drain(buf []model.AnomalyRecord, max int) []model.AnomalyRecord {
	if q == nil || max <= 0 {
		return buf
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	for max > 0 && q.size > 0 {
		buf = append(buf, q.buf[q.head])
		q.head = (q.head + 1) % len(q.buf)
		q.size--
		max--
	}
	return buf
}

// Len returns the number of buffered records.
func (q *Queue) Len() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Dropped returns how many records were evicted unread.
func (q *Queue) Dropped() uint64 {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Emitted returns how many records were ever pushed.
func (q *Queue) Emitted() uint64 {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.emitted
}
