// Package obs collects runtime counters and latency stats. The hot path
// only touches atomics; exporting and aggregation happen on demand.
package obs

import (
	"sync/atomic"
	"time"

	"main/internal/source"
)

const maxEventKind = int(source.EventErr)

// Metrics collects lightweight counters and latency stats.
type Metrics struct {
	eventCounts      [maxEventKind + 1]uint64
	eventsDropped    uint64
	validationErrors uint64
	sourceErrors     uint64

	cleanLatency   LatencyStats
	inspectLatency LatencyStats
	commandLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	EventCounts      map[source.EventKind]uint64
	EventsProcessed  uint64
	EventsDropped    uint64
	ValidationErrors uint64
	SourceErrors     uint64
	CleanLatency     LatencySnapshot
	InspectLatency   LatencySnapshot
	CommandLatency   LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveEvent counts one processed event by kind.
func (m *Metrics) ObserveEvent(kind source.EventKind) {
	if m == nil {
		return
	}
	idx := int(kind)
	if idx >= 0 && idx < len(m.eventCounts) {
		atomic.AddUint64(&m.eventCounts[idx], 1)
	}
}

// IncDropped records an event rejected by a full queue.
func (m *Metrics) IncDropped() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.eventsDropped, 1)
}

// IncValidationError records a book rejected by the cleaning pipeline.
func (m *Metrics) IncValidationError() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.validationErrors, 1)
}

// IncSourceError records an adapter-reported error.
func (m *Metrics) IncSourceError() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.sourceErrors, 1)
}

// ObserveClean measures one cleaning pass.
func (m *Metrics) ObserveClean(d time.Duration) {
	if m == nil {
		return
	}
	m.cleanLatency.Observe(d)
}

// ObserveInspect measures one consistency inspection.
func (m *Metrics) ObserveInspect(d time.Duration) {
	if m == nil {
		return
	}
	m.inspectLatency.Observe(d)
}

// ObserveCommand measures one command round trip inside the loop.
func (m *Metrics) ObserveCommand(d time.Duration) {
	if m == nil {
		return
	}
	m.commandLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	eventCounts := make(map[source.EventKind]uint64)
	var processed uint64
	for i := range m.eventCounts {
		if v := atomic.LoadUint64(&m.eventCounts[i]); v > 0 {
			eventCounts[source.EventKind(i)] = v
			processed += v
		}
	}
	return Snapshot{
		EventCounts:      eventCounts,
		EventsProcessed:  processed,
		EventsDropped:    atomic.LoadUint64(&m.eventsDropped),
		ValidationErrors: atomic.LoadUint64(&m.validationErrors),
		SourceErrors:     atomic.LoadUint64(&m.sourceErrors),
		CleanLatency:     m.cleanLatency.Snapshot(),
		InspectLatency:   m.inspectLatency.Snapshot(),
		CommandLatency:   m.commandLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
