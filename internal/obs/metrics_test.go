package obs

import (
	"testing"
	"time"

	"main/internal/source"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.ObserveEvent(source.EventSnapshot)
	m.ObserveEvent(source.EventSnapshot)
	m.ObserveEvent(source.EventTrade)
	m.IncDropped()
	m.IncValidationError()
	m.IncSourceError()

	snap := m.Snapshot()
	if snap.EventsProcessed != 3 {
		t.Fatalf("processed: %d", snap.EventsProcessed)
	}
	if snap.EventCounts[source.EventSnapshot] != 2 || snap.EventCounts[source.EventTrade] != 1 {
		t.Fatalf("counts: %+v", snap.EventCounts)
	}
	if snap.EventsDropped != 1 || snap.ValidationErrors != 1 || snap.SourceErrors != 1 {
		t.Fatalf("error counters: %+v", snap)
	}
}

func TestLatencyStats(t *testing.T) {
	m := NewMetrics()
	m.ObserveClean(10 * time.Millisecond)
	m.ObserveClean(20 * time.Millisecond)
	m.ObserveClean(30 * time.Millisecond)

	lat := m.Snapshot().CleanLatency
	if lat.Count != 3 {
		t.Fatalf("count: %d", lat.Count)
	}
	if lat.Min != 10*time.Millisecond || lat.Max != 30*time.Millisecond {
		t.Fatalf("min=%v max=%v", lat.Min, lat.Max)
	}
	if lat.Avg != 20*time.Millisecond {
		t.Fatalf("avg: %v", lat.Avg)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveEvent(source.EventTrade)
	m.IncDropped()
	m.ObserveClean(time.Millisecond)
	if snap := m.Snapshot(); snap.EventsProcessed != 0 {
		t.Fatalf("nil snapshot: %+v", snap)
	}
}
