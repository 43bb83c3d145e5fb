package model

import "time"

// PerformanceStats is a read-only snapshot exposed on demand.
type PerformanceStats struct {
	ActiveBooks        int
	EventsProcessed    uint64
	EventsDropped      uint64
	ValidationErrors   uint64
	BatchesProcessed   uint64
	AnomaliesEmitted   uint64
	CacheHitRate       float64
	RingOccupancy      float64
	PoolFallbackAllocs uint64
	CleanLatencyAvg    time.Duration
	CleanLatencyMax    time.Duration
	Uptime             time.Duration
}
