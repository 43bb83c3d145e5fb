package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"main/internal/model"
)

// Exporter bridges internal counters onto a prometheus registry.
type Exporter struct {
	registry *prometheus.Registry
}

// NewExporter registers gauge functions over the metrics container and a
// stats provider (the orchestrator's GetStats view). Both are read lazily
// at scrape time.
func NewExporter(metrics *Metrics, stats func() model.PerformanceStats) *Exporter {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	gauge := func(name, help string, value func() float64) {
		registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "mdcore",
			Name:      name,
			Help:      help,
		}, value))
	}
	counter := func(name, help string, value func() float64) {
		registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "mdcore",
			Name:      name,
			Help:      help,
		}, value))
	}

	counter("events_processed_total", "Events consumed from all sources.",
		func() float64 { return float64(metrics.Snapshot().EventsProcessed) })
	counter("events_dropped_total", "Events rejected by full queues.",
		func() float64 { return float64(metrics.Snapshot().EventsDropped) })
	counter("validation_errors_total", "Books rejected by the cleaning pipeline.",
		func() float64 { return float64(metrics.Snapshot().ValidationErrors) })
	counter("source_errors_total", "Errors reported by source adapters.",
		func() float64 { return float64(metrics.Snapshot().SourceErrors) })
	gauge("clean_latency_avg_nanoseconds", "Average cleaning pass latency.",
		func() float64 { return float64(metrics.Snapshot().CleanLatency.Avg) })
	gauge("clean_latency_max_nanoseconds", "Worst cleaning pass latency.",
		func() float64 { return float64(metrics.Snapshot().CleanLatency.Max) })

	gauge("active_books", "Canonical books currently held.",
		func() float64 { return float64(stats().ActiveBooks) })
	gauge("cache_hit_rate", "Tiered cache hit rate.",
		func() float64 { return stats().CacheHitRate })
	gauge("ring_occupancy", "Ingest queue occupancy 0..1.",
		func() float64 { return stats().RingOccupancy })
	counter("pool_fallback_allocs_total", "Pool checkouts served by fresh allocation.",
		func() float64 { return float64(stats().PoolFallbackAllocs) })
	counter("anomalies_emitted_total", "Consistency records emitted.",
		func() float64 { return float64(stats().AnomaliesEmitted) })

	return &Exporter{registry: registry}
}

// Handler returns the scrape endpoint handler.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
