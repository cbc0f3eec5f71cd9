// Package metrics exposes Prometheus instrumentation for the zone manager,
// buffered zone files, and the zone reset driver.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every metric this module exports.
type Registry struct {
	ZonesTotal     prometheus.Gauge
	ZonesFree      prometheus.Gauge
	ZonesAllocated prometheus.Gauge

	BufferedBytes *prometheus.GaugeVec
	FlushedBytes  *prometheus.GaugeVec
	FlushDuration prometheus.Histogram

	ZoneResetsTotal        prometheus.Counter
	ZoneResetFailuresTotal prometheus.Counter

	OpenResourceExhaustedTotal prometheus.Counter

	registry *prometheus.Registry
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry, creating it on first
// use.
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry builds a fresh Registry with all metrics pre-registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{registry: reg}

	r.ZonesTotal = promauto.With(reg).NewGauge(prometheus.GaugeOpts{
		Name: "znswal_zones_total",
		Help: "Total number of zone files discovered under the configured root",
	})
	r.ZonesFree = promauto.With(reg).NewGauge(prometheus.GaugeOpts{
		Name: "znswal_zones_free",
		Help: "Number of zones currently Free",
	})
	r.ZonesAllocated = promauto.With(reg).NewGauge(prometheus.GaugeOpts{
		Name: "znswal_zones_allocated",
		Help: "Number of zones currently Allocated",
	})

	r.BufferedBytes = promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
		Name: "znswal_buffered_bytes",
		Help: "Logical size of an open ZNS WAL handle's write buffer",
	}, []string{"zone"})
	r.FlushedBytes = promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
		Name: "znswal_flushed_bytes",
		Help: "Bytes already flushed to the underlying zone file for an open handle",
	}, []string{"zone"})
	r.FlushDuration = promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
		Name:    "znswal_flush_duration_seconds",
		Help:    "Duration of buffer flushes issued at sync points",
		Buckets: prometheus.DefBuckets,
	})

	r.ZoneResetsTotal = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "znswal_zone_resets_total",
		Help: "Total number of zone resets issued by WAL deletes (resets from truncate to zero are not counted)",
	})
	r.ZoneResetFailuresTotal = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "znswal_zone_reset_failures_total",
		Help: "Total number of zone resets issued by WAL deletes that failed",
	})

	r.OpenResourceExhaustedTotal = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "znswal_open_resource_exhausted_total",
		Help: "Total number of WAL opens rejected because no zone was free",
	})

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry, for
// wiring into an HTTP /metrics handler.
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// ZoneStats is the subset of zone.Stats this package needs, kept narrow so
// metrics doesn't import the zone package just to read three ints.
type ZoneStats struct {
	Zones, Free, Allocated int
}

// UpdateZoneStats refreshes the zone gauges from a point-in-time snapshot.
func (r *Registry) UpdateZoneStats(s ZoneStats) {
	r.ZonesTotal.Set(float64(s.Zones))
	r.ZonesFree.Set(float64(s.Free))
	r.ZonesAllocated.Set(float64(s.Allocated))
}

// RecordFlush records how long a buffer flush took.
func (r *Registry) RecordFlush(d time.Duration) {
	r.FlushDuration.Observe(d.Seconds())
}

// RecordZoneReset records a zone-reset outcome.
func (r *Registry) RecordZoneReset(err error) {
	r.ZoneResetsTotal.Inc()
	if err != nil {
		r.ZoneResetFailuresTotal.Inc()
	}
}

// RecordOpenResourceExhausted records a WAL open rejected for lack of a
// free zone.
func (r *Registry) RecordOpenResourceExhausted() {
	r.OpenResourceExhaustedTotal.Inc()
}

// SetHandleBytes updates the per-handle buffered/flushed gauges, labeled by
// zone path.
func (r *Registry) SetHandleBytes(zonePath string, buffered, flushed uint64) {
	r.BufferedBytes.WithLabelValues(zonePath).Set(float64(buffered))
	r.FlushedBytes.WithLabelValues(zonePath).Set(float64(flushed))
}

// DeleteHandle removes a closed handle's per-zone gauge series so closed
// handles don't leak label cardinality.
func (r *Registry) DeleteHandle(zonePath string) {
	r.BufferedBytes.DeleteLabelValues(zonePath)
	r.FlushedBytes.DeleteLabelValues(zonePath)
}
