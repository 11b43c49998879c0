// Package metrics exposes Prometheus instrumentation for a running
// watch. A process-wide singleton keeps registration idempotent; the
// CLI decides whether the scrape endpoint is served.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the watch service.
type Metrics struct {
	RawEvents       *prometheus.CounterVec
	FilteredEvents  prometheus.Counter
	Batches         *prometheus.CounterVec
	BatchPaths      *prometheus.CounterVec
	HandlerDuration *prometheus.HistogramVec
	HandlerPanics   *prometheus.CounterVec
	PendingEntries  prometheus.Gauge
	DroppedEvents   prometheus.Gauge
	SourceErrors    prometheus.Counter
	registry        *prometheus.Registry
}

var (
	instance *Metrics
	once     sync.Once
)

// New creates and registers all metrics (singleton; repeated calls
// return the same instance).
func New() *Metrics {
	once.Do(func() {
		registry := prometheus.NewRegistry()

		m := &Metrics{
			RawEvents: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "vigil_raw_events_total",
					Help: "Raw filesystem events observed, by backend and kind",
				},
				[]string{"backend", "kind"},
			),
			FilteredEvents: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "vigil_filtered_events_total",
					Help: "Raw events dropped by the pattern or type filters",
				},
			),
			Batches: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "vigil_batches_total",
					Help: "Batches delivered to handlers, by category",
				},
				[]string{"category"},
			),
			BatchPaths: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "vigil_batch_paths_total",
					Help: "Paths delivered inside batches, by category",
				},
				[]string{"category"},
			),
			HandlerDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "vigil_handler_duration_seconds",
					Help:    "Handler execution time in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"category"},
			),
			HandlerPanics: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "vigil_handler_panics_total",
					Help: "Handler invocations that panicked, by category",
				},
				[]string{"category"},
			),
			PendingEntries: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "vigil_pending_entries",
					Help: "Paths currently awaiting their debounce window",
				},
			),
			DroppedEvents: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "vigil_dropped_events",
					Help: "Raw events discarded because the event buffer was full",
				},
			),
			SourceErrors: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "vigil_source_errors_total",
					Help: "Transient source errors skipped",
				},
			),
			registry: registry,
		}

		registry.MustRegister(m.RawEvents)
		registry.MustRegister(m.FilteredEvents)
		registry.MustRegister(m.Batches)
		registry.MustRegister(m.BatchPaths)
		registry.MustRegister(m.HandlerDuration)
		registry.MustRegister(m.HandlerPanics)
		registry.MustRegister(m.PendingEntries)
		registry.MustRegister(m.DroppedEvents)
		registry.MustRegister(m.SourceErrors)

		instance = m
	})

	return instance
}

// RecordRawEvent counts one raw event.
func (m *Metrics) RecordRawEvent(backend, kind string) {
	m.RawEvents.WithLabelValues(backend, kind).Inc()
}

// RecordFiltered counts one event dropped before classification.
func (m *Metrics) RecordFiltered() {
	m.FilteredEvents.Inc()
}

// RecordBatch counts one delivered batch and its paths.
func (m *Metrics) RecordBatch(category string, size int) {
	m.Batches.WithLabelValues(category).Inc()
	m.BatchPaths.WithLabelValues(category).Add(float64(size))
}

// ObserveHandler records one handler invocation's duration.
func (m *Metrics) ObserveHandler(category string, seconds float64) {
	m.HandlerDuration.WithLabelValues(category).Observe(seconds)
}

// RecordPanic counts one recovered handler panic.
func (m *Metrics) RecordPanic(category string) {
	m.HandlerPanics.WithLabelValues(category).Inc()
}

// SetPending publishes the current pending entry count.
func (m *Metrics) SetPending(n int) {
	m.PendingEntries.Set(float64(n))
}

// SetDropped publishes the source's running drop count.
func (m *Metrics) SetDropped(n uint64) {
	m.DroppedEvents.Set(float64(n))
}

// RecordSourceError counts one skipped transient source error.
func (m *Metrics) RecordSourceError() {
	m.SourceErrors.Inc()
}

// Handler returns the Prometheus scrape handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ResetForTesting resets the singleton for testing.
func ResetForTesting() {
	instance = nil
	once = sync.Once{}
}
