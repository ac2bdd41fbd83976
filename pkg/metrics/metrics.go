// Package metrics exposes Prometheus instruments for the HTTP surface, the memoized
// computations and the background work queue. A nil *Metrics records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "tabula"

// Computation kinds used as label values.
const (
	KindStats    = "basic_stats"
	KindCleaning = "cleaning"
	KindPlot     = "plot"
)

// Metrics holds the registered instruments.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	computeTime     *prometheus.HistogramVec
	storedFiles     *prometheus.CounterVec
	storedBytes     prometheus.Counter
	taskTransitions *prometheus.CounterVec
}

// New creates the instruments on a private registry together with the Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cache_lookups_total",
			Help:      "Lookups of stored results by kind and outcome.",
		}, []string{"kind", "result"}),
		computeTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "compute_duration_seconds",
			Help:      "Time spent computing results on a cache miss.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 15},
		}, []string{"kind"}),
		storedFiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "files_stored_total",
			Help:      "Files written to the upload directory by origin.",
		}, []string{"origin"}),
		storedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "files_stored_bytes_total",
			Help:      "Bytes written to the upload directory.",
		}),
		taskTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "task_transitions_total",
			Help:      "Background task state changes by task name and status.",
		}, []string{"task", "status"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.cacheLookups,
		m.computeTime,
		m.storedFiles,
		m.storedBytes,
		m.taskTransitions,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// CacheLookup counts a stored-result lookup.
func (m *Metrics) CacheLookup(kind string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(kind, result).Inc()
}

// ObserveCompute records how long a computation took.
func (m *Metrics) ObserveCompute(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.computeTime.WithLabelValues(kind).Observe(d.Seconds())
}

// FileStored counts a written file. origin is "upload" or "cleaning".
func (m *Metrics) FileStored(origin string, size int64) {
	if m == nil {
		return
	}
	m.storedFiles.WithLabelValues(origin).Inc()
	m.storedBytes.Add(float64(size))
}

// TaskTransition counts a background task changing state.
func (m *Metrics) TaskTransition(task, status string) {
	if m == nil {
		return
	}
	m.taskTransitions.WithLabelValues(task, status).Inc()
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}
