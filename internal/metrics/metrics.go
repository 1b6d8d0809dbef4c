// Package metrics exposes Prometheus metrics for the copy service.
package metrics

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of the service
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	CopiesTotal        *prometheus.CounterVec
	CopyDuration       *prometheus.HistogramVec
	CopyPollsTotal     prometheus.Counter
	EnumerationsTotal  *prometheus.CounterVec
	EnumeratedItems    *prometheus.CounterVec
	SecretLookupsTotal *prometheus.CounterVec

	registry *prometheus.Registry

	requestCount uint64
	errorCount   uint64
	copyCount    uint64
	startTime    atomic.Int64
}

// Stats is a point in time summary of the service counters
type Stats struct {
	TotalRequests  uint64        `json:"total_requests"`
	TotalErrors    uint64        `json:"total_errors"`
	TotalCopies    uint64        `json:"total_copies"`
	RequestsPerSec float64       `json:"requests_per_sec"`
	ErrorRate      float64       `json:"error_rate"`
	Uptime         time.Duration `json:"uptime"`
}

var (
	metricsOnce   sync.Once
	globalMetrics *Metrics
)

// NewMetrics creates the service metrics (singleton to avoid duplicate registration)
func NewMetrics(namespace string) *Metrics {
	metricsOnce.Do(func() {
		if namespace == "" {
			namespace = "blob_copy_service"
		}
		globalMetrics = newMetrics(namespace, prometheus.NewRegistry())
	})
	return globalMetrics
}

func newMetrics(namespace string, registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being served",
		}),
		CopiesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "copies_total",
			Help:      "Total number of copy operations by final status",
		}, []string{"source", "destination", "status"}),
		CopyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "copy_duration_seconds",
			Help:      "Time from copy initiation to the reported status",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"status"}),
		CopyPollsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "copy_status_reads_total",
			Help:      "Total number of destination copy status reads",
		}),
		EnumerationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enumerations_total",
			Help:      "Total number of account enumerations by kind and result",
		}, []string{"kind", "result"}),
		EnumeratedItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enumerated_items_total",
			Help:      "Total number of names returned by enumerations",
		}, []string{"kind"}),
		SecretLookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "secret_lookups_total",
			Help:      "Total number of secret store lookups by result",
		}, []string{"result"}),
		registry: registry,
	}
	m.startTime.Store(time.Now().UnixNano())

	registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.CopiesTotal,
		m.CopyDuration,
		m.CopyPollsTotal,
		m.EnumerationsTotal,
		m.EnumeratedItems,
		m.SecretLookupsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// IncRequest counts a served HTTP request
func (m *Metrics) IncRequest(method, route string, status int) {
	atomic.AddUint64(&m.requestCount, 1)
	if status >= http.StatusInternalServerError {
		atomic.AddUint64(&m.errorCount, 1)
	}
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// ObserveRequestDuration records HTTP request latency
func (m *Metrics) ObserveRequestDuration(method, route string, d time.Duration) {
	m.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordCopy counts a finished copy and its duration.
func (m *Metrics) RecordCopy(source, destination, status string, d time.Duration) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.copyCount, 1)
	m.CopiesTotal.WithLabelValues(source, destination, status).Inc()
	m.CopyDuration.WithLabelValues(status).Observe(d.Seconds())
}

// IncCopyPoll counts a destination copy status read.
func (m *Metrics) IncCopyPoll() {
	if m == nil {
		return
	}
	m.CopyPollsTotal.Inc()
}

// RecordEnumeration counts an account enumeration and the names it returned.
func (m *Metrics) RecordEnumeration(kind string, items int, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.EnumerationsTotal.WithLabelValues(kind, result).Inc()
	if items > 0 {
		m.EnumeratedItems.WithLabelValues(kind).Add(float64(items))
	}
}

// RecordSecretLookup counts a secret store lookup.
func (m *Metrics) RecordSecretLookup(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.SecretLookupsTotal.WithLabelValues(result).Inc()
}

// GetStats returns the current counters
func (m *Metrics) GetStats() Stats {
	requests := atomic.LoadUint64(&m.requestCount)
	errs := atomic.LoadUint64(&m.errorCount)
	uptime := time.Since(time.Unix(0, m.startTime.Load()))

	stats := Stats{
		TotalRequests: requests,
		TotalErrors:   errs,
		TotalCopies:   atomic.LoadUint64(&m.copyCount),
		Uptime:        uptime,
	}
	if secs := uptime.Seconds(); secs > 0 {
		stats.RequestsPerSec = float64(requests) / secs
	}
	if requests > 0 {
		stats.ErrorRate = float64(errs) / float64(requests)
	}
	return stats
}

// ResetStats zeroes the in-process counters. Prometheus collectors are not affected.
func (m *Metrics) ResetStats() {
	atomic.StoreUint64(&m.requestCount, 0)
	atomic.StoreUint64(&m.errorCount, 0)
	atomic.StoreUint64(&m.copyCount, 0)
	m.startTime.Store(time.Now().UnixNano())
}

// Handler serves the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// StatsHandler serves GetStats as JSON
func (m *Metrics) StatsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(m.GetStats())
	})
}

// ResetStatsHandler zeroes the in-process counters and answers 204.
func (m *Metrics) ResetStatsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		m.ResetStats()
		w.WriteHeader(http.StatusNoContent)
	})
}

// Middleware records request count, latency and in-flight requests
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			route := routeLabel(r)
			m.IncRequest(r.Method, route, rw.statusCode)
			m.ObserveRequestDuration(r.Method, route, time.Since(start))
		})
	}
}

// routeLabel keeps label cardinality bounded by collapsing unknown paths.
func routeLabel(r *http.Request) string {
	p := strings.TrimSuffix(r.URL.Path, "/")
	switch p {
	case "":
		return "/"
	case "/health", "/health/config", "/list/blobs", "/list/files", "/list/all", "/copy", "/copy/all", "/metrics", "/stats":
		return p
	default:
		return "other"
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}
