package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsSnapshot is a point-in-time summary for the stats endpoint.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CodesIssued              uint64    `json:"codes_issued"`
	IssuanceConflicts        uint64    `json:"issuance_conflicts"`
	ImageFailures            uint64    `json:"image_failures"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// MetricsService owns a private Prometheus registry for the packing service.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	cacheWrite      prometheus.Histogram
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	issuances       *prometheus.CounterVec
	codesIssued     prometheus.Counter
	engineDuration  *prometheus.HistogramVec
	scans           *prometheus.CounterVec
	imageFailures   prometheus.Counter
	renderDuration  *prometheus.HistogramVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	codesIssuedCount     uint64
	conflictCount        uint64
	imageFailureCount    uint64
}

// NewMetricsService registers the collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency for cache writes",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cache_hit_ratio",
			Help: "Ratio of cache hits to total cache lookups",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total cache misses",
		}),
		issuances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qr_issuances_total",
			Help: "Article issuance attempts by outcome",
		}, []string{"outcome"}),
		codesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qr_codes_issued_total",
			Help: "Codes inserted by issuance",
		}),
		engineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qr_engine_operation_seconds",
			Help:    "Duration of issuance engine operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qr_scans_total",
			Help: "Scan attempts by outcome",
		}, []string{"outcome"}),
		imageFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qr_image_failures_total",
			Help: "Code rasters that could not be written",
		}),
		renderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "document_render_seconds",
			Help:    "Duration of label document rendering",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"format", "outcome"}),
	}
	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal,
		m.cacheLatency, m.cacheWrite, m.cacheHitRatio, m.cacheHits, m.cacheMisses,
		m.issuances, m.codesIssued, m.engineDuration, m.scans, m.imageFailures, m.renderDuration,
		goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records a cache hit or miss and refreshes the ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks cache write latency.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordIssuance counts one article issuance attempt. outcome is issued, conflict or error.
func (m *MetricsService) RecordIssuance(outcome string, codes int) {
	if m == nil {
		return
	}
	m.issuances.WithLabelValues(outcome).Inc()
	if codes > 0 {
		m.codesIssued.Add(float64(codes))
		atomic.AddUint64(&m.codesIssuedCount, uint64(codes))
	}
	if outcome == "conflict" {
		atomic.AddUint64(&m.conflictCount, 1)
	}
}

// ObserveEngineOperation times an issuance engine call.
func (m *MetricsService) ObserveEngineOperation(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.engineDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}

// RecordScan counts a scan attempt.
func (m *MetricsService) RecordScan(outcome string) {
	if m == nil {
		return
	}
	m.scans.WithLabelValues(outcome).Inc()
}

// RecordImageFailures counts rasters that failed to render.
func (m *MetricsService) RecordImageFailures(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.imageFailures.Add(float64(n))
	atomic.AddUint64(&m.imageFailureCount, uint64(n))
}

// ObserveDocumentRender times a document backend render.
func (m *MetricsService) ObserveDocumentRender(format, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.renderDuration.WithLabelValues(format, outcome).Observe(duration.Seconds())
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if total := hits + misses; total > 0 {
		cacheRatio = float64(hits) / float64(total)
	}
	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		CacheHitRatio:            cacheRatio,
		CodesIssued:              atomic.LoadUint64(&m.codesIssuedCount),
		IssuanceConflicts:        atomic.LoadUint64(&m.conflictCount),
		ImageFailures:            atomic.LoadUint64(&m.imageFailureCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
