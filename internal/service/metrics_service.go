package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the enrollment
// API: HTTP traffic, cache behaviour and eligibility/workflow outcomes.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	catalogBuilds      *prometheus.CounterVec
	courseExclusions   *prometheus.CounterVec
	requestTransitions *prometheus.CounterVec
	conflictsIgnored   prometheus.Counter

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	catalogBuilds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_builds_total",
		Help: "Total enrollment catalog resolutions",
	}, []string{"mode"})

	courseExclusions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_course_exclusions_total",
		Help: "Courses excluded from the catalog by reason",
	}, []string{"reason"})

	requestTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollment_request_transitions_total",
		Help: "Enrollment request lifecycle transitions by outcome",
	}, []string{"outcome"})

	conflictsIgnored := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roster_conflicts_ignored_total",
		Help: "Approvals that found an existing roster membership",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio,
		cacheHits, cacheMisses, catalogBuilds, courseExclusions, requestTransitions, conflictsIgnored, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:           registry,
		handler:            handler,
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheWrite:         cacheWrite,
		cacheHitRatio:      cacheHitRatio,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		catalogBuilds:      catalogBuilds,
		courseExclusions:   courseExclusions,
		requestTransitions: requestTransitions,
		conflictsIgnored:   conflictsIgnored,
	}
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache set operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordCatalogBuild counts one catalog resolution in the given mode
// ("learner" or "anonymous").
func (m *MetricsService) RecordCatalogBuild(mode string) {
	if m == nil {
		return
	}
	m.catalogBuilds.WithLabelValues(mode).Inc()
}

// RecordCourseExclusion counts a course withheld from the catalog.
func (m *MetricsService) RecordCourseExclusion(reason string) {
	if m == nil || reason == "" {
		return
	}
	m.courseExclusions.WithLabelValues(reason).Inc()
}

// RecordRequestTransition counts a workflow transition outcome.
func (m *MetricsService) RecordRequestTransition(outcome string) {
	if m == nil {
		return
	}
	m.requestTransitions.WithLabelValues(outcome).Inc()
}

// RecordConflictIgnored counts an approval that found an existing membership.
func (m *MetricsService) RecordConflictIgnored() {
	if m == nil {
		return
	}
	m.conflictsIgnored.Inc()
}
