package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/voice-attendance-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the voice pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	matchScore      prometheus.Histogram
	identifications *prometheus.CounterVec
	marks           *prometheus.CounterVec
	enrollments     prometheus.Counter
	samplesArchived *prometheus.CounterVec
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
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	matchScore := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_match_score",
		Help:    "Best cosine similarity observed per identification attempt",
		Buckets: []float64{0, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 0.99, 1},
	})

	identifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_identifications_total",
		Help: "Identification attempts by result",
	}, []string{"result"})

	marks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_marks_total",
		Help: "Attendance mark requests by status and outcome",
	}, []string{"status", "outcome"})

	enrollments := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "students_enrolled_total",
		Help: "Students enrolled since start",
	})

	samplesArchived := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_samples_archived_total",
		Help: "Enrollment voice samples written to storage by result",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHits, cacheMisses,
		matchScore, identifications, marks, enrollments, samplesArchived, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		matchScore:      matchScore,
		identifications: identifications,
		marks:           marks,
		enrollments:     enrollments,
		samplesArchived: samplesArchived,
	}
}

// Registry exposes the underlying registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
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

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveIdentification records the best score of an identification attempt.
func (m *MetricsService) ObserveIdentification(score float64, matched bool) {
	if m == nil {
		return
	}
	m.matchScore.Observe(score)
	result := "no_match"
	if matched {
		result = "matched"
	}
	m.identifications.WithLabelValues(result).Inc()
}

// RecordMark counts a ledger mark request.
func (m *MetricsService) RecordMark(status models.AttendanceStatus, outcome models.MarkOutcome) {
	if m == nil {
		return
	}
	m.marks.WithLabelValues(string(status), string(outcome)).Inc()
}

// RecordEnrollment counts a successful enrollment.
func (m *MetricsService) RecordEnrollment() {
	if m == nil {
		return
	}
	m.enrollments.Inc()
}

// RecordSampleArchive counts an archive job result.
func (m *MetricsService) RecordSampleArchive(ok bool) {
	if m == nil {
		return
	}
	result := "error"
	if ok {
		result = "ok"
	}
	m.samplesArchived.WithLabelValues(result).Inc()
}
