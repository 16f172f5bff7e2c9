package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MAZGOURA/attestation-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the
// attestation pipeline.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	submissionsTotal     *prometheus.CounterVec
	decisionsTotal       *prometheus.CounterVec
	referenceAllocations prometheus.Counter
	counterRetries       prometheus.Counter
	notificationFailures prometheus.Counter
	cacheHits            prometheus.Counter
	cacheMisses          prometheus.Counter
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

	submissionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attestation_submissions_total",
		Help: "Submission attempts by outcome",
	}, []string{"outcome"})

	decisionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attestation_decisions_total",
		Help: "Administrative decisions by target status",
	}, []string{"target"})

	referenceAllocations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reference_allocations_total",
		Help: "Reference numbers handed out",
	})

	counterRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reference_counter_retries_total",
		Help: "Transient conflicts retried by the allocator",
	})

	notificationFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notification_failures_total",
		Help: "Notifications dropped after exhausting retries",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, submissionsTotal, decisionsTotal,
		referenceAllocations, counterRetries, notificationFailures, cacheHits, cacheMisses, goroutines)

	return &MetricsService{
		registry:             registry,
		handler:              promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:      requestDuration,
		requestTotal:         requestTotal,
		submissionsTotal:     submissionsTotal,
		decisionsTotal:       decisionsTotal,
		referenceAllocations: referenceAllocations,
		counterRetries:       counterRetries,
		notificationFailures: notificationFailures,
		cacheHits:            cacheHits,
		cacheMisses:          cacheMisses,
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

// RecordSubmission counts a submission attempt by outcome
// (created, no_match, duplicate, quota, error).
func (m *MetricsService) RecordSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(outcome).Inc()
}

// RecordDecision counts an administrative transition.
func (m *MetricsService) RecordDecision(target models.AttestationStatus) {
	if m == nil {
		return
	}
	m.decisionsTotal.WithLabelValues(string(target)).Inc()
}

// RecordReferenceAllocation counts a handed-out reference number.
func (m *MetricsService) RecordReferenceAllocation() {
	if m == nil {
		return
	}
	m.referenceAllocations.Inc()
}

// RecordCounterRetry counts a transient allocator conflict.
func (m *MetricsService) RecordCounterRetry() {
	if m == nil {
		return
	}
	m.counterRetries.Inc()
}

// RecordNotificationFailure counts a dropped notification.
func (m *MetricsService) RecordNotificationFailure() {
	if m == nil {
		return
	}
	m.notificationFailures.Inc()
}

// RecordCacheOperation records cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
