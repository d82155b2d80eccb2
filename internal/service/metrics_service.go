package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the workflow engine.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	transitionsTotal     *prometheus.CounterVec
	gateDenialsTotal     *prometheus.CounterVec
	notificationsDropped prometheus.Counter
	cacheLatency         prometheus.Observer
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

	transitionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_transitions_total",
		Help: "Accepted and rejected workflow transitions by entity and outcome",
	}, []string{"entity", "transition", "outcome"})

	gateDenialsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_gate_denials_total",
		Help: "Authorization denials by actor role",
	}, []string{"role"})

	notificationsDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "workflow_notifications_dropped_total",
		Help: "Notifications lost after exhausting dispatch retries",
	})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
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

	registry.MustRegister(requestDuration, requestTotal, transitionsTotal, gateDenialsTotal, notificationsDropped, cacheLatency, cacheHits, cacheMisses)

	return &MetricsService{
		registry:             registry,
		handler:              promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:      requestDuration,
		requestTotal:         requestTotal,
		transitionsTotal:     transitionsTotal,
		gateDenialsTotal:     gateDenialsTotal,
		notificationsDropped: notificationsDropped,
		cacheLatency:         cacheLatency,
		cacheHits:            cacheHits,
		cacheMisses:          cacheMisses,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	if s == nil {
		return promhttp.Handler()
	}
	return s.handler
}

// ObserveHTTPRequest records request latency and counts.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if s == nil {
		return
	}
	labels := prometheus.Labels{"method": method, "path": path, "status": strconv.Itoa(status)}
	s.requestDuration.With(labels).Observe(duration.Seconds())
	s.requestTotal.With(labels).Inc()
}

// RecordTransition counts one workflow transition attempt.
func (s *MetricsService) RecordTransition(entity, transition, outcome string) {
	if s == nil {
		return
	}
	s.transitionsTotal.WithLabelValues(entity, transition, outcome).Inc()
}

// RecordGateDenial counts one authorization denial.
func (s *MetricsService) RecordGateDenial(role string) {
	if s == nil {
		return
	}
	s.gateDenialsTotal.WithLabelValues(role).Inc()
}

// RecordNotificationDropped counts a lost notification.
func (s *MetricsService) RecordNotificationDropped() {
	if s == nil {
		return
	}
	s.notificationsDropped.Inc()
}

// RecordCacheOperation records a cache lookup with its latency.
func (s *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if s == nil {
		return
	}
	s.cacheLatency.Observe(duration.Seconds())
	if hit {
		s.cacheHits.Inc()
	} else {
		s.cacheMisses.Inc()
	}
}
