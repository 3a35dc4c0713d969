package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the anonymization pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	anonymizeDuration prometheus.Observer
	anonymizeSuccess  prometheus.Counter
	anonymizeFailure  prometheus.Counter

	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
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

	anonymizeDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "anonymization_duration_seconds",
		Help:    "Wall time of the external anonymization transform",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	anonymizeSuccess := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "datasets_anonymized_total",
		Help: "Datasets that completed anonymization successfully",
	})

	anonymizeFailure := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "anonymization_failures_total",
		Help: "Datasets whose anonymization transform failed",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_cache_hits_total",
		Help: "Marketplace listing cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_cache_misses_total",
		Help: "Marketplace listing cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, anonymizeDuration, anonymizeSuccess, anonymizeFailure, cacheHits, cacheMisses, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:          registry,
		handler:           handler,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		anonymizeDuration: anonymizeDuration,
		anonymizeSuccess:  anonymizeSuccess,
		anonymizeFailure:  anonymizeFailure,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
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
	labels := prometheus.Labels{"method": method, "path": path, "status": strconv.Itoa(status)}
	m.requestDuration.With(labels).Observe(duration.Seconds())
	m.requestTotal.With(labels).Inc()
}

// ObserveAnonymization records one pipeline run.
func (m *MetricsService) ObserveAnonymization(success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.anonymizeDuration.Observe(duration.Seconds())
	if success {
		m.anonymizeSuccess.Inc()
	} else {
		m.anonymizeFailure.Inc()
	}
}

// ObserveCacheLookup records a marketplace cache hit or miss.
func (m *MetricsService) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
