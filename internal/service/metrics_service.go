package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	batchPersisted  *prometheus.CounterVec
	batchSkipped    *prometheus.CounterVec
	matriculaRetry  prometheus.Counter
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
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

	batchPersisted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_batch_records_total",
		Help: "Records persisted through attendance and grade batches",
	}, []string{"ledger"})

	batchSkipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_batch_skipped_total",
		Help: "Batch entries skipped for missing active enrollments",
	}, []string{"ledger"})

	matriculaRetry := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matricula_retries_total",
		Help: "Enrollment number collisions that triggered a retry",
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

	registry.MustRegister(requestDuration, requestTotal, batchPersisted, batchSkipped, matriculaRetry, cacheHits, cacheMisses, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		batchPersisted:  batchPersisted,
		batchSkipped:    batchSkipped,
		matriculaRetry:  matriculaRetry,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
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

// ObserveHTTPRequest records request latency and count.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveBatch records a persisted-and-skipped outcome for one ledger
// batch (attendance or grades).
func (m *MetricsService) ObserveBatch(ledger string, persisted, skipped int) {
	if m == nil {
		return
	}
	m.batchPersisted.WithLabelValues(ledger).Add(float64(persisted))
	m.batchSkipped.WithLabelValues(ledger).Add(float64(skipped))
}

// ObserveMatriculaRetry counts an enrollment-number collision.
func (m *MetricsService) ObserveMatriculaRetry() {
	if m == nil {
		return
	}
	m.matriculaRetry.Inc()
}

// RecordCacheOperation counts a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
		return
	}
	m.cacheMisses.Inc()
}
