package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// scheduling domain.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	checkinsTotal   prometheus.Counter
	sweepRuns       prometheus.Counter
	sweepMissed     prometheus.Counter
	autoReschedules prometheus.Counter
	conflictChecks  *prometheus.CounterVec
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

	checkinsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "session_checkins_total",
		Help: "Total number of successful session check-ins",
	})

	sweepRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auto_miss_sweep_runs_total",
		Help: "Total number of auto-miss sweep executions",
	})

	sweepMissed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auto_miss_sessions_total",
		Help: "Total sessions marked missed by the sweep",
	})

	autoReschedules := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auto_reschedules_total",
		Help: "Total sessions automatically rescheduled after a sweep",
	})

	conflictChecks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "conflict_checks_total",
		Help: "Total conflict checks by verdict",
	}, []string{"verdict"})

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

	registry.MustRegister(requestDuration, requestTotal, checkinsTotal, sweepRuns, sweepMissed, autoReschedules, conflictChecks, cacheHits, cacheMisses, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		checkinsTotal:   checkinsTotal,
		sweepRuns:       sweepRuns,
		sweepMissed:     sweepMissed,
		autoReschedules: autoReschedules,
		conflictChecks:  conflictChecks,
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

// ObserveHTTPRequest records per-route request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCheckin counts a successful check-in.
func (m *MetricsService) RecordCheckin() {
	if m == nil {
		return
	}
	m.checkinsTotal.Inc()
}

// RecordSweep counts one sweep run and its outcome volumes.
func (m *MetricsService) RecordSweep(missed, rescheduled int) {
	if m == nil {
		return
	}
	m.sweepRuns.Inc()
	m.sweepMissed.Add(float64(missed))
	m.autoReschedules.Add(float64(rescheduled))
}

// RecordConflictCheck counts a conflict check by verdict.
func (m *MetricsService) RecordConflictCheck(verdict string) {
	if m == nil {
		return
	}
	m.conflictChecks.WithLabelValues(verdict).Inc()
}

// RecordCacheOperation records a cache hit or miss.
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
