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

// MetricsService owns the Prometheus registry of the API and task worker.
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
	storeDuration   *prometheus.HistogramVec
	dispatchQueued  prometheus.Gauge
	dispatchRunning prometheus.Gauge
	dispatchPanics  prometheus.Counter
	taskDuration    *prometheus.HistogramVec
	jobDuration     *prometheus.HistogramVec
	authDenied      *prometheus.CounterVec

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
		Help:    "Latency for cache lookups",
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

	storeDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "store_query_duration_seconds",
		Help:    "Duration of document store operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"collection", "operation"})

	dispatchQueued := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dispatcher_queued_requests",
		Help: "Requests waiting for a dispatcher worker",
	})

	dispatchRunning := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dispatcher_inflight_requests",
		Help: "Requests currently running on a dispatcher worker",
	})

	dispatchPanics := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_panics_total",
		Help: "Request bodies that panicked",
	})

	taskDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "task_roundtrip_seconds",
		Help:    "Time from task submission to result, by outcome",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"task", "outcome"})

	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "task_execution_seconds",
		Help:    "Time a task worker spent running one attempt, by outcome",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"queue", "task", "outcome"})

	authDenied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_denied_total",
		Help: "Requests rejected by token validation",
	}, []string{"method"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		storeDuration, dispatchQueued, dispatchRunning, dispatchPanics, taskDuration, jobDuration, authDenied, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		storeDuration:   storeDuration,
		dispatchQueued:  dispatchQueued,
		dispatchRunning: dispatchRunning,
		dispatchPanics:  dispatchPanics,
		taskDuration:    taskDuration,
		jobDuration:     jobDuration,
		authDenied:      authDenied,
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
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveStoreQuery records document store timing.
func (m *MetricsService) ObserveStoreQuery(collection, operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.storeDuration.WithLabelValues(collection, operation).Observe(duration.Seconds())
}

// SetDispatcherQueue publishes dispatcher occupancy.
func (m *MetricsService) SetDispatcherQueue(queued, inFlight int64) {
	if m == nil {
		return
	}
	m.dispatchQueued.Set(float64(queued))
	m.dispatchRunning.Set(float64(inFlight))
}

// IncDispatcherPanics counts a recovered request body panic.
func (m *MetricsService) IncDispatcherPanics() {
	if m == nil {
		return
	}
	m.dispatchPanics.Inc()
}

// ObserveTask records a task round trip.
func (m *MetricsService) ObserveTask(task, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.taskDuration.WithLabelValues(task, outcome).Observe(duration.Seconds())
}

// ObserveJob records one task attempt on the worker side.
func (m *MetricsService) ObserveJob(queue, task, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(queue, task, outcome).Observe(duration.Seconds())
}

// IncAuthDenied counts a request rejected for lack of a valid token.
func (m *MetricsService) IncAuthDenied(method string) {
	if m == nil {
		return
	}
	m.authDenied.WithLabelValues(method).Inc()
}
