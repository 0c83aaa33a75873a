package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsServiceCollectors(t *testing.T) {
	m := NewMetricsService()

	m.SetDispatcherQueue(3, 2)
	m.IncDispatcherPanics()
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.IncAuthDenied(http.MethodPost)
	m.ObserveJob("tasks:ci", "bisect_boot", "ok", 20*time.Millisecond)

	assert.Equal(t, float64(3), testutil.ToFloat64(m.dispatchQueued))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.dispatchRunning))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.dispatchPanics))
	assert.Equal(t, 0.5, testutil.ToFloat64(m.cacheHitRatio))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.authDenied.WithLabelValues(http.MethodPost)))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dispatcher_queued_requests 3")
	assert.Contains(t, rec.Body.String(), `task_execution_seconds_count{outcome="ok",queue="tasks:ci",task="bisect_boot"} 1`)
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	m.SetDispatcherQueue(1, 1)
	m.ObserveTask("bisect_boot", "200", time.Second)
	m.ObserveStoreQuery("boot", "find", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
