package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(false)

	for i := 0; i < 5; i++ {
		m.ProviderRequest()
	}
	m.RateLimitedRequest()

	assert.InDelta(t, 5, testutil.ToFloat64(m.ProvidersRequests), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RateLimited), 0)
}

func TestMetrics_ObserveRequest(t *testing.T) {
	m := New(false)

	m.ObserveRequest(http.MethodGet, "/providers", http.StatusOK, 15*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "/providers", http.StatusOK, 20*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "/providers/{id}", http.StatusNotFound, time.Millisecond)

	assert.InDelta(t, 2, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/providers", "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/providers/{id}", "404")), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(m.HTTPDuration))
}

func TestMetrics_UnknownMethodsShareOneLabel(t *testing.T) {
	m := New(false)

	for i := 0; i < 100; i++ {
		m.ObserveRequest(fmt.Sprintf("M%d", i), "unmatched", http.StatusMethodNotAllowed, time.Millisecond)
	}
	m.ObserveRequest("get", "unmatched", http.StatusMethodNotAllowed, time.Millisecond)
	m.ObserveRequest(http.MethodDelete, "unmatched", http.StatusMethodNotAllowed, time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(m.HTTPRequests))
	assert.InDelta(t, 101, testutil.ToFloat64(m.HTTPRequests.WithLabelValues(MethodOther, "unmatched", "405")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("DELETE", "unmatched", "405")), 0)
}

func TestMetrics_Handler(t *testing.T) {
	m := New(false)
	m.SetCatalog(16, 120, 0)
	m.ProvidersRequests.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	body := rec.Body.String()
	assert.Contains(t, body, "# TYPE aviary_providers_requests_total counter")
	assert.Contains(t, body, "aviary_providers_requests_total 1")
	assert.Contains(t, body, "aviary_catalog_providers 16")
	assert.Contains(t, body, "aviary_catalog_models 120")
	assert.NotContains(t, body, "go_goroutines")
}

func TestMetrics_RuntimeCollectors(t *testing.T) {
	m := New(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ProviderRequest()
		m.RateLimitedRequest()
		m.SetCatalog(1, 2, 3)
		m.ObserveRequest(http.MethodGet, "/health", http.StatusOK, time.Millisecond)
	})
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a, b := New(false), New(false)
	a.ProvidersRequests.Inc()

	assert.InDelta(t, 1, testutil.ToFloat64(a.ProvidersRequests), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(b.ProvidersRequests), 0)
}
