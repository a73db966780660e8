package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/casualjim/aviary/catalog"
	"github.com/casualjim/aviary/catalog/definitions"
	"github.com/casualjim/aviary/config"
	"github.com/casualjim/aviary/internal/metrics"
	"github.com/casualjim/aviary/middleware"
	"github.com/casualjim/aviary/registry"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func embedded(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.LoadEmbedded(registry.WithLogger(quiet()))
	require.Empty(t, reg.Diagnostics())
	return reg
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Security.RateLimit.Enabled = false
	return cfg
}

func newTestServer(t *testing.T, cat Catalog, cfg config.Config) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(New(cat, cfg, WithLogger(quiet())).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func fetch(t *testing.T, method, url string, headers ...string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestListProviders_ReturnsEmbeddedCatalog(t *testing.T) {
	ts := newTestServer(t, embedded(t), testConfig())

	resp, body := fetch(t, http.MethodGet, ts.URL+"/providers")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var providers []catalog.Provider
	require.NoError(t, json.Unmarshal(body, &providers))

	ids := make([]string, 0, len(providers))
	for _, p := range providers {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, definitions.Names(), ids)
	assert.Len(t, ids, 16)
}

func TestListProviders_EncodeFailure(t *testing.T) {
	broken := catalog.NewProvider("Broken", "broken", catalog.TypeOpenAI).
		WithModels(catalog.NewModel("nan", "NaN", math.NaN(), 1, 1000, 100))
	ts := newTestServer(t, &fakeCatalog{providers: []catalog.Provider{broken}}, testConfig())

	resp, body := fetch(t, http.MethodGet, ts.URL+"/providers")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Failed to retrieve providers"}`, string(body))
}

func TestGetProvider(t *testing.T) {
	ts := newTestServer(t, embedded(t), testConfig())

	resp, body := fetch(t, http.MethodGet, ts.URL+"/providers/anthropic")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var p catalog.Provider
	require.NoError(t, json.Unmarshal(body, &p))
	assert.Equal(t, "anthropic", p.ID)
	assert.NotEmpty(t, p.Models)

	resp, body = fetch(t, http.MethodGet, ts.URL+"/providers/Anthropic")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"provider not found"}`, string(body))
}

func TestGetModel(t *testing.T) {
	reg := embedded(t)
	ts := newTestServer(t, reg, testConfig())

	openai, ok := reg.ByID("openai")
	require.True(t, ok)
	want := openai.Models[0]

	resp, body := fetch(t, http.MethodGet, ts.URL+"/providers/openai/models/"+want.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got catalog.Model
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, want, got)

	resp, body = fetch(t, http.MethodGet, ts.URL+"/providers/openai/models/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"model not found"}`, string(body))

	resp, body = fetch(t, http.MethodGet, ts.URL+"/providers/nope/models/"+want.ID)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"provider not found"}`, string(body))
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &fakeCatalog{}, testConfig())

	resp, body := fetch(t, http.MethodGet, ts.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, embedded(t), testConfig())

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		resp, _ := fetch(t, method, ts.URL+"/providers")
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, method)
	}

	resp, _ := fetch(t, http.MethodHead, ts.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		ts := newTestServer(t, embedded(t), testConfig())
		fetch(t, http.MethodGet, ts.URL+"/providers")
		fetch(t, http.MethodGet, ts.URL+"/providers")

		resp, body := fetch(t, http.MethodGet, ts.URL+"/metrics")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		text := string(body)
		assert.Contains(t, text, "aviary_providers_requests_total 2")
		assert.Contains(t, text, "aviary_catalog_providers 16")

		// request metrics are recorded once the handler returns
		assert.Eventually(t, func() bool {
			_, body := fetch(t, http.MethodGet, ts.URL+"/metrics")
			return strings.Contains(string(body), `aviary_http_requests_total{code="200",method="GET",path="GET /providers"} 2`)
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("custom path", func(t *testing.T) {
		cfg := testConfig()
		cfg.Metrics.Path = "/internal/metrics"
		ts := newTestServer(t, embedded(t), cfg)

		resp, _ := fetch(t, http.MethodGet, ts.URL+"/internal/metrics")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp, _ = fetch(t, http.MethodGet, ts.URL+"/metrics")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("disabled", func(t *testing.T) {
		cfg := testConfig()
		cfg.Metrics.Enabled = false
		srv := New(embedded(t), cfg, WithLogger(quiet()))
		assert.Nil(t, srv.Metrics())

		ts := httptest.NewServer(srv.Handler())
		defer ts.Close()
		resp, _ := fetch(t, http.MethodGet, ts.URL+"/metrics")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		resp, _ = fetch(t, http.MethodGet, ts.URL+"/providers")
		assert.Equal(t, http.StatusOK, resp.StatusCode, "handlers work without metrics")
	})
}

func TestMetrics_ArbitraryMethodsStayBounded(t *testing.T) {
	srv := New(embedded(t), testConfig(), WithLogger(quiet()))
	h := srv.Handler()

	for i := 0; i < 200; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(fmt.Sprintf("M%d", i), "/health", nil))
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	requests := srv.Metrics().HTTPRequests
	assert.Equal(t, 2, testutil.CollectAndCount(requests))
	assert.InDelta(t, 200, testutil.ToFloat64(requests.WithLabelValues(metrics.MethodOther, "unmatched", "405")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(requests.WithLabelValues(http.MethodGet, "GET /health", "200")), 0)
}

func TestMiddlewareIsApplied(t *testing.T) {
	cfg := config.Default()
	cfg.Security.RateLimit.RequestsPerPeriod = 2
	srv := New(embedded(t), cfg, WithLogger(quiet()))
	assert.Equal(t, []string{
		middleware.StageCompression,
		middleware.StageRateLimit,
		middleware.StageCORS,
		middleware.StageSecurityHeaders,
	}, srv.Stages())

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, _ := fetch(t, http.MethodGet, ts.URL+"/health", "Origin", "https://app.test")
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "DENY", resp.Header.Get(middleware.HeaderFrameOptions))
	assert.Equal(t, "nosniff", resp.Header.Get(middleware.HeaderContentTypeOptions))

	fetch(t, http.MethodGet, ts.URL+"/health")
	resp, body := fetch(t, http.MethodGet, ts.URL+"/providers")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, middleware.RateLimitedBody, string(body))
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	resp, _ = fetch(t, http.MethodGet, ts.URL+"/metrics")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode, "metrics sit behind the same gate")
}

func TestCompressedProviders(t *testing.T) {
	ts := newTestServer(t, embedded(t), testConfig())

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/providers", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := http.DefaultTransport.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
}

func TestRequestID(t *testing.T) {
	ts := newTestServer(t, &fakeCatalog{}, testConfig())

	resp, _ := fetch(t, http.MethodGet, ts.URL+"/health")
	generated := resp.Header.Get(HeaderRequestID)
	assert.Len(t, generated, 36)

	const supplied = "0192d4e2-7b1a-7c3e-9f00-123456789abc"
	resp, _ = fetch(t, http.MethodGet, ts.URL+"/health", HeaderRequestID, supplied)
	assert.Equal(t, supplied, resp.Header.Get(HeaderRequestID))

	resp, _ = fetch(t, http.MethodGet, ts.URL+"/health", HeaderRequestID, "<script>")
	assert.NotEqual(t, "<script>", resp.Header.Get(HeaderRequestID))
	assert.Len(t, resp.Header.Get(HeaderRequestID), 36)
}

func TestAccessLog(t *testing.T) {
	var buf syncBuffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ts := httptest.NewServer(New(&fakeCatalog{}, testConfig(), WithLogger(logger)).Handler())
	defer ts.Close()

	fetch(t, http.MethodGet, ts.URL+"/providers/missing", HeaderRequestID, "0192d4e2-7b1a-7c3e-9f00-123456789abc")

	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "msg=request")
	}, 2*time.Second, 10*time.Millisecond)
	out := buf.String()
	assert.Contains(t, out, "method=GET")
	assert.Contains(t, out, "path=/providers/missing")
	assert.Contains(t, out, "status=404")
	assert.Contains(t, out, "request_id=0192d4e2-7b1a-7c3e-9f00-123456789abc")
	assert.Contains(t, out, "duration=")
}

func TestRecoverPanics(t *testing.T) {
	var buf syncBuffer
	srv := New(&fakeCatalog{panics: true}, testConfig(), WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, body := fetch(t, http.MethodGet, ts.URL+"/providers")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"error":"internal server error"}`, string(body))
	assert.Contains(t, buf.String(), "handler panicked")
	assert.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "status=500")
	}, 2*time.Second, 10*time.Millisecond)

	resp, _ = fetch(t, http.MethodGet, ts.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode, "the server keeps serving")
}

func TestServe_GracefulShutdown(t *testing.T) {
	cfg := config.Default()
	cfg.Server.ShutdownTimeoutSeconds = 5
	srv := New(embedded(t), cfg, WithLogger(quiet()))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get(url + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}

	_, err = http.Get(url + "/health")
	assert.Error(t, err)
}

func TestRun_InvalidAddress(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Host = "256.256.256.256"
	srv := New(&fakeCatalog{}, cfg, WithLogger(quiet()))

	err := srv.Run(context.Background())
	assert.Error(t, err)
}

type fakeCatalog struct {
	providers []catalog.Provider
	panics    bool
}

func (f *fakeCatalog) All() []catalog.Provider {
	if f.panics {
		panic("catalog exploded")
	}
	return f.providers
}

func (f *fakeCatalog) ByID(id string) (catalog.Provider, bool) {
	for _, p := range f.providers {
		if p.ID == id {
			return p, true
		}
	}
	return catalog.Provider{}, false
}

func (f *fakeCatalog) Model(providerID, modelID string) (catalog.Model, bool) {
	p, ok := f.ByID(providerID)
	if !ok {
		return catalog.Model{}, false
	}
	return p.Model(modelID)
}

func (f *fakeCatalog) Count() int      { return len(f.providers) }
func (f *fakeCatalog) ModelCount() int { return 0 }

func (f *fakeCatalog) Diagnostics() []registry.Diagnostic { return nil }

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Clone(b.buf.String())
}
