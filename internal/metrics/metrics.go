// Package metrics owns the Prometheus collectors of the aviary server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aviary"

// Metrics holds the collectors, registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ProvidersRequests prometheus.Counter
	RateLimited       prometheus.Counter
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	CatalogProviders  prometheus.Gauge
	CatalogModels     prometheus.Gauge
	CatalogDiagnostic prometheus.Gauge
}

// New creates the collectors. Go runtime and process collectors are included
// when withRuntime is set.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ProvidersRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "providers_requests_total",
			Help:      "Total number of requests to the providers endpoint",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, route and status code",
		}, []string{"method", "path", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		CatalogProviders: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_providers",
			Help:      "Number of providers in the loaded catalog",
		}),
		CatalogModels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_models",
			Help:      "Number of models across all providers in the loaded catalog",
		}),
		CatalogDiagnostic: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_load_diagnostics",
			Help:      "Number of diagnostics recorded while loading the catalog",
		}),
	}

	m.registry.MustRegister(
		m.ProvidersRequests,
		m.RateLimited,
		m.HTTPRequests,
		m.HTTPDuration,
		m.CatalogProviders,
		m.CatalogModels,
		m.CatalogDiagnostic,
	)
	if withRuntime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// The recording methods below are no-ops on a nil *Metrics, which is what
// the server holds when metrics are disabled.

// SetCatalog records the size of the loaded catalog.
func (m *Metrics) SetCatalog(providers, models, diagnostics int) {
	if m == nil {
		return
	}
	m.CatalogProviders.Set(float64(providers))
	m.CatalogModels.Set(float64(models))
	m.CatalogDiagnostic.Set(float64(diagnostics))
}

// MethodOther labels requests whose method is not a standard HTTP method.
const MethodOther = "other"

var knownMethods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodHead:    {},
	http.MethodPost:    {},
	http.MethodPut:     {},
	http.MethodPatch:   {},
	http.MethodDelete:  {},
	http.MethodConnect: {},
	http.MethodOptions: {},
	http.MethodTrace:   {},
}

// methodLabel keeps the label set bounded whatever method a client sends.
func methodLabel(method string) string {
	if _, ok := knownMethods[method]; ok {
		return method
	}
	return MethodOther
}

// ObserveRequest records one served request.
func (m *Metrics) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	method = methodLabel(method)
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ProviderRequest counts one request to the providers endpoint.
func (m *Metrics) ProviderRequest() {
	if m != nil {
		m.ProvidersRequests.Inc()
	}
}

// RateLimitedRequest counts one request rejected by the rate limiter.
func (m *Metrics) RateLimitedRequest() {
	if m != nil {
		m.RateLimited.Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry: m.registry,
	})
}
