package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Token validation metrics
	TokenValidationsTotal  *prometheus.CounterVec
	SigningKeyFetchesTotal *prometheus.CounterVec

	// Identity provider metrics
	ProviderRequestsTotal   *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec

	// Sync metrics
	SyncTotal    *prometheus.CounterVec
	SyncDuration prometheus.Histogram

	// Authorization metrics
	AuthzDecisionsTotal *prometheus.CounterVec

	// Principal cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gatehouse_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		TokenValidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_token_validations_total",
				Help: "Total number of bearer token validations",
			},
			[]string{"result"},
		),
		SigningKeyFetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_signing_key_fetches_total",
				Help: "Total number of JWKS fetches from the identity provider",
			},
			[]string{"status"},
		),
		ProviderRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_provider_requests_total",
				Help: "Total number of identity provider API requests",
			},
			[]string{"operation", "status"},
		),
		ProviderRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gatehouse_provider_request_duration_seconds",
				Help:    "Identity provider API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		SyncTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_permission_syncs_total",
				Help: "Total number of permission sync attempts",
			},
			[]string{"result"},
		),
		SyncDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gatehouse_permission_sync_duration_seconds",
				Help:    "Permission sync duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_authz_decisions_total",
				Help: "Total number of authorization decisions",
			},
			[]string{"check", "decision"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.TokenValidationsTotal,
		m.SigningKeyFetchesTotal,
		m.ProviderRequestsTotal,
		m.ProviderRequestDuration,
		m.SyncTotal,
		m.SyncDuration,
		m.AuthzDecisionsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)

	return m
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records metrics for an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordTokenValidation records the outcome of a token validation
func (m *Metrics) RecordTokenValidation(result string) {
	m.TokenValidationsTotal.WithLabelValues(result).Inc()
}

// RecordSigningKeyFetch records a JWKS refetch triggered by the key cache
func (m *Metrics) RecordSigningKeyFetch(status string) {
	m.SigningKeyFetchesTotal.WithLabelValues(status).Inc()
}

// RecordProviderRequest records an identity provider API call
func (m *Metrics) RecordProviderRequest(operation, status string, duration time.Duration) {
	m.ProviderRequestsTotal.WithLabelValues(operation, status).Inc()
	m.ProviderRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSync records a permission sync attempt
func (m *Metrics) RecordSync(result string, duration time.Duration) {
	m.SyncTotal.WithLabelValues(result).Inc()
	m.SyncDuration.Observe(duration.Seconds())
}

// RecordAuthzDecision records an authorization decision
func (m *Metrics) RecordAuthzDecision(check string, allowed bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	m.AuthzDecisionsTotal.WithLabelValues(check, decision).Inc()
}
