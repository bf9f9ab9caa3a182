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

	// Authentication metrics
	TokenValidationsTotal *prometheus.CounterVec
	RoleDefaultedTotal    prometheus.Counter
	JWKSKeysCached        prometheus.Gauge

	// Provisioning metrics
	ProvisioningTotal        *prometheus.CounterVec
	ProvisioningDuration     prometheus.Histogram
	InvitationsAcceptedTotal prometheus.Counter

	// Invitation lifecycle metrics
	InvitationsCreatedTotal prometheus.Counter
	InvitationsRevokedTotal prometheus.Counter
	InvitationsExpiredTotal prometheus.Counter

	// Access guard metrics
	AccessDecisionsTotal *prometheus.CounterVec

	// External provider metrics
	ManagementRequestsTotal   *prometheus.CounterVec
	ManagementRequestDuration *prometheus.HistogramVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tably_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tably_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		TokenValidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tably_token_validations_total",
				Help: "Token validation attempts by outcome",
			},
			[]string{"outcome"},
		),
		RoleDefaultedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tably_role_defaulted_total",
				Help: "Tokens whose role claim was missing or unrecognized and defaulted to OWNER",
			},
		),
		JWKSKeysCached: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tably_jwks_keys_cached",
				Help: "Number of issuer signing keys currently cached",
			},
		),
		ProvisioningTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tably_provisioning_total",
				Help: "Just-in-time provisioning runs by outcome",
			},
			[]string{"outcome"},
		),
		ProvisioningDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tably_provisioning_duration_seconds",
				Help:    "Duration of just-in-time provisioning runs",
				Buckets: prometheus.DefBuckets,
			},
		),
		InvitationsAcceptedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tably_invitations_accepted_total",
				Help: "Invitations consumed during provisioning",
			},
		),
		InvitationsCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tably_invitations_created_total",
				Help: "Invitations created against the identity provider",
			},
		),
		InvitationsRevokedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tably_invitations_revoked_total",
				Help: "Invitations revoked",
			},
		),
		InvitationsExpiredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tably_invitations_expired_total",
				Help: "Invitations transitioned to EXPIRED by the sweeper",
			},
		),
		AccessDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tably_access_decisions_total",
				Help: "Branch access guard decisions",
			},
			[]string{"decision"},
		),
		ManagementRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tably_management_requests_total",
				Help: "Identity provider management API requests",
			},
			[]string{"operation", "status"},
		),
		ManagementRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tably_management_request_duration_seconds",
				Help:    "Identity provider management API request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tably_db_connections_active",
				Help: "Number of database connections in use",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tably_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.TokenValidationsTotal,
		m.RoleDefaultedTotal,
		m.JWKSKeysCached,
		m.ProvisioningTotal,
		m.ProvisioningDuration,
		m.InvitationsAcceptedTotal,
		m.InvitationsCreatedTotal,
		m.InvitationsRevokedTotal,
		m.InvitationsExpiredTotal,
		m.AccessDecisionsTotal,
		m.ManagementRequestsTotal,
		m.ManagementRequestDuration,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
