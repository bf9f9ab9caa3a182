package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	t.Run("creates and registers all metrics", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		if metrics == nil {
			t.Fatal("NewMetrics returned nil")
		}

		if metrics.HTTPRequestsTotal == nil {
			t.Error("HTTPRequestsTotal is nil")
		}
		if metrics.HTTPRequestDuration == nil {
			t.Error("HTTPRequestDuration is nil")
		}
		if metrics.TokenValidationsTotal == nil {
			t.Error("TokenValidationsTotal is nil")
		}
		if metrics.RoleDefaultedTotal == nil {
			t.Error("RoleDefaultedTotal is nil")
		}
		if metrics.JWKSKeysCached == nil {
			t.Error("JWKSKeysCached is nil")
		}
		if metrics.ProvisioningTotal == nil {
			t.Error("ProvisioningTotal is nil")
		}
		if metrics.ProvisioningDuration == nil {
			t.Error("ProvisioningDuration is nil")
		}
		if metrics.InvitationsAcceptedTotal == nil {
			t.Error("InvitationsAcceptedTotal is nil")
		}
		if metrics.InvitationsCreatedTotal == nil {
			t.Error("InvitationsCreatedTotal is nil")
		}
		if metrics.InvitationsRevokedTotal == nil {
			t.Error("InvitationsRevokedTotal is nil")
		}
		if metrics.InvitationsExpiredTotal == nil {
			t.Error("InvitationsExpiredTotal is nil")
		}
		if metrics.AccessDecisionsTotal == nil {
			t.Error("AccessDecisionsTotal is nil")
		}
		if metrics.ManagementRequestsTotal == nil {
			t.Error("ManagementRequestsTotal is nil")
		}
		if metrics.ManagementRequestDuration == nil {
			t.Error("ManagementRequestDuration is nil")
		}
		if metrics.DBConnectionsActive == nil {
			t.Error("DBConnectionsActive is nil")
		}
		if metrics.DBConnectionsIdle == nil {
			t.Error("DBConnectionsIdle is nil")
		}
	})

	t.Run("metrics are registered with registry", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		metrics.HTTPRequestsTotal.WithLabelValues("GET", "/test", "200").Add(0)
		metrics.TokenValidationsTotal.WithLabelValues("success").Add(0)
		metrics.ProvisioningTotal.WithLabelValues("created").Add(0)
		metrics.AccessDecisionsTotal.WithLabelValues("allowed").Add(0)
		metrics.JWKSKeysCached.Set(0)
		metrics.DBConnectionsActive.Set(0)

		families, err := registry.Gather()
		if err != nil {
			t.Fatalf("Failed to gather metrics: %v", err)
		}
		if len(families) == 0 {
			t.Error("No metrics registered in registry")
		}

		metricNames := make(map[string]bool)
		for _, family := range families {
			metricNames[family.GetName()] = true
		}

		expectedMetrics := []string{
			"tably_http_requests_total",
			"tably_token_validations_total",
			"tably_provisioning_total",
			"tably_access_decisions_total",
			"tably_jwks_keys_cached",
			"tably_db_connections_active",
		}

		for _, name := range expectedMetrics {
			if !metricNames[name] {
				t.Errorf("Expected metric %s not found in registry", name)
			}
		}
	})

	t.Run("panics on duplicate registration", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		NewMetrics(registry)

		defer func() {
			if r := recover(); r == nil {
				t.Error("Expected panic on duplicate registration, but didn't panic")
			}
		}()

		NewMetrics(registry)
	})
}

func TestMetrics_TokenValidations(t *testing.T) {
	t.Run("counts outcomes separately", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		metrics.TokenValidationsTotal.WithLabelValues("success").Inc()
		metrics.TokenValidationsTotal.WithLabelValues("success").Inc()
		metrics.TokenValidationsTotal.WithLabelValues("failure").Inc()

		expected := `
# HELP tably_token_validations_total Token validation attempts by outcome
# TYPE tably_token_validations_total counter
tably_token_validations_total{outcome="failure"} 1
tably_token_validations_total{outcome="success"} 2
`
		if err := testutil.CollectAndCompare(metrics.TokenValidationsTotal, strings.NewReader(expected)); err != nil {
			t.Errorf("Unexpected metric value: %v", err)
		}
	})

	t.Run("role defaulting counter", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		metrics.RoleDefaultedTotal.Inc()
		metrics.RoleDefaultedTotal.Inc()

		expected := `
# HELP tably_role_defaulted_total Tokens whose role claim was missing or unrecognized and defaulted to OWNER
# TYPE tably_role_defaulted_total counter
tably_role_defaulted_total 2
`
		if err := testutil.CollectAndCompare(metrics.RoleDefaultedTotal, strings.NewReader(expected)); err != nil {
			t.Errorf("Unexpected metric value: %v", err)
		}
	})

	t.Run("jwks cache gauge", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		metrics.JWKSKeysCached.Set(3)

		expected := `
# HELP tably_jwks_keys_cached Number of issuer signing keys currently cached
# TYPE tably_jwks_keys_cached gauge
tably_jwks_keys_cached 3
`
		if err := testutil.CollectAndCompare(metrics.JWKSKeysCached, strings.NewReader(expected)); err != nil {
			t.Errorf("Unexpected metric value: %v", err)
		}
	})
}

func TestMetrics_Provisioning(t *testing.T) {
	t.Run("counts runs by outcome", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		metrics.ProvisioningTotal.WithLabelValues("created").Inc()
		metrics.ProvisioningTotal.WithLabelValues("updated").Inc()
		metrics.ProvisioningTotal.WithLabelValues("error").Inc()

		expected := `
# HELP tably_provisioning_total Just-in-time provisioning runs by outcome
# TYPE tably_provisioning_total counter
tably_provisioning_total{outcome="created"} 1
tably_provisioning_total{outcome="error"} 1
tably_provisioning_total{outcome="updated"} 1
`
		if err := testutil.CollectAndCompare(metrics.ProvisioningTotal, strings.NewReader(expected)); err != nil {
			t.Errorf("Unexpected metric value: %v", err)
		}
	})

	t.Run("observes run duration", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		metrics.ProvisioningDuration.Observe(0.05)
		metrics.ProvisioningDuration.Observe(0.2)

		count := testutil.CollectAndCount(metrics.ProvisioningDuration)
		if count != 1 {
			t.Errorf("Expected 1 metric family, got %d", count)
		}
	})
}

func TestMetrics_Invitations(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.InvitationsCreatedTotal.Inc()
	metrics.InvitationsAcceptedTotal.Inc()
	metrics.InvitationsRevokedTotal.Inc()
	metrics.InvitationsExpiredTotal.Inc()
	metrics.InvitationsExpiredTotal.Inc()

	expected := `
# HELP tably_invitations_expired_total Invitations transitioned to EXPIRED by the sweeper
# TYPE tably_invitations_expired_total counter
tably_invitations_expired_total 2
`
	if err := testutil.CollectAndCompare(metrics.InvitationsExpiredTotal, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}
}

func TestMetrics_AccessDecisions(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.AccessDecisionsTotal.WithLabelValues("allowed").Add(3)
	metrics.AccessDecisionsTotal.WithLabelValues("denied").Inc()

	expected := `
# HELP tably_access_decisions_total Branch access guard decisions
# TYPE tably_access_decisions_total counter
tably_access_decisions_total{decision="allowed"} 3
tably_access_decisions_total{decision="denied"} 1
`
	if err := testutil.CollectAndCompare(metrics.AccessDecisionsTotal, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}
}

func TestMetrics_ManagementRequests(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.ManagementRequestsTotal.WithLabelValues("create_invitation", "success").Inc()
	metrics.ManagementRequestsTotal.WithLabelValues("create_invitation", "error").Inc()
	metrics.ManagementRequestDuration.WithLabelValues("create_invitation").Observe(0.3)

	expected := `
# HELP tably_management_requests_total Identity provider management API requests
# TYPE tably_management_requests_total counter
tably_management_requests_total{operation="create_invitation",status="error"} 1
tably_management_requests_total{operation="create_invitation",status="success"} 1
`
	if err := testutil.CollectAndCompare(metrics.ManagementRequestsTotal, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}

	count := testutil.CollectAndCount(metrics.ManagementRequestDuration)
	if count != 1 {
		t.Errorf("Expected 1 metric family, got %d", count)
	}
}

func TestMetrics_DatabaseMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.DBConnectionsActive.Set(10)
	metrics.DBConnectionsIdle.Set(5)
	metrics.DBConnectionsActive.Inc()

	expected := `
# HELP tably_db_connections_active Number of database connections in use
# TYPE tably_db_connections_active gauge
tably_db_connections_active 11
`
	if err := testutil.CollectAndCompare(metrics.DBConnectionsActive, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}
}

func TestResponseWriter(t *testing.T) {
	t.Run("captures status code", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		rw := &responseWriter{
			ResponseWriter: recorder,
			statusCode:     http.StatusOK,
		}

		rw.WriteHeader(http.StatusCreated)

		if rw.statusCode != http.StatusCreated {
			t.Errorf("Expected status code %d, got %d", http.StatusCreated, rw.statusCode)
		}
		if recorder.Code != http.StatusCreated {
			t.Errorf("Expected recorder status code %d, got %d", http.StatusCreated, recorder.Code)
		}
	})

	t.Run("defaults to 200 status code", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		rw := &responseWriter{
			ResponseWriter: recorder,
			statusCode:     http.StatusOK,
		}

		rw.Write([]byte("test"))

		if rw.statusCode != http.StatusOK {
			t.Errorf("Expected default status code %d, got %d", http.StatusOK, rw.statusCode)
		}
	})
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	t.Run("records HTTP metrics", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})

		middleware := HTTPMetricsMiddleware(metrics)
		wrappedHandler := middleware(handler)

		req := httptest.NewRequest("GET", "/test", nil)
		rec := httptest.NewRecorder()

		wrappedHandler.ServeHTTP(rec, req)

		expected := `
# HELP tably_http_requests_total Total number of HTTP requests
# TYPE tably_http_requests_total counter
tably_http_requests_total{method="GET",path="/test",status="200"} 1
`
		if err := testutil.CollectAndCompare(metrics.HTTPRequestsTotal, strings.NewReader(expected)); err != nil {
			t.Errorf("Unexpected counter value: %v", err)
		}

		count := testutil.CollectAndCount(metrics.HTTPRequestDuration)
		if count != 1 {
			t.Errorf("Expected 1 duration metric, got %d", count)
		}
	})

	t.Run("records different status codes", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		testCases := []struct {
			statusCode int
			path       string
		}{
			{http.StatusOK, "/ok"},
			{http.StatusUnauthorized, "/protected"},
			{http.StatusInternalServerError, "/error"},
		}

		middleware := HTTPMetricsMiddleware(metrics)

		for _, tc := range testCases {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
			})

			wrappedHandler := middleware(handler)
			req := httptest.NewRequest("GET", tc.path, nil)
			rec := httptest.NewRecorder()

			wrappedHandler.ServeHTTP(rec, req)
		}

		count := testutil.CollectAndCount(metrics.HTTPRequestsTotal)
		if count != 3 {
			t.Errorf("Expected 3 metrics, got %d", count)
		}
	})

	t.Run("handles multiple requests", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		middleware := HTTPMetricsMiddleware(metrics)
		wrappedHandler := middleware(handler)

		for i := 0; i < 5; i++ {
			req := httptest.NewRequest("GET", "/test", nil)
			rec := httptest.NewRecorder()
			wrappedHandler.ServeHTTP(rec, req)
		}

		expected := `
# HELP tably_http_requests_total Total number of HTTP requests
# TYPE tably_http_requests_total counter
tably_http_requests_total{method="GET",path="/test",status="200"} 5
`
		if err := testutil.CollectAndCompare(metrics.HTTPRequestsTotal, strings.NewReader(expected)); err != nil {
			t.Errorf("Unexpected counter value: %v", err)
		}
	})
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	t.Run("exposes metrics in prometheus format", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		metrics.JWKSKeysCached.Set(2)
		metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api", "200").Inc()

		mux := http.NewServeMux()
		RegisterMetricsEndpoint(mux, registry)

		req := httptest.NewRequest("GET", "/metrics", nil)
		rec := httptest.NewRecorder()

		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("Expected status code %d, got %d", http.StatusOK, rec.Code)
		}

		body := rec.Body.String()

		if !strings.Contains(body, "tably_jwks_keys_cached 2") {
			t.Error("Expected tably_jwks_keys_cached value in metrics output")
		}
		if !strings.Contains(body, "tably_http_requests_total") {
			t.Error("Expected tably_http_requests_total in metrics output")
		}
		if !strings.Contains(body, "# HELP") {
			t.Error("Expected # HELP lines in output")
		}
	})

	t.Run("only responds to /metrics path", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		NewMetrics(registry)

		mux := http.NewServeMux()
		RegisterMetricsEndpoint(mux, registry)

		req := httptest.NewRequest("GET", "/other", nil)
		rec := httptest.NewRecorder()

		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected status code %d for non-metrics path, got %d", http.StatusNotFound, rec.Code)
		}
	})
}
