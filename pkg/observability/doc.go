// Package observability provides structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// # Overview
//
// This package centralizes observability infrastructure including JSON logging, metrics
// collection, health checks, and distributed tracing integration.
//
// # Structured Logging
//
// Create a logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("port", 8080).Info("server started")
//
// Request-scoped logging:
//
//	observability.FromContext(ctx).WithError(err).Error("request failed")
//
// # Prometheus Metrics
//
// Initialize metrics against a registry:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.TokenValidationsTotal.WithLabelValues("success").Inc()
//	metrics.ProvisioningTotal.WithLabelValues("success").Inc()
//	metrics.InvitationsAcceptedTotal.Inc()
//
// # Health Checks
//
// Configure a health checker:
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	observability.RegisterHealthRoutes(mux, checker)
//
// # Tracing
//
// Initialize tracing:
//
//	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
//		Enabled:     true,
//		ServiceName: "tably-api",
//		Endpoint:    "otel-collector:4317",
//	}, logger)
//	defer observability.ShutdownTracing(ctx, tp, logger)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/middleware: Request logging middleware
package observability
