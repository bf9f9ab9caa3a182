// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings. All variables share the TABLY_ prefix.
//
// # Configuration Structure
//
// Server settings:
//
//	TABLY_HOST="0.0.0.0"
//	TABLY_PORT="8080"
//	TABLY_HEALTH_PORT="9090"
//	TABLY_READ_TIMEOUT="15s"
//	TABLY_WRITE_TIMEOUT="15s"
//	TABLY_SHUTDOWN_TIMEOUT="30s"
//
// Database settings:
//
//	TABLY_POSTGRES_URL="postgres://localhost/tably"
//	TABLY_POSTGRES_REPLICA_URLS=""  # comma separated, optional
//	TABLY_POSTGRES_MAX_CONNS="25"
//	TABLY_POSTGRES_MIN_CONNS="5"
//
// Redis settings (optional, enables distributed rate limiting):
//
//	TABLY_REDIS_URL="localhost:6379"
//	TABLY_REDIS_POOL_SIZE="10"
//	TABLY_RATE_LIMIT="100"
//	TABLY_RATE_BURST="20"
//
// Auth settings:
//
//	TABLY_AUTH_ISSUER_URL="https://tably.us.auth0.com/"
//	TABLY_AUTH_AUDIENCE="https://api.tably.app"
//	TABLY_AUTH_CLAIMS_NAMESPACE="https://tably.app"
//	TABLY_AUTH_MGMT_CLIENT_ID="..."
//	TABLY_AUTH_MGMT_CLIENT_SECRET="..."
//	TABLY_AUTH_ROLE_MAP_PATH="roles.json"
//
// Invitation settings:
//
//	TABLY_INVITATION_TTL="168h"
//	TABLY_INVITATION_SWEEP_SCHEDULE="@hourly"
//
// Observability settings:
//
//	TABLY_LOG_LEVEL="info"  # debug, info, warn, error
//	TABLY_METRICS_ENABLED="true"
//	TABLY_TRACING_ENABLED="false"
//	TABLY_TRACING_ENDPOINT="localhost:4317"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Issuer: %s\n", cfg.Auth.IssuerURL)
//	fmt.Printf("Log level: %s\n", cfg.Observability.LogLevel)
//
// # Related Packages
//
//   - pkg/storage: Uses database and redis configuration
//   - pkg/auth: Uses auth configuration
//   - pkg/observability: Uses observability configuration
package config
