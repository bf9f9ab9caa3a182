package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tablyhq/tably/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Auth          AuthConfig
	Invitations   InvitationConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	// AllowedOrigins enables CORS for the listed origins. Empty disables
	// CORS handling entirely.
	AllowedOrigins []string

	// MaxBodyBytes caps request body size.
	MaxBodyBytes int64
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL         string
	ReplicaURLs string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
}

// RedisConfig holds Redis configuration for distributed rate limiting
type RedisConfig struct {
	URL       string
	Password  string
	DB        int
	PoolSize  int
	RateLimit int
	RateBurst int
}

// AuthConfig holds identity provider configuration
type AuthConfig struct {
	// IssuerURL is the token issuer, e.g. https://tably.us.auth0.com/
	IssuerURL string
	// Audience is the API identifier expected in the aud claim
	Audience string
	// ClaimsNamespace prefixes the custom claims in access tokens
	ClaimsNamespace string

	// Management API client credentials
	ManagementClientID     string
	ManagementClientSecret string
	ManagementAudience     string

	// RoleMapPath points at the JSON file mapping application roles to
	// provider role ids
	RoleMapPath string

	JWKSTimeout           time.Duration
	MinKeyRefreshInterval time.Duration
}

// InvitationConfig holds invitation lifecycle settings
type InvitationConfig struct {
	// TTL is how long an invitation stays acceptable
	TTL time.Duration
	// SweepSchedule is a cron expression for the expiry sweeper
	SweepSchedule string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	TracingEnabled  bool
	TracingEndpoint string
	ServiceName     string
	ServiceVersion  string
	TracingInsecure bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Auth:          loadAuthConfig(),
		Invitations:   loadInvitationConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("TABLY_HOST", "0.0.0.0"),
		Port:            getEnv("TABLY_PORT", "8080"),
		ReadTimeout:     getEnvDuration("TABLY_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("TABLY_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("TABLY_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("TABLY_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("TABLY_HEALTH_PORT", "9090"),
		AllowedOrigins:  getEnvList("TABLY_ALLOWED_ORIGINS", nil),
		MaxBodyBytes:    int64(getEnvInt("TABLY_MAX_BODY_BYTES", 1<<20)),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:         getEnv("TABLY_POSTGRES_URL", ""),
		ReplicaURLs: getEnv("TABLY_POSTGRES_REPLICA_URLS", ""),
		MaxConns:    getEnvInt("TABLY_POSTGRES_MAX_CONNS", 25),
		MinConns:    getEnvInt("TABLY_POSTGRES_MIN_CONNS", 5),
		Timeout:     getEnvDuration("TABLY_POSTGRES_TIMEOUT", 30*time.Second),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:       getEnv("TABLY_REDIS_URL", ""),
		Password:  getEnv("TABLY_REDIS_PASSWORD", ""),
		DB:        getEnvInt("TABLY_REDIS_DB", 0),
		PoolSize:  getEnvInt("TABLY_REDIS_POOL_SIZE", 10),
		RateLimit: getEnvInt("TABLY_RATE_LIMIT", 100),
		RateBurst: getEnvInt("TABLY_RATE_BURST", 20),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		IssuerURL:              getEnv("TABLY_AUTH_ISSUER_URL", ""),
		Audience:               getEnv("TABLY_AUTH_AUDIENCE", ""),
		ClaimsNamespace:        getEnv("TABLY_AUTH_CLAIMS_NAMESPACE", "https://tably.app"),
		ManagementClientID:     getEnv("TABLY_AUTH_MGMT_CLIENT_ID", ""),
		ManagementClientSecret: getEnv("TABLY_AUTH_MGMT_CLIENT_SECRET", ""),
		ManagementAudience:     getEnv("TABLY_AUTH_MGMT_AUDIENCE", ""),
		RoleMapPath:            getEnv("TABLY_AUTH_ROLE_MAP_PATH", "roles.json"),
		JWKSTimeout:            getEnvDuration("TABLY_AUTH_JWKS_TIMEOUT", 5*time.Second),
		MinKeyRefreshInterval:  getEnvDuration("TABLY_AUTH_KEY_REFRESH_INTERVAL", 10*time.Second),
	}
}

func loadInvitationConfig() InvitationConfig {
	return InvitationConfig{
		TTL:           getEnvDuration("TABLY_INVITATION_TTL", 7*24*time.Hour),
		SweepSchedule: getEnv("TABLY_INVITATION_SWEEP_SCHEDULE", "@hourly"),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:        observability.ParseLogLevel(getEnv("TABLY_LOG_LEVEL", "info")),
		MetricsEnabled:  getEnvBool("TABLY_METRICS_ENABLED", true),
		TracingEnabled:  getEnvBool("TABLY_TRACING_ENABLED", false),
		TracingEndpoint: getEnv("TABLY_TRACING_ENDPOINT", "localhost:4317"),
		ServiceName:     getEnv("TABLY_SERVICE_NAME", "tably-api"),
		ServiceVersion:  getEnv("TABLY_SERVICE_VERSION", "1.0.0"),
		TracingInsecure: getEnvBool("TABLY_TRACING_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("postgres min connections exceeds max connections")
	}

	if c.Auth.IssuerURL == "" {
		return fmt.Errorf("auth issuer URL is required")
	}
	if !strings.HasPrefix(c.Auth.IssuerURL, "https://") {
		return fmt.Errorf("auth issuer URL must use https")
	}
	if c.Auth.Audience == "" {
		return fmt.Errorf("auth audience is required")
	}
	if c.Auth.ClaimsNamespace == "" {
		return fmt.Errorf("auth claims namespace is required")
	}
	if strings.HasSuffix(c.Auth.ClaimsNamespace, "/") {
		return fmt.Errorf("auth claims namespace must not end with a slash")
	}
	if c.Auth.ManagementClientID == "" || c.Auth.ManagementClientSecret == "" {
		return fmt.Errorf("management API client credentials are required")
	}

	if c.Invitations.TTL <= 0 {
		return fmt.Errorf("invitation TTL must be positive")
	}
	if c.Invitations.SweepSchedule == "" {
		return fmt.Errorf("invitation sweep schedule is required")
	}

	if c.Observability.TracingEnabled {
		if c.Observability.TracingEndpoint == "" {
			return fmt.Errorf("tracing endpoint is required when tracing is enabled")
		}
		if c.Observability.ServiceName == "" {
			return fmt.Errorf("service name is required when tracing is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
