package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/tablyhq/tably/pkg/api"
	"github.com/tablyhq/tably/pkg/auth"
	"github.com/tablyhq/tably/pkg/config"
	"github.com/tablyhq/tably/pkg/guard"
	"github.com/tablyhq/tably/pkg/invitations"
	"github.com/tablyhq/tably/pkg/management"
	"github.com/tablyhq/tably/pkg/middleware"
	"github.com/tablyhq/tably/pkg/observability"
	"github.com/tablyhq/tably/pkg/orgs"
	"github.com/tablyhq/tably/pkg/provisioner"
	"github.com/tablyhq/tably/pkg/storage/postgres"
	"github.com/tablyhq/tably/pkg/users"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tably: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("starting tably API server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	connManager, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
		PrimaryURL:  cfg.Database.URL,
		ReplicaURLs: postgres.ParseReplicaURLs(cfg.Database.ReplicaURLs),
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	db := connManager.Primary()

	if err := postgres.RunMigrations(ctx, db, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Redis is optional; without it rate limiting falls back to a local
	// per-instance window.
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("invalid redis URL: %w", err)
		}
		if cfg.Redis.Password != "" {
			opts.Password = cfg.Redis.Password
		}
		opts.DB = cfg.Redis.DB
		opts.PoolSize = cfg.Redis.PoolSize
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis unreachable at startup, rate limiting degrades to local windows")
		}
	}

	// Tracing
	var tracerProvider interface {
		Shutdown(context.Context) error
	}
	if cfg.Observability.TracingEnabled {
		tp, err := observability.InitTracing(ctx, observability.TracingConfig{
			Enabled:        true,
			Endpoint:       cfg.Observability.TracingEndpoint,
			ServiceName:    cfg.Observability.ServiceName,
			ServiceVersion: cfg.Observability.ServiceVersion,
			Insecure:       cfg.Observability.TracingInsecure,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		tracerProvider = tp
	}

	// Metrics
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	// Identity provider plumbing
	validator, err := auth.NewValidator(auth.ValidatorConfig{
		IssuerURL:             cfg.Auth.IssuerURL,
		Audience:              cfg.Auth.Audience,
		JWKSTimeout:           cfg.Auth.JWKSTimeout,
		MinKeyRefreshInterval: cfg.Auth.MinKeyRefreshInterval,
	})
	if err != nil {
		return err
	}

	extractor, err := auth.NewExtractor(auth.ClaimsConfig{Namespace: cfg.Auth.ClaimsNamespace})
	if err != nil {
		return err
	}

	mgmtClient := management.NewClient(ctx, management.Config{
		Domain:       cfg.Auth.IssuerURL,
		ClientID:     cfg.Auth.ManagementClientID,
		ClientSecret: cfg.Auth.ManagementClientSecret,
		Audience:     cfg.Auth.ManagementAudience,
	}, logger, metrics)

	roleMap, err := management.NewRoleMap(cfg.Auth.RoleMapPath, logger)
	if err != nil {
		return fmt.Errorf("failed to load role map: %w", err)
	}
	if err := roleMap.Watch(ctx); err != nil {
		logger.WithError(err).Warn("role map watch unavailable, edits require a restart")
	}

	// Stores and services
	userStore := users.NewPostgresStore(db)
	orgStore := orgs.NewPostgresStore(db)
	invitationStore := invitations.NewPostgresStore(db)

	sync, err := provisioner.NewSynchronizer(db, logger, metrics)
	if err != nil {
		return err
	}

	manager := invitations.NewManager(invitationStore, userStore, orgStore,
		mgmtClient, roleMap, cfg.Invitations.TTL, logger, metrics)

	sweeper, err := invitations.NewSweeper(invitationStore, cfg.Invitations.SweepSchedule, logger, metrics)
	if err != nil {
		return err
	}
	sweeper.Start()

	accessGuard := guard.NewGuard(logger, metrics)

	// Middleware
	authMW := middleware.NewAuthMiddleware(validator, extractor, sync, logger, metrics)

	var limiter middleware.Limiter
	if redisClient != nil {
		limiter = middleware.NewRedisLimiter(redisClient, rateLimitConfig(cfg), "ratelimit:invitations")
	} else {
		local := middleware.NewLocalLimiter(rateLimitConfig(cfg))
		local.StartCleanup(ctx)
		limiter = local
	}
	limitMW := middleware.NewRateLimitMiddleware(limiter, rateLimitConfig(cfg), logger)

	// API server
	server := api.NewServer(api.Config{
		Invitations: manager,
		Users:       userStore,
		Orgs:        orgStore,
		Management:  mgmtClient,
		Roles:       roleMap,
		Guard:       accessGuard,
		Auth:           authMW.Handler,
		RateLimit:      limitMW.Handler,
		Logger:         logger,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
	})

	handler := observability.HTTPMetricsMiddleware(metrics)(server.Router())
	if cfg.Observability.TracingEnabled {
		handler = otelhttp.NewHandler(handler, "tably-api")
	}

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port for probes
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	connManager.StartHealthCheckRoutine(ctx, cfg.Database.Timeout)

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		sweeper.Stop()
		return nil
	})
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		cancel()
		return connManager.Close()
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			return redisClient.Close()
		})
	}
	if tracerProvider != nil {
		shutdown.RegisterShutdownFunc(tracerProvider.Shutdown)
	}

	var group errgroup.Group
	group.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("API server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	serveErr := make(chan error, 1)
	go func() { serveErr <- group.Wait() }()

	waitCh := make(chan error, 1)
	go func() { waitCh <- shutdown.WaitForShutdown() }()

	select {
	case err := <-serveErr:
		if err != nil {
			shutdown.Shutdown()
			return err
		}
		// Servers closed as part of a signal-driven shutdown; wait for the
		// shutdown hooks to finish.
		return <-waitCh
	case err := <-waitCh:
		return err
	}
}

func rateLimitConfig(cfg *config.Config) *middleware.RateLimitConfig {
	if cfg.Redis.RateLimit <= 0 {
		return middleware.DefaultRateLimitConfig()
	}
	return &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.Redis.RateLimit,
		WindowDuration:    middleware.DefaultRateLimitConfig().WindowDuration,
	}
}
