package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"github.com/forgo/bastion/internal/audit"
	"github.com/forgo/bastion/internal/config"
	"github.com/forgo/bastion/internal/database"
	"github.com/forgo/bastion/internal/handler"
	"github.com/forgo/bastion/internal/jobs"
	"github.com/forgo/bastion/internal/middleware"
	"github.com/forgo/bastion/internal/ratelimit"
	"github.com/forgo/bastion/internal/security"
	"github.com/forgo/bastion/pkg/jwt"
)

func main() {
	// Initialize structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		slog.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// Load configuration
	cfg, err := config.Load(os.Getenv("BASTION_CONFIG"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := context.Background()

	// Optional SurrealDB persistence for security events
	var db database.Database
	if cfg.Database.Enabled {
		surreal := database.NewSurrealDB(database.Config{
			Host:      cfg.Database.Host,
			Port:      cfg.Database.Port,
			User:      cfg.Database.User,
			Password:  cfg.Database.Password,
			Namespace: cfg.Database.Namespace,
			Database:  cfg.Database.Database,
			TLS:       cfg.Database.TLS,
		})
		if err := surreal.Connect(ctx); err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer func() { _ = surreal.Close() }()

		if err := database.Migrate(ctx, surreal); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		db = surreal

		slog.Info("connected to database",
			slog.String("host", cfg.Database.Host),
			slog.String("database", cfg.Database.Database),
		)

		if cfg.Audit.Retention > 0 {
			retention := jobs.NewEventRetention(db, jobs.RetentionConfig{
				MaxAge:   cfg.Audit.Retention,
				Interval: cfg.Audit.RetentionInterval,
				Delay:    5 * time.Second,
				Logger:   logger,
			})
			retention.Start()
			defer retention.Stop()
		}
	}

	events, err := newEventLog(cfg, logger, db)
	if err != nil {
		return err
	}
	defer func() {
		if err := events.Close(); err != nil {
			slog.Error("close event log", slog.String("error", err.Error()))
		}
	}()

	// Counter store
	var redisClient *redis.Client
	storeFactory := ratelimit.MemoryStoreFactory(ratelimit.MemoryConfig{Cleanup: cfg.RateLimit.CleanupInterval})
	if cfg.RateLimit.Store == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = redisClient.Close() }()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		storeFactory = ratelimit.RedisStoreFactory(redisClient, cfg.Redis.Prefix)
		slog.Info("using redis counter store", slog.String("addr", cfg.Redis.Addr))
	}

	limiter := ratelimit.New(ratelimit.WithStoreFactory(storeFactory), ratelimit.WithLogger(logger))
	defer limiter.Stop()
	if err := registerPolicies(limiter, cfg.RateLimit.Policies); err != nil {
		return err
	}

	tokens, err := newTokenService(cfg)
	if err != nil {
		return err
	}

	guard := security.NewCSRFGuard(security.CSRFConfig{
		CookieName:     cfg.Security.CSRFCookieName,
		HeaderName:     cfg.Security.CSRFHeaderName,
		MaxAge:         cfg.Security.CSRFMaxAge,
		Secure:         cfg.IsProduction(),
		ExemptPrefixes: cfg.Security.CSRFExemptPrefixes,
	})
	if len(cfg.Security.CSRFExemptPrefixes) > 0 {
		slog.Warn("csrf exemption active", slog.Any("prefixes", cfg.Security.CSRFExemptPrefixes))
	}

	presets := middleware.NewPresets(middleware.PresetDeps{
		Detector: security.NewDetector(),
		Limiter:  limiter,
		CSRF:     guard,
		Headers: security.NewHeaderWriter(security.HeaderConfig{
			CSP:        security.DefaultCSP(),
			Production: cfg.IsProduction(),
			HSTSMaxAge: cfg.Security.HSTSMaxAge,
		}),
		Auth:   middleware.NewBearerAuthenticator(tokens),
		Events: events,

		MaxBodyBytes:       cfg.Security.MaxBodyBytes,
		UploadMaxBodyBytes: cfg.Security.UploadMaxBodyBytes,
	})

	checks := map[string]handler.Pinger{}
	if db != nil {
		checks["database"] = db
	}
	if redisClient != nil {
		checks["redis"] = redisPinger{redisClient}
	}

	routerCfg := handler.RouterConfig{
		Presets:        presets,
		CSRF:           guard,
		Validator:      middleware.NewValidator(),
		Events:         events,
		Limiter:        limiter,
		Health:         handler.NewHealthHandler(checks),
		Metrics:        promhttp.Handler(),
		UploadMaxBytes: cfg.Security.UploadMaxBodyBytes,
	}
	if !cfg.IsProduction() {
		routerCfg.DevTokens = tokens
		slog.Warn("dev token endpoint enabled", slog.String("route", "POST /v1/auth/dev-token"))
	}
	mux := handler.NewRouter(routerCfg)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID", cfg.Security.CSRFHeaderName},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           86400,
	})

	// Apply global middleware
	wrapped := middleware.Chain(
		mux,
		middleware.RequestID,
		middleware.Logger,
		corsHandler.Handler,
		middleware.Compress,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      wrapped,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			slog.String("port", cfg.Server.Port),
			slog.String("env", cfg.Server.Env),
			slog.String("counter_store", cfg.RateLimit.Store),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("listen: %w", err)
	case <-quit:
	}

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", slog.String("error", err.Error()))
	}

	slog.Info("server exited")
	return nil
}

// newEventLog assembles the security event sinks.
func newEventLog(cfg *config.Config, logger *slog.Logger, db database.Database) (*audit.Log, error) {
	sinks := []audit.Sink{audit.NewSlogSink(logger)}

	if cfg.Audit.FilePath != "" {
		file, err := audit.NewFileSink(audit.FileConfig{
			Path:       cfg.Audit.FilePath,
			MaxSize:    cfg.Audit.FileMaxSizeMB,
			MaxBackups: cfg.Audit.FileMaxBackups,
			MaxAge:     cfg.Audit.FileMaxAgeDays,
			Compress:   cfg.Audit.FileCompress,
		})
		if err != nil {
			return nil, fmt.Errorf("open event file: %w", err)
		}
		sinks = append(sinks, file)
	}

	if cfg.Audit.Metrics {
		metrics, err := audit.NewMetricsSink(prometheus.DefaultRegisterer)
		if err != nil {
			return nil, fmt.Errorf("register event metrics: %w", err)
		}
		sinks = append(sinks, metrics)
	}

	if db != nil {
		sinks = append(sinks, audit.NewSurrealSink(db))
	}

	return audit.NewLog(logger, sinks...), nil
}

func registerPolicies(limiter *ratelimit.Limiter, policies []config.PolicyConfig) error {
	for _, p := range policies {
		key, err := middleware.KeyFuncByName(p.Key)
		if err != nil {
			return fmt.Errorf("policy %q: %w", p.Name, err)
		}
		if _, err := limiter.Register(ratelimit.Policy{
			Name:        p.Name,
			MaxRequests: p.MaxRequests,
			Window:      p.Window,
			Key:         key,
		}); err != nil {
			return err
		}
		slog.Info("rate limit policy registered",
			slog.String("policy", p.Name),
			slog.Int("max_requests", p.MaxRequests),
			slog.Duration("window", p.Window),
			slog.String("key", p.Key),
		)
	}
	return nil
}

// newTokenService loads the RS256 key pair. Outside production a missing
// key pair is replaced by an ephemeral one.
func newTokenService(cfg *config.Config) (*jwt.Service, error) {
	tokens, err := jwt.NewService(jwt.Config{
		PrivateKeyPath: cfg.JWT.PrivateKeyPath,
		PublicKeyPath:  cfg.JWT.PublicKeyPath,
		Issuer:         cfg.JWT.Issuer,
		ExpirationMins: cfg.JWT.ExpirationMins,
	})
	if err == nil {
		return tokens, nil
	}
	if cfg.IsProduction() {
		return nil, fmt.Errorf("initialize JWT service: %w", err)
	}

	slog.Warn("JWT keys unavailable, using an ephemeral key pair", slog.String("error", err.Error()))
	key, genErr := rsa.GenerateKey(rand.Reader, 2048)
	if genErr != nil {
		return nil, fmt.Errorf("generate ephemeral key: %w", genErr)
	}
	return jwt.NewTestService(key, cfg.JWT.Issuer, time.Duration(cfg.JWT.ExpirationMins)*time.Minute), nil
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
