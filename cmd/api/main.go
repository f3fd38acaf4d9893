package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/stagewerk/lockbox/internal/background"
	"github.com/stagewerk/lockbox/internal/config"
	"github.com/stagewerk/lockbox/internal/database"
	"github.com/stagewerk/lockbox/internal/handlers"
	"github.com/stagewerk/lockbox/internal/lockout"
	middlewareCustom "github.com/stagewerk/lockbox/internal/middleware"
	"github.com/stagewerk/lockbox/internal/repositories"
	"github.com/stagewerk/lockbox/internal/routes"
	"github.com/stagewerk/lockbox/internal/services"
	"github.com/stagewerk/lockbox/internal/verifier"
	pkghttp "github.com/stagewerk/lockbox/pkg/http"
	pkglogger "github.com/stagewerk/lockbox/pkg/logger"
)

func main() {
	logLevel := parseLogLevel(os.Getenv("LOG_LEVEL"))
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("store_backend", cfg.Lockout.StoreBackend),
		slog.String("verifier_mode", cfg.Verifier.Mode),
	)

	// Initialize the attempt store for the configured backend
	store, health, closeStore, err := buildStore(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize lockout store", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	// Credential verifier: remote in production, local for development
	// and self-contained deployments
	var credVerifier verifier.CredentialVerifier
	switch cfg.Verifier.Mode {
	case "local":
		credVerifier = verifier.NewLocal(nil)
	default:
		credVerifier = verifier.NewClient(cfg.Verifier.BaseURL, cfg.Verifier.Timeout, logger)
	}

	auditLogger := pkglogger.NewAuditLogger(logger)

	syncer := lockout.NewSyncer(credVerifier, logger, cfg.Lockout.SyncSettleDelay, cfg.Lockout.SyncMaxRetries)

	engine := lockout.NewEngine(store, syncer, lockout.Config{
		MaxFailedAttempts:   cfg.Lockout.MaxFailedAttempts,
		LockoutDuration:     cfg.Lockout.LockoutDuration,
		AttemptResetTimeout: cfg.Lockout.AttemptResetTimeout,
		SweepBatchSize:      cfg.Lockout.SweepBatchSize,
	}, logger, auditLogger)

	// Lockout alert emails
	if cfg.Alert.Enabled {
		alertService, err := services.NewAWSSESAlertService(
			cfg.Alert.AWSRegion,
			cfg.Alert.FromAddress,
			cfg.Alert.SecurityAddress,
			logger,
		)
		if err != nil {
			logger.Error("failed to initialize alert service", slog.Any("error", err))
			os.Exit(1)
		}
		engine.SetNotifier(alertService)
	}

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(engine, credVerifier, ipConfig)
	adminHandler := handlers.NewAdminHandler(engine, ipConfig)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, authHandler, adminHandler, cfg.Server.AdminAPIKey, health)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup sweeper
	sweeper := background.NewSweeper(engine, logger, cfg.Lockout.SweepInterval)
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()

	go sweeper.Start(sweepCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	sweepCancel()
	sweeper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// buildStore wires the attempt store named by LOCKOUT_STORE_BACKEND, along
// with its health probe and teardown
func buildStore(cfg *config.Config, logger *slog.Logger) (lockout.AttemptStore, routes.HealthChecker, func(), error) {
	switch cfg.Lockout.StoreBackend {
	case "postgres":
		db, err := database.NewConnection(&cfg.Database, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		return repositories.NewLockoutRepository(db), db, db.Close, nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, nil, err
		}

		return repositories.NewRedisLockoutRepository(rdb), redisHealth{rdb}, func() { _ = rdb.Close() }, nil

	default:
		// memory: single-process only, nothing to probe or tear down
		return repositories.NewMemoryLockoutRepository(), nil, func() {}, nil
	}
}

type redisHealth struct {
	rdb redis.UniversalClient
}

func (h redisHealth) HealthCheck(ctx context.Context) error {
	return h.rdb.Ping(ctx).Err()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
