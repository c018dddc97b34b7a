package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/woventales/backend/internal/metrics"
	"github.com/woventales/backend/internal/middleware"
	"github.com/woventales/backend/internal/router"
	"github.com/woventales/backend/pkg/config"
	"github.com/woventales/backend/pkg/firebase"
	"github.com/woventales/backend/pkg/logger"
	"github.com/woventales/backend/validators"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()
	appLogger = appLogger.With(zap.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(reg)

	// Initialize storage
	var repos router.Repositories
	switch cfg.StoreBackend {
	case config.BackendMemory:
		appLogger.Warn("Using the in-memory store; data is lost on restart")
		repos = router.NewMemoryRepositories()
	default:
		db, err := config.InitDB(cfg, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to initialize databases", zap.Error(err))
		}
		defer db.CloseDB()

		repos, err = router.NewDatabaseRepositories(ctx, db.Postgres, db.Mongo.Database(cfg.MongoDatabase), appLogger)
		if err != nil {
			appLogger.Fatal("Failed to prepare repositories", zap.Error(err))
		}
	}

	// Initialize identity
	var auth echo.MiddlewareFunc
	switch cfg.AuthProvider {
	case config.AuthFirebase:
		identity, err := firebase.NewIdentity(ctx, firebase.Options{
			CredentialsPath: cfg.FirebaseCredentialsPath,
			ProjectID:       cfg.FirebaseProjectID,
			CheckRevoked:    cfg.FirebaseCheckRevoked,
		}, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to initialize Firebase", zap.Error(err))
		}
		auth = middleware.FirebaseAuthMiddleware(identity)
	default:
		auth = middleware.JWTAuthMiddleware(cfg.JWTSecret)
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()

	router.SetupMiddleware(e, appLogger, appMetrics, cfg.RequestTimeout)
	router.SetupRoutes(e, repos, auth, appMetrics, appLogger)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		appLogger.Info("Metrics server listening", zap.String("port", cfg.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		appLogger.Info("HTTP server listening", zap.String("port", cfg.Port))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Metrics server shutdown failed", zap.Error(err))
	}
}
