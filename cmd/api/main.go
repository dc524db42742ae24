package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jslopezg/velastore-backend/api/routes"
	"github.com/jslopezg/velastore-backend/internal/catalog"
	"github.com/jslopezg/velastore-backend/internal/supplier"
	syncengine "github.com/jslopezg/velastore-backend/internal/sync"
	supplierwebhook "github.com/jslopezg/velastore-backend/internal/webhooks/supplier"
	"github.com/jslopezg/velastore-backend/pkg/config"
	"github.com/jslopezg/velastore-backend/pkg/db"
	"github.com/jslopezg/velastore-backend/pkg/logger"
	"github.com/jslopezg/velastore-backend/pkg/metrics"
	"github.com/jslopezg/velastore-backend/pkg/migrate"
	"github.com/jslopezg/velastore-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	promRegistry := prometheus.NewRegistry()
	syncMetrics := metrics.NewSyncMetrics(promRegistry)

	catalogRepo := catalog.NewRepository(dbClient.DB())

	supplierClient, err := supplier.NewClient(cfg.Supplier, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create supplier client", err)
		os.Exit(1)
	}
	tokens := supplier.NewTokenManager(supplier.NewSettingsRepository(dbClient.DB()), supplierClient, logg)

	syncService, err := syncengine.NewService(tokens, supplierClient, catalogRepo, cfg.Sync, syncMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create sync service", err)
		os.Exit(1)
	}

	webhookService, err := supplierwebhook.NewService(supplierwebhook.ServiceParams{
		Catalog: catalogRepo,
		Metrics: syncMetrics,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}
	webhookGuard, err := supplierwebhook.NewIdempotencyGuard(redisClient, cfg.Sync.WebhookIdemTTL, "supplier-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, promRegistry, syncService, tokens, webhookService, webhookGuard),
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		logg.Info(ctx, "shutting down api server")
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}
