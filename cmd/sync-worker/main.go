package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jslopezg/velastore-backend/internal/catalog"
	"github.com/jslopezg/velastore-backend/internal/supplier"
	syncengine "github.com/jslopezg/velastore-backend/internal/sync"
	"github.com/jslopezg/velastore-backend/pkg/config"
	"github.com/jslopezg/velastore-backend/pkg/db"
	"github.com/jslopezg/velastore-backend/pkg/instance"
	"github.com/jslopezg/velastore-backend/pkg/logger"
	"github.com/jslopezg/velastore-backend/pkg/metrics"
	"github.com/jslopezg/velastore-backend/pkg/migrate"
	"github.com/jslopezg/velastore-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "sync-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "sync-worker"

	logg = logger.New(logger.Options{
		ServiceName: "sync-worker",
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

	syncMetrics := metrics.NewSyncMetrics(prometheus.DefaultRegisterer)
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

	worker, err := syncengine.NewWorker(syncService, catalogRepo, redisClient, cfg.Sync, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create sync worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})

	workerLock, err := syncengine.NewWorkerLock(redisClient, cfg.Sync.WorkerLockTTL)
	if err != nil {
		logg.Error(ctx, "failed to create worker lock", err)
		os.Exit(1)
	}
	acquired, err := workerLock.Acquire(ctx)
	if err != nil {
		logg.Error(ctx, "failed to acquire worker lock", err)
		os.Exit(1)
	}
	if !acquired {
		logg.Warn(ctx, "another sync worker holds the lock, exiting")
		return
	}
	defer func() {
		if err := workerLock.Release(context.WithoutCancel(ctx)); err != nil {
			logg.Warn(ctx, "failed to release worker lock")
		}
	}()

	logg.Info(ctx, "starting sync worker")

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "sync worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "sync worker shutting down gracefully")
}
