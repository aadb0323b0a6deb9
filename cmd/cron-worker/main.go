package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/relief-dispatch/internal/allocation"
	"github.com/angelmondragon/relief-dispatch/internal/cron"
	"github.com/angelmondragon/relief-dispatch/internal/duplicates"
	"github.com/angelmondragon/relief-dispatch/pkg/config"
	"github.com/angelmondragon/relief-dispatch/pkg/db"
	"github.com/angelmondragon/relief-dispatch/pkg/logger"
	"github.com/angelmondragon/relief-dispatch/pkg/metrics"
	"github.com/angelmondragon/relief-dispatch/pkg/migrate"
	"github.com/angelmondragon/relief-dispatch/pkg/redis"
)

const lockName = "cron-worker:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		NoColor:     cfg.App.LogNoColor,
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

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockKey(cfg.App.Env)), cfg.Cron.Interval)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	conn := dbClient.DB()
	dupes, err := duplicates.NewService(duplicates.ServiceParams{
		Repository: duplicates.NewRepository(conn),
		DB:         dbClient,
		Config:     cfg.Duplicates,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create duplicate service", err)
		os.Exit(1)
	}
	duplicateJob, err := cron.NewDuplicateScanJob(cron.DuplicateScanJobParams{Logger: logg, Flagger: dupes})
	if err != nil {
		logg.Error(context.Background(), "failed to create duplicate scan job", err)
		os.Exit(1)
	}
	expiryJob, err := cron.NewOfferExpiryJob(cron.OfferExpiryJobParams{
		Logger: logg,
		Offers: allocation.NewRepository(conn),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create offer expiry job", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(expiryJob, duplicateJob)
	service, err := cron.NewService(cron.ServiceParams{
		Name:     "cron-worker",
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockName, env)
}
