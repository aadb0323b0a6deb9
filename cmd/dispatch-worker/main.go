package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/relief-dispatch/api/routes"
	"github.com/angelmondragon/relief-dispatch/internal/allocation"
	"github.com/angelmondragon/relief-dispatch/internal/broadcast"
	"github.com/angelmondragon/relief-dispatch/internal/cron"
	"github.com/angelmondragon/relief-dispatch/internal/dispatch"
	"github.com/angelmondragon/relief-dispatch/internal/duplicates"
	"github.com/angelmondragon/relief-dispatch/internal/matching"
	"github.com/angelmondragon/relief-dispatch/internal/requests"
	"github.com/angelmondragon/relief-dispatch/pkg/config"
	"github.com/angelmondragon/relief-dispatch/pkg/db"
	"github.com/angelmondragon/relief-dispatch/pkg/logger"
	"github.com/angelmondragon/relief-dispatch/pkg/metrics"
	"github.com/angelmondragon/relief-dispatch/pkg/migrate"
	"github.com/angelmondragon/relief-dispatch/pkg/pubsub"
	"github.com/angelmondragon/relief-dispatch/pkg/redis"
)

const serviceName = "dispatch-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceName

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
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

	// redis only backs intake idempotency here; the worker runs without it
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	}

	var (
		notifier broadcast.Notifier = broadcast.NopNotifier{}
		waiters  []func()
	)
	if cfg.FeatureFlags.Broadcast {
		psClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := psClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		psNotifier, err := broadcast.NewPubSubNotifier(psClient, psClient.BroadcastTopic(), logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create broadcast notifier", err)
			os.Exit(1)
		}
		notifier = psNotifier
		waiters = append(waiters, psNotifier.Wait)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	conn := dbClient.DB()
	scorer, err := matching.NewScorer(matching.NewRepository(conn), cfg.Matching, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create scorer", err)
		os.Exit(1)
	}
	allocator, err := allocation.NewAllocator(allocation.Params{
		DB:         dbClient,
		Repository: allocation.NewRepository(conn),
		Scorer:     scorer,
		Notifier:   notifier,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create allocator", err)
		os.Exit(1)
	}

	requestRepo := requests.NewRepository(conn)
	scheduler, err := dispatch.NewScheduler(dispatch.Params{
		Matcher:  allocator,
		Requests: requestRepo,
		Config:   cfg.Dispatch,
		Metrics:  metrics.NewDispatchMetrics(registry),
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create scheduler", err)
		os.Exit(1)
	}

	intake, err := requests.NewService(requestRepo, scheduler, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create intake service", err)
		os.Exit(1)
	}
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

	backfillJob, err := cron.NewDispatchBackfillJob(cron.DispatchBackfillJobParams{
		Logger:     logg,
		Backfiller: scheduler,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create backfill job", err)
		os.Exit(1)
	}
	// the queue lives in this process, so a local lock is enough
	backfill, err := cron.NewService(cron.ServiceParams{
		Name:     "dispatch-backfill",
		Logger:   logg,
		Registry: cron.NewRegistry(backfillJob),
		Lock:     &cron.LocalLock{},
		Metrics:  metrics.NewCronJobMetrics(registry),
		Interval: cfg.Dispatch.BackfillInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create backfill service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := &http.Server{
		Addr: ":" + port,
		Handler: routes.NewRouter(routes.Deps{
			Config:     cfg,
			Logger:     logg,
			DB:         dbClient,
			Redis:      redisClient,
			Gatherer:   registry,
			HTTP:       metrics.NewHTTPMetrics(registry),
			Requests:   intake,
			Dispatcher: scheduler,
			Backfiller: scheduler,
			Lister:     allocator,
			Duplicates: dupes,
		}),
	}

	service, err := NewService(ServiceParams{
		Logger:    logg,
		DB:        dbClient,
		Redis:     redisClient,
		Scheduler: scheduler,
		Backfill:  backfill,
		Server:    server,
		Waiters:   waiters,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatch worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting dispatch worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "dispatch worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "dispatch worker shutting down gracefully")
}
