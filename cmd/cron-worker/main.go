package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/paysync/internal/charges"
	"github.com/angelmondragon/paysync/internal/cron"
	"github.com/angelmondragon/paysync/pkg/config"
	"github.com/angelmondragon/paysync/pkg/db"
	"github.com/angelmondragon/paysync/pkg/db/models"
	"github.com/angelmondragon/paysync/pkg/logger"
	"github.com/angelmondragon/paysync/pkg/metrics"
	"github.com/angelmondragon/paysync/pkg/migrate"
	"github.com/angelmondragon/paysync/pkg/redis"
	pkgstripe "github.com/angelmondragon/paysync/pkg/stripe"
)

const lockName = "cron-worker"

func main() {
	once := flag.Bool("once", false, "run a single reconcile cycle and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	if err := run(ctx, cfg, logg, *once); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, once bool) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return err
	}
	remote, err := charges.NewStripeAPI(stripeClient, logg)
	if err != nil {
		return err
	}
	repo := charges.NewRepository(dbClient.DB())
	syncer, err := charges.NewSyncer(charges.SyncerParams{
		API:     remote,
		Store:   repo,
		Logger:  logg,
		Metrics: metrics.NewChargeSyncMetrics(prometheus.DefaultRegisterer),
		Retries: cfg.Sync.Retries,
		Backoff: cfg.Sync.Backoff,
	})
	if err != nil {
		return err
	}

	job, err := cron.NewChargeReconcileJob(cron.ChargeReconcileJobParams{
		Logger:  logg,
		Charges: repo,
		Refresher: cron.RefresherFunc(func(ctx context.Context, charge *models.Charge) (*models.Charge, error) {
			return syncer.Handle(charge).Refresh(ctx)
		}),
		Limit:    cfg.Cron.ReconcileLimit,
		Lookback: cfg.Cron.ReconcileWindow,
	})
	if err != nil {
		return err
	}
	registry, err := cron.NewRegistry(job)
	if err != nil {
		return err
	}

	lock, err := cron.NewRedisLock(redisClient, lockName, cfg.Cron.Interval)
	if err != nil {
		return err
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return err
	}

	if once {
		skipped, err := service.RunOnce(ctx)
		if skipped {
			logg.Info(ctx, "another worker holds the cron lock")
		}
		return err
	}
	logg.Info(ctx, "starting cron worker")
	return service.Run(ctx)
}
