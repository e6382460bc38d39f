package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/paysync/api"
	"github.com/angelmondragon/paysync/api/routes"
	"github.com/angelmondragon/paysync/internal/charges"
	stripewebhook "github.com/angelmondragon/paysync/internal/webhooks/stripe"
	"github.com/angelmondragon/paysync/pkg/config"
	"github.com/angelmondragon/paysync/pkg/db"
	"github.com/angelmondragon/paysync/pkg/env"
	"github.com/angelmondragon/paysync/pkg/logger"
	"github.com/angelmondragon/paysync/pkg/metrics"
	"github.com/angelmondragon/paysync/pkg/migrate"
	"github.com/angelmondragon/paysync/pkg/redis"
	pkgstripe "github.com/angelmondragon/paysync/pkg/stripe"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
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

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	syncMetrics := metrics.NewChargeSyncMetrics(reg)

	remote, err := charges.NewStripeAPI(stripeClient, logg)
	if err != nil {
		return err
	}
	repo := charges.NewRepository(dbClient.DB())
	syncer, err := charges.NewSyncer(charges.SyncerParams{
		API:     remote,
		Store:   repo,
		Logger:  logg,
		Metrics: syncMetrics,
		Retries: cfg.Sync.Retries,
		Backoff: cfg.Sync.Backoff,
	})
	if err != nil {
		return err
	}
	chargeService, err := charges.NewService(syncer, repo)
	if err != nil {
		return err
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Syncer:  syncer,
		Metrics: syncMetrics,
		Logger:  logg,
	})
	if err != nil {
		return err
	}
	guard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Webhooks.IdempotencyTTL, "stripe-webhook")
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": env.InstanceID(),
	})
	logg.Info(ctx, "starting api server")

	server := api.NewServer(addr, routes.NewRouter(routes.RouterParams{
		Config:         cfg,
		Logger:         logg,
		DB:             dbClient,
		Redis:          redisClient,
		Gatherer:       reg,
		ChargeService:  chargeService,
		StripeClient:   stripeClient,
		WebhookService: webhookService,
		WebhookGuard:   guard,
	}))
	return api.Serve(ctx, server, logg)
}
