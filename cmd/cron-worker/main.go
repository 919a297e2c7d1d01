package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/smes-pos/smes-backend/internal/cron"
	"github.com/smes-pos/smes-backend/internal/inventory"
	"github.com/smes-pos/smes-backend/internal/products"
	"github.com/smes-pos/smes-backend/pkg/config"
	"github.com/smes-pos/smes-backend/pkg/db"
	"github.com/smes-pos/smes-backend/pkg/instance"
	"github.com/smes-pos/smes-backend/pkg/logger"
	"github.com/smes-pos/smes-backend/pkg/metrics"
	"github.com/smes-pos/smes-backend/pkg/migrate"
	"github.com/smes-pos/smes-backend/pkg/outbox"
	"github.com/smes-pos/smes-backend/pkg/redis"
)

const serviceName = "cron-worker"

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	bootCtx := context.Background()
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(bootCtx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(bootCtx, "failed to load config", err)
		return err
	}
	cfg.Service.Kind = serviceName

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     strings.EqualFold(cfg.App.LogFormat, "console"),
		Fields:      map[string]any{"env": cfg.App.Env, "instance": instance.GetID()},
	})

	ctx, stop := signal.NotifyContext(bootCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	jobs, err := buildJobs(cfg, logg, dbClient)
	if err != nil {
		logg.Error(ctx, "failed to build cron jobs", err)
		return err
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(serviceName, cfg.App.Env), 0)
	if err != nil {
		logg.Error(ctx, "failed to create cron lock", err)
		return err
	}

	scheduler, err := cron.NewScheduler(cron.SchedulerParams{
		Logger:   logg,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
		Jobs:     jobs,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron scheduler", err)
		return err
	}

	logg.Info(logg.WithField(ctx, "jobs", len(jobs)), "starting cron worker")
	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		return err
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
	return nil
}

func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) ([]cron.Job, error) {
	conn := dbClient.DB()
	outboxRepo := outbox.NewRepository(conn)

	var jobs []cron.Job
	if !cfg.Cron.ExpiredRemovalDisabled {
		productRepo := products.NewRepository(conn)
		adjustmentRepo := inventory.NewRepository(conn)
		ledger, err := inventory.NewLedger(productRepo, adjustmentRepo, outbox.NewService(outboxRepo, logg))
		if err != nil {
			return nil, err
		}
		inv, err := inventory.NewService(dbClient, ledger, productRepo, adjustmentRepo, logg)
		if err != nil {
			return nil, err
		}
		expired, err := cron.NewExpiredProductsJob(logg, inv)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, expired)
	}

	retention, err := cron.NewOutboxRetentionJob(logg, dbClient, outboxRepo, cfg.Cron.OutboxRetentionDays)
	if err != nil {
		return nil, err
	}
	return append(jobs, retention), nil
}
