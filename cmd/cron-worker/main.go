package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/muhamadhazim/fishit-marketplace/internal/cron"
	"github.com/muhamadhazim/fishit-marketplace/internal/inventory"
	"github.com/muhamadhazim/fishit-marketplace/internal/transactions"
	"github.com/muhamadhazim/fishit-marketplace/internal/users"
	"github.com/muhamadhazim/fishit-marketplace/pkg/config"
	"github.com/muhamadhazim/fishit-marketplace/pkg/db"
	"github.com/muhamadhazim/fishit-marketplace/pkg/instance"
	"github.com/muhamadhazim/fishit-marketplace/pkg/logger"
	"github.com/muhamadhazim/fishit-marketplace/pkg/metrics"
	"github.com/muhamadhazim/fishit-marketplace/pkg/migrate"
	"github.com/muhamadhazim/fishit-marketplace/pkg/redis"
)

const (
	expiryBatchSize   = 200
	verificationGrace = time.Hour
)

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

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	lock, closeLock := cycleLock(ctx, cfg, logg)
	defer closeLock()

	txService, err := transactions.NewService(
		transactions.NewRepository(dbClient.DB()),
		dbClient,
		transactions.NewMachine(inventory.NewAdjuster()),
		metrics.NewPaymentMetrics(prometheus.DefaultRegisterer),
		logg,
	)
	if err != nil {
		logg.Error(ctx, "failed to create transactions service", err)
		os.Exit(1)
	}

	expiry, err := cron.NewTransactionExpiryJob(cron.TransactionExpiryJobParams{
		Logger:       logg,
		Transactions: txService,
		BatchSize:    expiryBatchSize,
	})
	if err != nil {
		logg.Error(ctx, "failed to create expiry job", err)
		os.Exit(1)
	}
	cleanup, err := cron.NewVerificationCleanupJob(cron.VerificationCleanupJobParams{
		Logger:     logg,
		Repository: users.NewRepository(dbClient.DB()),
		Grace:      verificationGrace,
	})
	if err != nil {
		logg.Error(ctx, "failed to create verification cleanup job", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(expiry, cleanup),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
		"interval": cfg.Cron.Interval.String(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

// cycleLock prefers a Redis lock shared by every worker replica. Without Redis
// the worker still runs, guarded only against overlapping cycles in-process.
func cycleLock(ctx context.Context, cfg *config.Config, logg *logger.Logger) (cron.Lock, func()) {
	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Warn(ctx, "redis unavailable, using process-local cron lock")
		return &cron.LocalLock{}, func() {}
	}
	closeFn := func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker", cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		closeFn()
		logg.Error(ctx, "failed to create cron lock", err)
		os.Exit(1)
	}
	return lock, closeFn
}
