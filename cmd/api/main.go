package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/muhamadhazim/fishit-marketplace/api/routes"
	"github.com/muhamadhazim/fishit-marketplace/internal/auth"
	"github.com/muhamadhazim/fishit-marketplace/internal/catalog"
	"github.com/muhamadhazim/fishit-marketplace/internal/checkout"
	"github.com/muhamadhazim/fishit-marketplace/internal/inventory"
	"github.com/muhamadhazim/fishit-marketplace/internal/notifications"
	"github.com/muhamadhazim/fishit-marketplace/internal/payments"
	"github.com/muhamadhazim/fishit-marketplace/internal/payouts"
	"github.com/muhamadhazim/fishit-marketplace/internal/transactions"
	"github.com/muhamadhazim/fishit-marketplace/internal/users"
	ipaymuwebhook "github.com/muhamadhazim/fishit-marketplace/internal/webhooks/ipaymu"
	"github.com/muhamadhazim/fishit-marketplace/pkg/config"
	"github.com/muhamadhazim/fishit-marketplace/pkg/db"
	"github.com/muhamadhazim/fishit-marketplace/pkg/enums"
	"github.com/muhamadhazim/fishit-marketplace/pkg/env"
	"github.com/muhamadhazim/fishit-marketplace/pkg/instance"
	"github.com/muhamadhazim/fishit-marketplace/pkg/ipaymu"
	"github.com/muhamadhazim/fishit-marketplace/pkg/logger"
	"github.com/muhamadhazim/fishit-marketplace/pkg/mailer"
	"github.com/muhamadhazim/fishit-marketplace/pkg/metrics"
	"github.com/muhamadhazim/fishit-marketplace/pkg/migrate"
	"github.com/muhamadhazim/fishit-marketplace/pkg/ratelimit"
	"github.com/muhamadhazim/fishit-marketplace/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	paymentMetrics := metrics.NewPaymentMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	notifier := notifications.New(mailer.New(cfg.Sendgrid, logg), logg, notifications.Options{
		PublicBaseURL: cfg.App.PublicBaseURL,
	})

	var gateway *ipaymu.Client
	if cfg.IPaymu.Enabled() {
		gateway, err = ipaymu.NewClient(cfg.IPaymu)
		if err != nil {
			logg.Error(ctx, "failed to create ipaymu client", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(ctx, "ipaymu credentials missing; gateway checkout disabled")
	}

	selector, err := paymentSelector(ctx, cfg, logg, gateway, paymentMetrics)
	if err != nil {
		logg.Error(ctx, "failed to configure payment flows", err)
		os.Exit(1)
	}

	userRepo := users.NewRepository(dbClient.DB())
	catalogRepo := catalog.NewRepository(dbClient.DB())
	txRepo := transactions.NewRepository(dbClient.DB())
	stock := inventory.NewAdjuster()
	machine := transactions.NewMachine(stock)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		Notifier:       notifier,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Verification:   cfg.Verification,
		Logger:         logg,
	})
	requireService(ctx, logg, "auth", err)

	catalogService, err := catalog.NewService(catalogRepo, dbClient, stock)
	requireService(ctx, logg, "catalog", err)

	checkoutService, err := checkout.NewService(dbClient, catalogRepo, txRepo, stock, selector, notifier, paymentMetrics, logg)
	requireService(ctx, logg, "checkout", err)

	txService, err := transactions.NewService(txRepo, dbClient, machine, paymentMetrics, logg)
	requireService(ctx, logg, "transactions", err)

	payoutService, err := payouts.NewService(dbClient, payouts.NewRepository(dbClient.DB()), userRepo, paymentMetrics, logg)
	requireService(ctx, logg, "payouts", err)

	guard, err := ipaymuwebhook.NewGuard(redisClient, cfg.Payment.CallbackDedupeTTL)
	requireService(ctx, logg, "callback guard", err)

	reconcilerParams := ipaymuwebhook.Params{
		DB:      dbClient,
		Repo:    txRepo,
		Machine: machine,
		Guard:   guard,
		Metrics: paymentMetrics,
		Logger:  logg,
	}
	if gateway != nil {
		reconcilerParams.Gateway = gateway
	}
	reconciler, err := ipaymuwebhook.NewReconciler(reconcilerParams)
	requireService(ctx, logg, "callback reconciler", err)

	limiter := ratelimit.New(cfg.RateLimit.IdleTTL, cfg.RateLimit.Sweep)
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go limiter.Run(janitorCtx)

	deps := routes.Deps{
		DB:           dbClient,
		Cache:        redisClient,
		Limiter:      limiter,
		Gatherer:     registry,
		HTTPMetrics:  httpMetrics,
		Reconciler:   reconciler,
		Auth:         authService,
		Catalog:      catalogService,
		Checkout:     checkoutService,
		Transactions: txService,
		Payouts:      payoutService,
	}
	if gateway != nil {
		deps.Gateway = gateway
	}

	addr := ":" + env.Get("PORT", cfg.App.Port)
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
		"flow":     cfg.Payment.Flow,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
		return
	case <-ctx.Done():
	}

	logg.Info(ctx, "shutdown signal received, draining")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(shutdownCtx, "http server shutdown incomplete", err)
	}
	if err := notifier.Wait(shutdownCtx); err != nil {
		logg.Warn(shutdownCtx, "pending emails abandoned at shutdown")
	}
	stopJanitor()

	logg.Info(shutdownCtx, "api server stopped")
}

// paymentSelector registers the configured flows. A gateway default without
// credentials degrades to manual transfer so checkout stays available.
func paymentSelector(ctx context.Context, cfg *config.Config, logg *logger.Logger, gateway *ipaymu.Client, m *metrics.PaymentMetrics) (*payments.Selector, error) {
	strategies := []payments.Strategy{payments.NewManualTransfer(cfg.Payment.ManualTransferTimeout)}
	if gateway != nil {
		strategies = append(strategies, payments.NewGatewayRedirect(gateway, cfg.Payment.GatewayTimeout, m))
	}

	fallback, err := enums.ParsePaymentFlow(cfg.Payment.Flow)
	if err != nil {
		return nil, err
	}
	if fallback == enums.PaymentFlowGatewayRedirect && gateway == nil {
		logg.Warn(ctx, "default payment flow falls back to manual transfer")
		fallback = enums.PaymentFlowManualTransfer
	}
	return payments.NewSelector(fallback, strategies...)
}

func requireService(ctx context.Context, logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "failed to create "+name+" service", err)
	os.Exit(1)
}
