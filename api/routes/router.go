package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/muhamadhazim/fishit-marketplace/api/controllers"
	webhookcontrollers "github.com/muhamadhazim/fishit-marketplace/api/controllers/webhooks"
	"github.com/muhamadhazim/fishit-marketplace/api/middleware"
	"github.com/muhamadhazim/fishit-marketplace/internal/auth"
	"github.com/muhamadhazim/fishit-marketplace/internal/catalog"
	"github.com/muhamadhazim/fishit-marketplace/internal/checkout"
	"github.com/muhamadhazim/fishit-marketplace/internal/payouts"
	"github.com/muhamadhazim/fishit-marketplace/internal/transactions"
	ipaymuwebhook "github.com/muhamadhazim/fishit-marketplace/internal/webhooks/ipaymu"
	"github.com/muhamadhazim/fishit-marketplace/pkg/config"
	"github.com/muhamadhazim/fishit-marketplace/pkg/enums"
	"github.com/muhamadhazim/fishit-marketplace/pkg/ipaymu"
	"github.com/muhamadhazim/fishit-marketplace/pkg/logger"
	"github.com/muhamadhazim/fishit-marketplace/pkg/metrics"
	"github.com/muhamadhazim/fishit-marketplace/pkg/ratelimit"
)

// Pinger is a dependency checked by /health/ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Cache backs idempotency replay and the auth attempt counters.
type Cache interface {
	Pinger
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type Limiter interface {
	Allow(tier ratelimit.Tier, key string) (bool, time.Duration)
}

// Gateway is the read-only part of the payment gateway exposed over HTTP.
type Gateway interface {
	Balance(ctx context.Context) (*ipaymu.Balance, error)
	PaymentMethods(ctx context.Context) ([]ipaymu.PaymentMethod, error)
}

type Reconciler interface {
	Handle(ctx context.Context, n ipaymuwebhook.Notification) (*ipaymuwebhook.Result, error)
	Sync(ctx context.Context, transactionID uuid.UUID) (*ipaymuwebhook.Result, error)
}

// Deps carries everything the router mounts. Leave an interface field nil when
// the dependency is not configured; never assign a typed nil pointer.
type Deps struct {
	DB           Pinger
	Cache        Cache
	Limiter      Limiter
	Gatherer     prometheus.Gatherer
	HTTPMetrics  *metrics.HTTPMetrics
	Gateway      Gateway
	Reconciler   Reconciler
	Auth         auth.Service
	Catalog      catalog.Service
	Checkout     checkout.Service
	Transactions transactions.Service
	Payouts      payouts.Service
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()

	tiers := tiersFromConfig(cfg.RateLimit)
	limit := func(tier ratelimit.Tier) func(http.Handler) http.Handler {
		return middleware.RateLimit(deps.Limiter, tier, logg)
	}

	trusted, err := middleware.ParseTrustedProxies(cfg.RateLimit.TrustedProxies)
	if err != nil {
		logg.Error(logg.WithField(context.Background(), "event", "config.trusted_proxies_invalid"), "ignoring trusted proxies", err)
		trusted = nil
	}

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.ClientIP(trusted),
		middleware.CORS(cfg.CORS.AllowedOrigins),
		middleware.Logging(logg, deps.HTTPMetrics),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DB, deps.Cache, logg))
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)
	resendPolicy := middleware.NewAuthRateLimitPolicy(
		"resend",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)
	attempts := func(policy middleware.AuthRateLimitPolicy) func(http.Handler) http.Handler {
		return middleware.AuthRateLimit(policy, deps.Cache, logg)
	}
	idempotent := middleware.Idempotency(deps.Cache, logg)

	requireAuth := middleware.Auth(cfg.JWT, logg)
	sellerOnly := middleware.RequireRole(logg, enums.UserRoleSeller)
	adminOnly := middleware.RequireRole(logg, enums.UserRoleAdmin)
	sellerOrAdmin := middleware.RequireRole(logg, enums.UserRoleSeller, enums.UserRoleAdmin)

	r.Route("/api", func(r chi.Router) {
		// No rate tier: the gateway retries anything but 200.
		r.Post("/transactions/callback", webhookcontrollers.IPaymuCallback(deps.Reconciler, logg))

		r.Group(func(r chi.Router) {
			r.Use(limit(tiers.general))

			r.Route("/auth", func(r chi.Router) {
				r.With(limit(tiers.auth), attempts(registerPolicy)).Post("/register", controllers.AuthRegister(deps.Auth, logg))
				r.With(limit(tiers.auth), attempts(loginPolicy)).Post("/login", controllers.AuthLogin(deps.Auth, logg))
				r.Get("/verify/{token}", controllers.AuthVerify(deps.Auth, logg))
				r.With(limit(tiers.auth), attempts(resendPolicy)).Post("/resend-verification", controllers.AuthResendVerification(deps.Auth, logg))
				r.With(requireAuth).Get("/me", controllers.AuthMe(deps.Auth, logg))
				r.With(requireAuth).Put("/profile", controllers.AuthUpdateProfile(deps.Auth, logg))
			})

			r.Get("/categories", controllers.ListCategories(deps.Catalog, logg))
			r.With(requireAuth, adminOnly).Post("/categories", controllers.CreateCategory(deps.Catalog, logg))

			r.Get("/products", controllers.ListProducts(deps.Catalog, logg))
			r.Get("/products/{productId}", controllers.GetProduct(deps.Catalog, logg))
			r.With(requireAuth, sellerOrAdmin).Post("/products", controllers.CreateProduct(deps.Catalog, logg))
			r.With(requireAuth, sellerOrAdmin).Put("/products/{productId}", controllers.UpdateProduct(deps.Catalog, logg))

			r.With(limit(tiers.transaction), idempotent).Post("/transactions", controllers.Checkout(deps.Checkout, logg))
			r.With(limit(tiers.search)).Get("/transactions/check/{invoice}", controllers.CheckInvoice(deps.Transactions, logg))
			r.With(limit(tiers.search)).Post("/transactions/search", controllers.SearchTransactions(deps.Transactions, logg))
			r.With(limit(tiers.search)).Post("/transactions/check-order", controllers.CheckOrder(deps.Transactions, logg))
			r.Get("/transactions/payment-methods", controllers.PaymentMethods(deps.Gateway, logg))

			r.Route("/seller", func(r chi.Router) {
				r.Use(requireAuth, sellerOnly)
				r.Get("/products", controllers.SellerProducts(deps.Catalog, logg))
				r.Get("/transactions", controllers.SellerTransactions(deps.Transactions, logg))
				r.Patch("/transactions/{id}", controllers.UpdateTransactionStatus(deps.Transactions, logg))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(requireAuth, adminOnly)
				r.Get("/transactions", controllers.AdminTransactions(deps.Transactions, logg))
				r.With(limit(tiers.strict)).Patch("/transactions/{id}", controllers.UpdateTransactionStatus(deps.Transactions, logg))
				r.With(limit(tiers.strict)).Post("/transactions/{id}/sync", controllers.AdminSyncTransaction(deps.Reconciler, logg))
				r.With(limit(tiers.strict)).Patch("/products/{productId}/ban", controllers.AdminBanProduct(deps.Catalog, logg))
				r.Get("/payments/balance", controllers.AdminBalance(deps.Gateway, logg))
			})

			r.Route("/payouts", func(r chi.Router) {
				r.Use(requireAuth)
				r.With(adminOnly).Get("/summary", controllers.PayoutSummary(deps.Payouts, logg))
				r.With(adminOnly, limit(tiers.strict)).Post("/mark-paid", controllers.PayoutMarkPaid(deps.Payouts, logg))
				r.With(adminOnly).Get("/history", controllers.PayoutHistory(deps.Payouts, logg))
				r.With(sellerOnly).Get("/my-payouts", controllers.MyPayouts(deps.Payouts, logg))
			})
		})
	})

	return r
}

type rateTiers struct {
	general     ratelimit.Tier
	strict      ratelimit.Tier
	auth        ratelimit.Tier
	transaction ratelimit.Tier
	search      ratelimit.Tier
}

func tiersFromConfig(cfg config.RateLimitConfig) rateTiers {
	return rateTiers{
		general:     ratelimit.Tier{Name: "general", PerMinute: cfg.General},
		strict:      ratelimit.Tier{Name: "strict", PerMinute: cfg.Strict},
		auth:        ratelimit.Tier{Name: "auth", PerMinute: cfg.Auth},
		transaction: ratelimit.Tier{Name: "transaction", PerMinute: cfg.Transaction},
		search:      ratelimit.Tier{Name: "search", PerMinute: cfg.Search},
	}
}
