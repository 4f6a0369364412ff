package routes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muhamadhazim/fishit-marketplace/internal/checkout"
	"github.com/muhamadhazim/fishit-marketplace/internal/transactions"
	ipaymuwebhook "github.com/muhamadhazim/fishit-marketplace/internal/webhooks/ipaymu"
	pkgAuth "github.com/muhamadhazim/fishit-marketplace/pkg/auth"
	"github.com/muhamadhazim/fishit-marketplace/pkg/config"
	"github.com/muhamadhazim/fishit-marketplace/pkg/enums"
	"github.com/muhamadhazim/fishit-marketplace/pkg/logger"
	"github.com/muhamadhazim/fishit-marketplace/pkg/metrics"
	"github.com/muhamadhazim/fishit-marketplace/pkg/pagination"
	"github.com/muhamadhazim/fishit-marketplace/pkg/ratelimit"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type memoryCache struct {
	stubPinger
	mu     sync.Mutex
	data   map[string]string
	counts map[string]int64
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string]string{}, counts: map[string]int64{}}
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", goredis.Nil
}

func (m *memoryCache) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryCache) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryCache) IdempotencyKey(scope, id string) string {
	return "test:idempotency:" + scope + ":" + id
}

func (m *memoryCache) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], nil
}

type stubCheckout struct {
	mu    sync.Mutex
	calls int
}

func (s *stubCheckout) Checkout(ctx context.Context, input checkout.Input) (*checkout.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return &checkout.Result{
		Flow:        enums.PaymentFlowManualTransfer,
		Reference:   fmt.Sprintf("INV-TEST-%d", s.calls),
		TotalAmount: 10123,
	}, nil
}

type stubTransactions struct{}

func (stubTransactions) Transition(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID, to enums.TransactionStatus) (*transactions.TransactionDTO, error) {
	return &transactions.TransactionDTO{ID: id, Status: to}, nil
}

func (stubTransactions) GetByInvoice(ctx context.Context, invoice string) (*transactions.OrderStatusDTO, error) {
	return &transactions.OrderStatusDTO{InvoiceNumber: invoice, Status: enums.TransactionStatusPending}, nil
}

func (stubTransactions) Search(ctx context.Context, query string) ([]transactions.OrderStatusDTO, error) {
	return []transactions.OrderStatusDTO{}, nil
}

func (stubTransactions) CheckOrder(ctx context.Context, invoice, email string) (*transactions.OrderStatusDTO, error) {
	return &transactions.OrderStatusDTO{InvoiceNumber: invoice}, nil
}

func (stubTransactions) ListAll(ctx context.Context, actor pkgAuth.Actor, input transactions.ListInput) (*pagination.Page[transactions.TransactionDTO], error) {
	return &pagination.Page[transactions.TransactionDTO]{Items: []transactions.TransactionDTO{}}, nil
}

func (stubTransactions) ListForSeller(ctx context.Context, actor pkgAuth.Actor, input transactions.ListInput) (*pagination.Page[transactions.TransactionDTO], error) {
	return &pagination.Page[transactions.TransactionDTO]{Items: []transactions.TransactionDTO{}}, nil
}

func (stubTransactions) ExpireOverdue(ctx context.Context, now time.Time, limit int) (int, error) {
	return 0, nil
}

type failingReconciler struct{}

func (failingReconciler) Handle(ctx context.Context, n ipaymuwebhook.Notification) (*ipaymuwebhook.Result, error) {
	return nil, errors.New("database is down")
}

func (failingReconciler) Sync(ctx context.Context, id uuid.UUID) (*ipaymuwebhook.Result, error) {
	return nil, errors.New("database is down")
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "fishit-test", ExpirationMinutes: 60},
		RateLimit: config.RateLimitConfig{
			General:     1000,
			Strict:      100,
			Auth:        100,
			Transaction: 100,
			Search:      2,
		},
		CORS: config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
	}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func newTestRouter(cfg *config.Config, mutate func(*Deps)) http.Handler {
	reg := prometheus.NewRegistry()
	deps := Deps{
		DB:           stubPinger{},
		Cache:        newMemoryCache(),
		Limiter:      ratelimit.New(time.Minute, time.Minute),
		Gatherer:     reg,
		HTTPMetrics:  metrics.NewHTTPMetrics(reg),
		Checkout:     &stubCheckout{},
		Transactions: stubTransactions{},
	}
	if mutate != nil {
		mutate(&deps)
	}
	return NewRouter(cfg, testLogger(), deps)
}

func buildToken(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID:   uuid.New(),
		Username: "tester",
		Email:    "tester@example.com",
		Role:     role,
	})
	require.NoError(t, err)
	return token
}

func do(router http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "203.0.113.7:5000"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(testConfig(), nil)

	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/health/live", "", nil).Code)

	ready := do(router, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, ready.Code)
	assert.Contains(t, ready.Body.String(), `"database":"up"`)
	assert.Contains(t, ready.Body.String(), `"redis":"up"`)
}

func TestHealthReadyReportsDownDependency(t *testing.T) {
	router := newTestRouter(testConfig(), func(d *Deps) {
		d.DB = stubPinger{err: errors.New("connection refused")}
		d.Cache = nil
	})

	resp := do(router, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestMetricsEndpointExposesRequestHistogram(t *testing.T) {
	router := newTestRouter(testConfig(), nil)
	do(router, http.MethodGet, "/health/live", "", nil)

	resp := do(router, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "fishit_http_")
}

func TestSellerRoutesRequireJWT(t *testing.T) {
	router := newTestRouter(testConfig(), nil)
	resp := do(router, http.MethodGet, "/api/seller/transactions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, nil)

	seller := do(router, http.MethodGet, "/api/admin/transactions", "", map[string]string{
		"Authorization": "Bearer " + buildToken(t, cfg, enums.UserRoleSeller),
	})
	assert.Equal(t, http.StatusForbidden, seller.Code)

	admin := do(router, http.MethodGet, "/api/admin/transactions", "", map[string]string{
		"Authorization": "Bearer " + buildToken(t, cfg, enums.UserRoleAdmin),
	})
	assert.Equal(t, http.StatusOK, admin.Code)
}

func TestMyPayoutsIsSellerOnly(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, nil)

	resp := do(router, http.MethodGet, "/api/payouts/my-payouts", "", map[string]string{
		"Authorization": "Bearer " + buildToken(t, cfg, enums.UserRoleAdmin),
	})
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestCallbackAlwaysAcknowledges(t *testing.T) {
	cases := map[string]func(*Deps){
		"no reconciler":      func(d *Deps) { d.Reconciler = nil },
		"reconciler failure": func(d *Deps) { d.Reconciler = failingReconciler{} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			router := newTestRouter(testConfig(), mutate)
			resp := do(router, http.MethodPost, "/api/transactions/callback", "trx_id=9001&status=berhasil&status_code=1", map[string]string{
				"Content-Type": "application/x-www-form-urlencoded",
			})
			assert.Equal(t, http.StatusOK, resp.Code)
			assert.Contains(t, resp.Body.String(), `"outcome":"error"`)
		})
	}
}

func TestCallbackIsNeverThrottled(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.General = 2
	router := newTestRouter(cfg, func(d *Deps) { d.Reconciler = failingReconciler{} })

	headers := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
	for i := 0; i < 5; i++ {
		resp := do(router, http.MethodPost, "/api/transactions/callback", fmt.Sprintf("trx_id=%d&status=berhasil&status_code=1", 9000+i), headers)
		require.Equal(t, http.StatusOK, resp.Code, "callback %d", i)
	}

	// The general tier still applies to the rest of the api.
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = do(router, http.MethodGet, "/api/categories", "", nil)
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
}

func TestSearchTierThrottles(t *testing.T) {
	router := newTestRouter(testConfig(), nil)

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = do(router, http.MethodGet, "/api/transactions/check/INV-20240101-ABC", "", nil)
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
}

func TestSearchTierIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.TrustedProxies = []string{"10.0.0.0/8"}
	router := newTestRouter(cfg, nil)

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = do(router, http.MethodGet, "/api/transactions/check/INV-20240101-ABC", "", map[string]string{
			"X-Forwarded-For": fmt.Sprintf("198.51.100.%d", i),
		})
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
}

func TestCheckoutReplaysIdempotentRequest(t *testing.T) {
	stub := &stubCheckout{}
	router := newTestRouter(testConfig(), func(d *Deps) { d.Checkout = stub })

	body := fmt.Sprintf(`{"items":[{"id":"%s","quantity":1}],"email":"buyer@example.com","roblox_username":"angler"}`, uuid.New())
	headers := map[string]string{"Content-Type": "application/json", "Idempotency-Key": "checkout-1"}

	first := do(router, http.MethodPost, "/api/transactions", body, headers)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	second := do(router, http.MethodPost, "/api/transactions", body, headers)
	require.Equal(t, http.StatusCreated, second.Code)

	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
}
