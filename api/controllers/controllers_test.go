package controllers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muhamadhazim/fishit-marketplace/api/middleware"
	"github.com/muhamadhazim/fishit-marketplace/internal/catalog"
	"github.com/muhamadhazim/fishit-marketplace/internal/checkout"
	"github.com/muhamadhazim/fishit-marketplace/internal/payouts"
	"github.com/muhamadhazim/fishit-marketplace/internal/transactions"
	pkgauth "github.com/muhamadhazim/fishit-marketplace/pkg/auth"
	"github.com/muhamadhazim/fishit-marketplace/pkg/enums"
	pkgerrors "github.com/muhamadhazim/fishit-marketplace/pkg/errors"
	"github.com/muhamadhazim/fishit-marketplace/pkg/ipaymu"
	"github.com/muhamadhazim/fishit-marketplace/pkg/logger"
	"github.com/muhamadhazim/fishit-marketplace/pkg/pagination"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func withActor(req *http.Request, role enums.UserRole) (*http.Request, pkgauth.Actor) {
	actor := pkgauth.Actor{UserID: uuid.New(), Role: role}
	return req.WithContext(middleware.WithActor(req.Context(), actor)), actor
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rc := chi.RouteContext(req.Context())
	if rc == nil {
		rc = chi.NewRouteContext()
	}
	rc.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

type captureCheckout struct {
	input checkout.Input
	err   error
}

func (c *captureCheckout) Checkout(ctx context.Context, input checkout.Input) (*checkout.Result, error) {
	c.input = input
	if c.err != nil {
		return nil, c.err
	}
	return &checkout.Result{Flow: enums.PaymentFlowManualTransfer, Reference: "INV-1", TotalAmount: 20123}, nil
}

func TestCheckoutParsesCart(t *testing.T) {
	svc := &captureCheckout{}
	productID := uuid.New()
	body := `{"items":[{"id":"` + productID.String() + `","quantity":2}],"email":"Buyer@Example.com","roblox_username":"  angler  ","payment_flow":"manual_transfer"}`
	req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(body))
	resp := httptest.NewRecorder()

	Checkout(svc, testLogger()).ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	require.Len(t, svc.input.Items, 1)
	assert.Equal(t, productID, svc.input.Items[0].ProductID)
	assert.Equal(t, 2, svc.input.Items[0].Quantity)
	assert.Equal(t, "angler", svc.input.RobloxUsername)
	assert.Equal(t, enums.PaymentFlowManualTransfer, svc.input.Flow)
}

func TestCheckoutRejectsBadPayloads(t *testing.T) {
	cases := map[string]string{
		"empty cart":    `{"items":[],"email":"a@b.co"}`,
		"bad email":     `{"items":[{"id":"` + uuid.NewString() + `","quantity":1}],"email":"nope"}`,
		"zero quantity": `{"items":[{"id":"` + uuid.NewString() + `","quantity":0}],"email":"a@b.co"}`,
		"bad flow":      `{"items":[{"id":"` + uuid.NewString() + `","quantity":1}],"email":"a@b.co","payment_flow":"cash"}`,
		"unknown field": `{"items":[{"id":"` + uuid.NewString() + `","quantity":1}],"email":"a@b.co","coupon":"X"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &captureCheckout{}
			req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(body))
			resp := httptest.NewRecorder()
			Checkout(svc, testLogger()).ServeHTTP(resp, req)
			assert.Equal(t, http.StatusBadRequest, resp.Code)
			assert.Nil(t, svc.input.Items)
		})
	}
}

func TestCheckoutMapsStockErrors(t *testing.T) {
	svc := &captureCheckout{err: pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock for Golden Rod")}
	body := `{"items":[{"id":"` + uuid.NewString() + `","quantity":9}],"email":"a@b.co"}`
	resp := httptest.NewRecorder()
	Checkout(svc, testLogger()).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "Golden Rod")
}

type stubPayouts struct {
	marked payouts.MarkPaidInput
}

func (s *stubPayouts) Summary(ctx context.Context, actor pkgauth.Actor) ([]payouts.SellerSummary, error) {
	return []payouts.SellerSummary{}, nil
}

func (s *stubPayouts) MarkPaid(ctx context.Context, actor pkgauth.Actor, input payouts.MarkPaidInput) (*payouts.PayoutDTO, error) {
	s.marked = input
	return &payouts.PayoutDTO{SellerID: input.SellerID}, nil
}

func (s *stubPayouts) History(ctx context.Context, actor pkgauth.Actor, input payouts.ListInput) (*pagination.Page[payouts.PayoutDTO], error) {
	return &pagination.Page[payouts.PayoutDTO]{Items: []payouts.PayoutDTO{}}, nil
}

func (s *stubPayouts) ForSeller(ctx context.Context, actor pkgauth.Actor, input payouts.ListInput) (*pagination.Page[payouts.PayoutDTO], error) {
	return &pagination.Page[payouts.PayoutDTO]{Items: []payouts.PayoutDTO{}}, nil
}

func TestPayoutMarkPaid(t *testing.T) {
	svc := &stubPayouts{}
	sellerID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/payouts/mark-paid", strings.NewReader(`{"seller_id":"`+sellerID.String()+`","note":"BCA 12/10"}`))
	req, _ = withActor(req, enums.UserRoleAdmin)
	resp := httptest.NewRecorder()
	PayoutMarkPaid(svc, testLogger()).ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Equal(t, sellerID, svc.marked.SellerID)
	require.NotNil(t, svc.marked.Note)
	assert.Equal(t, "BCA 12/10", *svc.marked.Note)
}

func TestPayoutHandlersRequireActor(t *testing.T) {
	resp := httptest.NewRecorder()
	PayoutSummary(&stubPayouts{}, testLogger()).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/payouts/summary", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestListPayoutsRejectsBadLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/payouts/history?limit=500", nil)
	req, _ = withActor(req, enums.UserRoleAdmin)
	resp := httptest.NewRecorder()
	PayoutHistory(&stubPayouts{}, testLogger()).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

type stubTransitions struct {
	transactions.Service
	to enums.TransactionStatus
}

func (s *stubTransitions) Transition(ctx context.Context, actor pkgauth.Actor, id uuid.UUID, to enums.TransactionStatus) (*transactions.TransactionDTO, error) {
	s.to = to
	return &transactions.TransactionDTO{ID: id, Status: to}, nil
}

func TestUpdateTransactionStatus(t *testing.T) {
	cases := []struct {
		name string
		id   string
		body string
		want int
	}{
		{"bad id", "not-a-uuid", `{"status":"Processing"}`, http.StatusBadRequest},
		{"unknown status", uuid.NewString(), `{"status":"Shipped"}`, http.StatusBadRequest},
		{"missing status", uuid.NewString(), `{}`, http.StatusBadRequest},
		{"ok", uuid.NewString(), `{"status":"Processing"}`, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubTransitions{}
			req := httptest.NewRequest(http.MethodPatch, "/api/seller/transactions/"+tc.id, strings.NewReader(tc.body))
			req, _ = withActor(req, enums.UserRoleSeller)
			req = withURLParam(req, "id", tc.id)
			resp := httptest.NewRecorder()
			UpdateTransactionStatus(svc, testLogger()).ServeHTTP(resp, req)
			assert.Equal(t, tc.want, resp.Code, resp.Body.String())
			if tc.want == http.StatusOK {
				assert.Equal(t, enums.TransactionStatusProcessing, svc.to)
			}
		})
	}
}

type stubGateway struct{}

func (stubGateway) Balance(ctx context.Context) (*ipaymu.Balance, error) {
	return &ipaymu.Balance{VA: "0000001", MerchantBalance: decimal.NewFromInt(150000), MemberBalance: decimal.RequireFromString("12.5")}, nil
}

func (stubGateway) PaymentMethods(ctx context.Context) ([]ipaymu.PaymentMethod, error) {
	return []ipaymu.PaymentMethod{{Code: "va", Name: "Virtual Account", Channels: []string{"bca"}}}, nil
}

func TestAdminBalance(t *testing.T) {
	resp := httptest.NewRecorder()
	AdminBalance(stubGateway{}, testLogger()).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/admin/payments/balance", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"merchant_balance":"150000.00"`)
	assert.Contains(t, resp.Body.String(), `"member_balance":"12.50"`)
}

func TestPaymentMethodsWithoutGateway(t *testing.T) {
	resp := httptest.NewRecorder()
	PaymentMethods(nil, testLogger()).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/transactions/payment-methods", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"data":[]}`, resp.Body.String())
}

type stubCatalog struct {
	catalog.Service
}

func TestGetProductRejectsInvalidID(t *testing.T) {
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/products/abc", nil), "productId", "abc")
	resp := httptest.NewRecorder()
	GetProduct(stubCatalog{}, testLogger()).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSellerProductsRequiresActor(t *testing.T) {
	resp := httptest.NewRecorder()
	SellerProducts(stubCatalog{}, testLogger()).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/seller/products", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}
