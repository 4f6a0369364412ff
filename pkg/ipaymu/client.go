package ipaymu

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/muhamadhazim/fishit-marketplace/pkg/config"
	pkgerrors "github.com/muhamadhazim/fishit-marketplace/pkg/errors"
)

const (
	defaultBaseURL             = "https://sandbox.ipaymu.com"
	paymentPath                = "/api/v2/payment"
	transactionPath            = "/api/v2/transaction"
	balancePath                = "/api/v2/balance"
	paymentMethodsPath         = "/api/v2/payment-method-list"
	timestampLayout            = "20060102150405"
	responseBodyReadLimit int64 = 1024
)

var errCredentialsRequired = errors.New("ipaymu va and api key are required")

// Client calls the iPaymu v2 redirect-payment API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	va         string
	apiKey     string
	returnURL  string
	cancelURL  string
	notifyURL  string
	expiry     int
	now        func() time.Time
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithClock overrides the timestamp source used in signed headers.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient builds the iPaymu client from config.
func NewClient(cfg config.IPaymuConfig, opts ...Option) (*Client, error) {
	if !cfg.Enabled() {
		return nil, errCredentialsRequired
	}

	client := &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		va:         strings.TrimSpace(cfg.VA),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		returnURL:  cfg.ReturnURL,
		cancelURL:  cfg.CancelURL,
		notifyURL:  cfg.NotifyURL,
		expiry:     cfg.ExpiryHours,
		now:        time.Now,
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	if client.expiry <= 0 {
		client.expiry = 24
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// LineItem is one product row shown on the hosted payment page.
type LineItem struct {
	Name     string
	Price    int64
	Quantity int
}

// PaymentRequest describes a redirect payment for a whole cart.
type PaymentRequest struct {
	ReferenceID string
	Items       []LineItem
	Amount      int64
	BuyerName   string
	BuyerEmail  string
	BuyerPhone  string
}

// PaymentSession is what the gateway hands back for a created payment.
type PaymentSession struct {
	SessionID     string
	TransactionID string
	PaymentURL    string
}

// TransactionStatus is the gateway view of a single payment.
type TransactionStatus struct {
	TransactionID string
	SessionID     string
	ReferenceID   string
	StatusCode    string
	StatusDesc    string
	Amount        decimal.Decimal
	Fee           decimal.Decimal
	Via           string
	Channel       string
	PaidAt        *time.Time
}

// Balance is the merchant balance held at the gateway.
type Balance struct {
	VA              string
	MerchantBalance decimal.Decimal
	MemberBalance   decimal.Decimal
}

// PaymentMethod is one channel group offered by the gateway.
type PaymentMethod struct {
	Code     string   `json:"code"`
	Name     string   `json:"name"`
	Channels []string `json:"channels"`
}

type envelope struct {
	Status  int             `json:"Status"`
	Success *bool           `json:"Success"`
	Message string          `json:"Message"`
	Data    json.RawMessage `json:"Data"`
}

// CreatePayment opens a hosted payment page covering every item in the cart.
func (c *Client) CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentSession, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ipaymu client not configured")
	}
	if len(req.Items) == 0 || req.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment requires items and a positive amount")
	}

	names := make([]string, 0, len(req.Items))
	qtys := make([]int, 0, len(req.Items))
	prices := make([]int64, 0, len(req.Items))
	for _, item := range req.Items {
		names = append(names, item.Name)
		qtys = append(qtys, item.Quantity)
		prices = append(prices, item.Price)
	}

	payload := map[string]any{
		"product":     names,
		"qty":         qtys,
		"price":       prices,
		"amount":      req.Amount,
		"returnUrl":   c.returnURL,
		"cancelUrl":   c.cancelURL,
		"notifyUrl":   c.notifyURL,
		"referenceId": req.ReferenceID,
		"buyerName":   req.BuyerName,
		"buyerEmail":  req.BuyerEmail,
		"buyerPhone":  req.BuyerPhone,
		"expired":     c.expiry,
		"expiredType": "hours",
	}

	var data struct {
		SessionID     string `json:"SessionID"`
		TransactionID any    `json:"TransactionId"`
		URL           string `json:"Url"`
	}
	if err := c.post(ctx, paymentPath, payload, &data); err != nil {
		return nil, err
	}
	if data.URL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "gateway returned no payment url")
	}

	return &PaymentSession{
		SessionID:     data.SessionID,
		TransactionID: stringify(data.TransactionID),
		PaymentURL:    data.URL,
	}, nil
}

// CheckTransaction fetches the current gateway status of a payment.
func (c *Client) CheckTransaction(ctx context.Context, transactionID string) (*TransactionStatus, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ipaymu client not configured")
	}
	trimmed := strings.TrimSpace(transactionID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}

	var data struct {
		TransactionID any             `json:"TransactionId"`
		SessionID     string          `json:"SessionId"`
		ReferenceID   string          `json:"ReferenceId"`
		Status        any             `json:"Status"`
		StatusDesc    string          `json:"StatusDesc"`
		Amount        decimal.Decimal `json:"Amount"`
		Fee           decimal.Decimal `json:"Fee"`
		Via           string          `json:"PaymentChannel"`
		Channel       string          `json:"PaymentCode"`
		SuccessDate   string          `json:"SuccessDate"`
	}
	if err := c.post(ctx, transactionPath, map[string]any{"transactionId": trimmed}, &data); err != nil {
		return nil, err
	}

	status := &TransactionStatus{
		TransactionID: stringify(data.TransactionID),
		SessionID:     data.SessionID,
		ReferenceID:   data.ReferenceID,
		StatusCode:    stringify(data.Status),
		StatusDesc:    data.StatusDesc,
		Amount:        data.Amount,
		Fee:           data.Fee,
		Via:           data.Via,
		Channel:       data.Channel,
	}
	if status.TransactionID == "" {
		status.TransactionID = trimmed
	}
	if paidAt, err := time.ParseInLocation("2006-01-02 15:04:05", data.SuccessDate, jakarta); err == nil {
		status.PaidAt = &paidAt
	}
	return status, nil
}

// Balance returns the merchant balance for the configured VA.
func (c *Client) Balance(ctx context.Context) (*Balance, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ipaymu client not configured")
	}
	var data struct {
		VA              string          `json:"Va"`
		MerchantBalance decimal.Decimal `json:"MerchantBalance"`
		MemberBalance   decimal.Decimal `json:"MemberBalance"`
	}
	if err := c.post(ctx, balancePath, map[string]any{"account": c.va}, &data); err != nil {
		return nil, err
	}
	return &Balance{VA: data.VA, MerchantBalance: data.MerchantBalance, MemberBalance: data.MemberBalance}, nil
}

// PaymentMethods lists the channels the merchant account can accept.
func (c *Client) PaymentMethods(ctx context.Context) ([]PaymentMethod, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ipaymu client not configured")
	}
	var data []struct {
		Code     string `json:"Code"`
		Name     string `json:"Name"`
		Channels []struct {
			Code string `json:"Code"`
		} `json:"Channels"`
	}
	if err := c.post(ctx, paymentMethodsPath, map[string]any{}, &data); err != nil {
		return nil, err
	}
	methods := make([]PaymentMethod, 0, len(data))
	for _, m := range data {
		channels := make([]string, 0, len(m.Channels))
		for _, ch := range m.Channels {
			channels = append(channels, ch.Code)
		}
		methods = append(methods, PaymentMethod{Code: m.Code, Name: m.Name, Channels: channels})
	}
	return methods, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "marshal gateway request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "build gateway request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("va", c.va)
	httpReq.Header.Set("signature", Sign(http.MethodPost, c.va, c.apiKey, body))
	httpReq.Header.Set("timestamp", c.now().Format(timestampLayout))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "execute gateway request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeGateway, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "gateway request failed")
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "decode gateway response")
	}
	if env.Status != http.StatusOK || (env.Success != nil && !*env.Success) {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, fmt.Errorf("gateway status %d: %s", env.Status, env.Message), "gateway rejected request")
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "decode gateway data")
	}
	return nil
}

// Sign computes the request signature iPaymu expects in the signature header.
func Sign(method, va, apiKey string, body []byte) string {
	digest := sha256.Sum256(body)
	stringToSign := strings.ToUpper(method) + ":" + va + ":" + strings.ToLower(hex.EncodeToString(digest[:])) + ":" + apiKey
	mac := hmac.New(sha256.New, []byte(apiKey))
	mac.Write([]byte(stringToSign))
	return hex.EncodeToString(mac.Sum(nil))
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return decimal.NewFromFloat(t).String()
	default:
		return fmt.Sprint(t)
	}
}

var jakarta = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		return time.FixedZone("WIB", 7*60*60)
	}
	return loc
}()
