package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/muhamadhazim/fishit-marketplace/internal/checkout/helpers"
	"github.com/muhamadhazim/fishit-marketplace/internal/inventory"
	"github.com/muhamadhazim/fishit-marketplace/internal/notifications"
	"github.com/muhamadhazim/fishit-marketplace/internal/payments"
	"github.com/muhamadhazim/fishit-marketplace/internal/transactions"
	"github.com/muhamadhazim/fishit-marketplace/pkg/db/models"
	"github.com/muhamadhazim/fishit-marketplace/pkg/enums"
	pkgerrors "github.com/muhamadhazim/fishit-marketplace/pkg/errors"
	"github.com/muhamadhazim/fishit-marketplace/pkg/ipaymu"
	"github.com/muhamadhazim/fishit-marketplace/pkg/logger"
	"github.com/muhamadhazim/fishit-marketplace/pkg/metrics"
)

const invoiceAttempts = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	DB() *gorm.DB
}

type productLoader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type stockReserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error
	Restore(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error
}

type invoiceNotifier interface {
	SendInvoice(ctx context.Context, invoice notifications.Invoice)
}

// Service turns a cart into per-seller transactions and a payment request.
type Service interface {
	Checkout(ctx context.Context, input Input) (*Result, error)
}

// Input is a buyer's cart submission.
type Input struct {
	Items          []helpers.CartLine
	Email          string
	RobloxUsername string
	Flow           enums.PaymentFlow
}

// Result is the created transactions and how to pay for them.
type Result struct {
	Flow            enums.PaymentFlow             `json:"payment_flow"`
	Reference       string                        `json:"reference"`
	PaymentURL      *string                       `json:"payment_url,omitempty"`
	PaymentDeadline time.Time                     `json:"payment_deadline"`
	TotalAmount     int64                         `json:"total_amount"`
	Transactions    []transactions.TransactionDTO `json:"transactions"`
}

type service struct {
	db         txRunner
	products   productLoader
	txRepo     *transactions.Repository
	stock      stockReserver
	strategies *payments.Selector
	notifier   invoiceNotifier
	metrics    *metrics.PaymentMetrics
	logg       *logger.Logger
	now        func() time.Time
}

// NewService builds the checkout service.
func NewService(
	db txRunner,
	products productLoader,
	txRepo *transactions.Repository,
	stock stockReserver,
	strategies *payments.Selector,
	notifier invoiceNotifier,
	m *metrics.PaymentMetrics,
	logg *logger.Logger,
) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if txRepo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if strategies == nil {
		return nil, fmt.Errorf("payment strategies required")
	}
	if stock == nil {
		stock = inventory.NewAdjuster()
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		db:         db,
		products:   products,
		txRepo:     txRepo,
		stock:      stock,
		strategies: strategies,
		notifier:   notifier,
		metrics:    m,
		logg:       logg,
		now:        time.Now,
	}, nil
}

func (s *service) Checkout(ctx context.Context, input Input) (*Result, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	lines, err := helpers.MergeLines(input.Items)
	if err != nil {
		return nil, err
	}
	strategy, ok := s.strategies.For(input.Flow)
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unsupported payment flow %q", input.Flow)
	}
	flow := string(strategy.Flow())

	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart products")
	}
	if err := helpers.ValidateAvailability(lines, products); err != nil {
		s.metrics.IncCheckout(flow, "rejected")
		return nil, err
	}

	var username *string
	if trimmed := strings.TrimSpace(input.RobloxUsername); trimmed != "" {
		username = &trimmed
	}
	if username == nil && helpers.RequiresUsername(lines, products) {
		s.metrics.IncCheckout(flow, "rejected")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Roblox username is required")
	}

	groups, cartTotal := helpers.GroupBySeller(lines, products)
	base, err := s.reserveInvoice(ctx)
	if err != nil {
		return nil, err
	}

	txns := make([]*models.Transaction, 0, len(groups))
	var amount int64
	for i, group := range groups {
		code, err := strategy.UniqueCode()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate unique code")
		}
		total := group.Subtotal + int64(code)
		amount += total
		txns = append(txns, &models.Transaction{
			InvoiceNumber:  groupInvoice(base, i, len(groups)),
			Email:          email,
			RobloxUsername: username,
			Items:          group.Items,
			SellerID:       group.SellerID,
			OriginalAmount: group.Subtotal,
			UniqueCode:     code,
			TotalTransfer:  total,
			PaymentFlow:    strategy.Flow(),
			Status:         enums.TransactionStatusPending,
			PayoutStatus:   enums.PayoutStatusUnpaid,
		})
	}

	stockLines := make([]inventory.Line, 0, len(lines))
	for _, line := range lines {
		stockLines = append(stockLines, inventory.Line{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	if err := s.stock.Reserve(ctx, s.db.DB(), stockLines); err != nil {
		s.metrics.IncCheckout(flow, "rejected")
		return nil, err
	}

	session, err := strategy.Initiate(ctx, payments.Request{
		ReferenceID: base,
		BuyerEmail:  email,
		BuyerName:   buyerName(username, email),
		Items:       gatewayItems(txns),
		Amount:      amount,
	})
	if err != nil {
		s.restore(ctx, base, stockLines, err)
		s.metrics.IncCheckout(flow, "gateway_error")
		return nil, err
	}

	for _, txn := range txns {
		txn.GatewaySessionID = session.SessionID
		txn.GatewayTransactionID = session.TransactionID
		txn.PaymentURL = session.PaymentURL
		txn.PaymentDeadline = session.Deadline
	}
	if err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		return s.txRepo.WithTx(tx).CreateAll(ctx, txns)
	}); err != nil {
		s.restore(ctx, base, stockLines, err)
		s.metrics.IncCheckout(flow, "error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist transactions")
	}

	s.metrics.IncCheckout(flow, "ok")
	logCtx := s.logg.WithInvoice(ctx, base)
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"event":        "checkout.completed",
		"payment_flow": flow,
		"sellers":      len(groups),
		"cart_total":   cartTotal,
		"amount_due":   amount,
	})
	s.logg.Info(logCtx, "checkout completed")

	if s.notifier != nil {
		s.notifier.SendInvoice(ctx, invoiceFor(email, base, txns, amount, session))
	}

	result := &Result{
		Flow:            strategy.Flow(),
		Reference:       base,
		PaymentURL:      session.PaymentURL,
		PaymentDeadline: session.Deadline,
		TotalAmount:     amount,
		Transactions:    make([]transactions.TransactionDTO, 0, len(txns)),
	}
	for _, txn := range txns {
		result.Transactions = append(result.Transactions, *transactions.FromModel(txn))
	}
	return result, nil
}

// reserveInvoice picks a base invoice number no existing transaction uses.
func (s *service) reserveInvoice(ctx context.Context) (string, error) {
	for attempt := 0; attempt < invoiceAttempts; attempt++ {
		base, err := baseInvoice(s.now())
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate invoice number")
		}
		taken, err := s.txRepo.InvoicePrefixTaken(ctx, base)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check invoice number")
		}
		if !taken {
			return base, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeInternal, "could not allocate an invoice number")
}

// restore hands reserved stock back after a later step failed. A failure here
// is logged; the caller still returns the original error.
func (s *service) restore(ctx context.Context, base string, lines []inventory.Line, cause error) {
	ctx = context.WithoutCancel(ctx)
	if err := s.stock.Restore(ctx, s.db.DB(), lines); err != nil {
		logCtx := s.logg.WithInvoice(ctx, base)
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"event": "checkout.restore_failed",
			"cause": cause.Error(),
		})
		s.logg.Error(logCtx, "failed to restore reserved stock", err)
	}
}

func buyerName(username *string, email string) string {
	if username != nil {
		return *username
	}
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}

// gatewayItems lists every line of the cart, plus one line per non-zero unique code.
func gatewayItems(txns []*models.Transaction) []ipaymu.LineItem {
	var items []ipaymu.LineItem
	for _, txn := range txns {
		for _, it := range txn.Items {
			items = append(items, ipaymu.LineItem{Name: it.Name, Price: it.Price, Quantity: it.Quantity})
		}
		if txn.UniqueCode > 0 {
			items = append(items, ipaymu.LineItem{Name: "Unique code " + txn.InvoiceNumber, Price: int64(txn.UniqueCode), Quantity: 1})
		}
	}
	return items
}

func invoiceFor(email, base string, txns []*models.Transaction, amount int64, session *payments.Session) notifications.Invoice {
	inv := notifications.Invoice{
		To:         email,
		Reference:  base,
		Total:      amount,
		PaymentURL: session.PaymentURL,
		Deadline:   session.Deadline,
	}
	for _, txn := range txns {
		line := notifications.InvoiceLine{
			InvoiceNumber: txn.InvoiceNumber,
			UniqueCode:    txn.UniqueCode,
			TotalTransfer: txn.TotalTransfer,
		}
		for _, it := range txn.Items {
			line.Items = append(line.Items, notifications.InvoiceItem{Name: it.Name, Quantity: it.Quantity, Subtotal: it.Subtotal})
		}
		inv.Lines = append(inv.Lines, line)
	}
	return inv
}
