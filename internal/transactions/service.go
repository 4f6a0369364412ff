package transactions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	pkgauth "github.com/muhamadhazim/fishit-marketplace/pkg/auth"
	"github.com/muhamadhazim/fishit-marketplace/pkg/db"
	"github.com/muhamadhazim/fishit-marketplace/pkg/db/models"
	"github.com/muhamadhazim/fishit-marketplace/pkg/enums"
	pkgerrors "github.com/muhamadhazim/fishit-marketplace/pkg/errors"
	"github.com/muhamadhazim/fishit-marketplace/pkg/logger"
	"github.com/muhamadhazim/fishit-marketplace/pkg/metrics"
	"github.com/muhamadhazim/fishit-marketplace/pkg/pagination"
)

// Service drives the transaction lifecycle and buyer lookups.
type Service interface {
	Transition(ctx context.Context, actor pkgauth.Actor, id uuid.UUID, to enums.TransactionStatus) (*TransactionDTO, error)
	GetByInvoice(ctx context.Context, invoice string) (*OrderStatusDTO, error)
	Search(ctx context.Context, query string) ([]OrderStatusDTO, error)
	CheckOrder(ctx context.Context, invoice, email string) (*OrderStatusDTO, error)
	ListAll(ctx context.Context, actor pkgauth.Actor, input ListInput) (*pagination.Page[TransactionDTO], error)
	ListForSeller(ctx context.Context, actor pkgauth.Actor, input ListInput) (*pagination.Page[TransactionDTO], error)
	ExpireOverdue(ctx context.Context, now time.Time, limit int) (int, error)
}

const searchLimit = 50

type service struct {
	repo     *Repository
	dbClient *db.Client
	machine  *Machine
	metrics  *metrics.PaymentMetrics
	logg     *logger.Logger
}

func NewService(repo *Repository, dbClient *db.Client, machine *Machine, m *metrics.PaymentMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if machine == nil {
		machine = NewMachine(nil)
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, dbClient: dbClient, machine: machine, metrics: m, logg: logg}, nil
}

func (s *service) Transition(ctx context.Context, actor pkgauth.Actor, id uuid.UUID, to enums.TransactionStatus) (*TransactionDTO, error) {
	if !to.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown status %q", to)
	}
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor required")
	}

	var (
		updated *models.Transaction
		from    enums.TransactionStatus
	)
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		txn, err := repo.FindByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "load transaction")
		}
		if !actor.IsAdmin() && txn.SellerID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		if err := CheckTransition(txn.Status, to); err != nil {
			return err
		}
		if !actor.IsAdmin() && !sellerMayTransition(txn.Status, to) {
			return pkgerrors.Newf(pkgerrors.CodeForbidden, "sellers cannot move a transaction from %s to %s", txn.Status, to)
		}

		from = txn.Status
		applied, err := s.machine.Apply(ctx, tx, txn, Change{To: to})
		if err != nil {
			return err
		}
		if !applied {
			current, err := repo.FindByID(ctx, id)
			if err != nil {
				return notFoundOr(err, "reload transaction")
			}
			return transitionError(current.Status, to)
		}
		updated = txn
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(string(from), string(to))
	logCtx := s.logg.WithInvoice(ctx, updated.InvoiceNumber)
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"event":      "transaction.transition",
		"from":       from,
		"to":         to,
		"actor_id":   actor.UserID.String(),
		"actor_role": actor.Role,
	})
	s.logg.Info(logCtx, "transaction status changed")
	return FromModel(updated), nil
}

func (s *service) GetByInvoice(ctx context.Context, invoice string) (*OrderStatusDTO, error) {
	if strings.TrimSpace(invoice) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice number is required")
	}
	txn, err := s.repo.FindByInvoice(ctx, invoice)
	if err != nil {
		return nil, notFoundOr(err, "load transaction")
	}
	return StatusFromModel(txn), nil
}

func (s *service) Search(ctx context.Context, query string) ([]OrderStatusDTO, error) {
	if strings.TrimSpace(query) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "search query is required")
	}
	txns, err := s.repo.Search(ctx, query, searchLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "search transactions")
	}
	out := make([]OrderStatusDTO, 0, len(txns))
	for i := range txns {
		out = append(out, *StatusFromModel(&txns[i]))
	}
	return out, nil
}

func (s *service) CheckOrder(ctx context.Context, invoice, email string) (*OrderStatusDTO, error) {
	if strings.TrimSpace(invoice) == "" || strings.TrimSpace(email) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice number and email are required")
	}
	txn, err := s.repo.FindByInvoiceAndEmail(ctx, invoice, email)
	if err != nil {
		return nil, notFoundOr(err, "load transaction")
	}
	return StatusFromModel(txn), nil
}

func (s *service) ListAll(ctx context.Context, actor pkgauth.Actor, input ListInput) (*pagination.Page[TransactionDTO], error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin access required")
	}
	return s.list(ctx, nil, input)
}

func (s *service) ListForSeller(ctx context.Context, actor pkgauth.Actor, input ListInput) (*pagination.Page[TransactionDTO], error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor required")
	}
	sellerID := actor.UserID
	return s.list(ctx, &sellerID, input)
}

func (s *service) list(ctx context.Context, sellerID *uuid.UUID, input ListInput) (*pagination.Page[TransactionDTO], error) {
	filter := ListFilter{SellerID: sellerID}
	if raw := strings.TrimSpace(input.Status); raw != "" {
		status, err := enums.ParseTransactionStatus(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		filter.Status = status
	}
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, filter, cursor, input.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list transactions")
	}
	dtos := make([]TransactionDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *FromModel(&rows[i]))
	}
	page := pagination.Build(dtos, input.Limit, func(t TransactionDTO) pagination.Cursor {
		return pagination.Cursor{CreatedAt: t.CreatedAt, ID: t.ID}
	})
	return &page, nil
}

// ExpireOverdue moves Pending transactions past their deadline to Expired,
// restoring stock. Each transaction commits on its own so one failure does not
// hold back the rest.
func (s *service) ExpireOverdue(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = pagination.MaxLimit
	}
	overdue, err := s.repo.ListOverdue(ctx, now, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list overdue transactions")
	}

	expired := 0
	var errs error
	for i := range overdue {
		invoice := overdue[i].InvoiceNumber
		applied := false
		err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
			txn := overdue[i]
			ok, err := s.machine.Apply(ctx, tx, &txn, Change{To: enums.TransactionStatusExpired})
			applied = ok
			return err
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire %s: %w", invoice, err))
			continue
		}
		if applied {
			expired++
			s.metrics.IncTransition(string(enums.TransactionStatusPending), string(enums.TransactionStatusExpired))
		}
	}
	return expired, errs
}

func notFoundOr(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, op)
}
