package payouts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/muhamadhazim/fishit-marketplace/internal/users"
	pkgauth "github.com/muhamadhazim/fishit-marketplace/pkg/auth"
	"github.com/muhamadhazim/fishit-marketplace/pkg/db/models"
	"github.com/muhamadhazim/fishit-marketplace/pkg/enums"
	pkgerrors "github.com/muhamadhazim/fishit-marketplace/pkg/errors"
	"github.com/muhamadhazim/fishit-marketplace/pkg/logger"
	"github.com/muhamadhazim/fishit-marketplace/pkg/metrics"
	"github.com/muhamadhazim/fishit-marketplace/pkg/pagination"
	"github.com/muhamadhazim/fishit-marketplace/pkg/security"
)

// Service settles seller earnings.
type Service interface {
	Summary(ctx context.Context, actor pkgauth.Actor) ([]SellerSummary, error)
	MarkPaid(ctx context.Context, actor pkgauth.Actor, input MarkPaidInput) (*PayoutDTO, error)
	History(ctx context.Context, actor pkgauth.Actor, input ListInput) (*pagination.Page[PayoutDTO], error)
	ForSeller(ctx context.Context, actor pkgauth.Actor, input ListInput) (*pagination.Page[PayoutDTO], error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	db      txRunner
	repo    *Repository
	users   *users.Repository
	metrics *metrics.PaymentMetrics
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(db txRunner, repo *Repository, userRepo *users.Repository, m *metrics.PaymentMetrics, logg *logger.Logger) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("payouts repository required")
	}
	if userRepo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{db: db, repo: repo, users: userRepo, metrics: m, logg: logg, now: time.Now}, nil
}

func (s *service) Summary(ctx context.Context, actor pkgauth.Actor) ([]SellerSummary, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin access required")
	}
	txns, err := s.repo.ListEligible(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payable transactions")
	}

	var order []uuid.UUID
	bySeller := map[uuid.UUID]*SellerSummary{}
	for _, txn := range txns {
		sum, ok := bySeller[txn.SellerID]
		if !ok {
			sum = &SellerSummary{SellerID: txn.SellerID}
			bySeller[txn.SellerID] = sum
			order = append(order, txn.SellerID)
		}
		sum.TotalAmount += txn.OriginalAmount
		sum.TransactionCount++
		sum.TransactionIDs = append(sum.TransactionIDs, txn.ID)
	}

	sellers, err := s.users.FindByIDs(ctx, order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sellers")
	}
	out := make([]SellerSummary, 0, len(order))
	for _, id := range order {
		sum := bySeller[id]
		if seller, ok := sellers[id]; ok {
			sum.Username = seller.Username
			sum.Email = seller.Email
			sum.BankName = seller.BankName
			sum.BankAccountNumber = seller.BankAccountNumber
			sum.BankAccountName = seller.BankAccountName
		}
		out = append(out, *sum)
	}
	return out, nil
}

// MarkPaid settles everything currently payable for the seller. The payout row
// and the transaction flags commit together; if any selected transaction
// changed state in between, nothing is written.
func (s *service) MarkPaid(ctx context.Context, actor pkgauth.Actor, input MarkPaidInput) (*PayoutDTO, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin access required")
	}
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller_id is required")
	}

	var payout *models.Payout
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		seller, err := s.users.WithTx(tx).FindByID(ctx, input.SellerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load seller")
		}

		repo := s.repo.WithTx(tx)
		txns, err := repo.ListEligibleForSeller(ctx, input.SellerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payable transactions")
		}
		if len(txns) == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no unpaid successful transactions for seller")
		}

		ids := make([]uuid.UUID, 0, len(txns))
		var total int64
		for _, txn := range txns {
			ids = append(ids, txn.ID)
			total += txn.OriginalAmount
		}

		code, err := payoutCode(s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate payout code")
		}
		now := s.now().UTC()
		payout = &models.Payout{
			PayoutCode:       code,
			SellerID:         seller.ID,
			TotalAmount:      total,
			TransactionIDs:   ids,
			TransactionCount: len(ids),
			Status:           enums.PayoutStatusPaid,
			BankName:         deref(seller.BankName),
			BankAccount:      deref(seller.BankAccountNumber),
			BankAccountName:  deref(seller.BankAccountName),
			Note:             trimmed(input.Note),
			CreatedBy:        actor.UserID,
			PaidAt:           now,
		}
		if err := repo.Create(ctx, payout); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create payout")
		}

		affected, err := repo.MarkTransactionsPaid(ctx, ids, payout.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark transactions paid")
		}
		if affected != int64(len(ids)) {
			return pkgerrors.Newf(pkgerrors.CodeConflict, "payable transactions changed during payout (%d of %d)", affected, len(ids))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObservePayout(payout.TotalAmount)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"event":        "payout.created",
		"payout_code":  payout.PayoutCode,
		"seller_id":    payout.SellerID.String(),
		"total_amount": payout.TotalAmount,
		"transactions": payout.TransactionCount,
	})
	s.logg.Info(logCtx, "payout recorded")
	return FromModel(payout), nil
}

func (s *service) History(ctx context.Context, actor pkgauth.Actor, input ListInput) (*pagination.Page[PayoutDTO], error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin access required")
	}
	return s.list(ctx, nil, input)
}

func (s *service) ForSeller(ctx context.Context, actor pkgauth.Actor, input ListInput) (*pagination.Page[PayoutDTO], error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor required")
	}
	id := actor.UserID
	return s.list(ctx, &id, input)
}

func (s *service) list(ctx context.Context, sellerID *uuid.UUID, input ListInput) (*pagination.Page[PayoutDTO], error) {
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, sellerID, cursor, input.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payouts")
	}
	dtos := make([]PayoutDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *FromModel(&rows[i]))
	}
	page := pagination.Build(dtos, input.Limit, func(p PayoutDTO) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return &page, nil
}

// payoutCode renders PO-<unix-millis>-<random>.
func payoutCode(now time.Time) (string, error) {
	suffix, err := security.RandomString(6)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("PO-%d-%s", now.UnixMilli(), suffix), nil
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
