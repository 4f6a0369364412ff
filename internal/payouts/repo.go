package payouts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/muhamadhazim/fishit-marketplace/pkg/db/models"
	"github.com/muhamadhazim/fishit-marketplace/pkg/enums"
	"github.com/muhamadhazim/fishit-marketplace/pkg/pagination"
)

// Repository reads settled transactions and writes payout batches.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func eligible(db *gorm.DB) *gorm.DB {
	return db.Where("status = ? AND payout_status = ?", enums.TransactionStatusSuccess, enums.PayoutStatusUnpaid)
}

// ListEligible returns every Success transaction not yet paid out, oldest first.
func (r *Repository) ListEligible(ctx context.Context) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Scopes(eligible).
		Order("created_at ASC").
		Find(&txns).Error
	return txns, err
}

// ListEligibleForSeller re-reads the seller's payable transactions.
func (r *Repository) ListEligibleForSeller(ctx context.Context, sellerID uuid.UUID) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Scopes(eligible).
		Where("seller_id = ?", sellerID).
		Order("created_at ASC").
		Find(&txns).Error
	return txns, err
}

func (r *Repository) Create(ctx context.Context, payout *models.Payout) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

// MarkTransactionsPaid flags the listed transactions as paid out. Rows that
// stopped being eligible are skipped, so the count tells the caller whether
// anything moved underneath it.
func (r *Repository) MarkTransactionsPaid(ctx context.Context, ids []uuid.UUID, payoutID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Scopes(eligible).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"payout_status": enums.PayoutStatusPaid,
			"payout_id":     payoutID,
			"paid_out_at":   at,
			"updated_at":    at,
		})
	return res.RowsAffected, res.Error
}

// List returns newest-first payouts, optionally for one seller.
func (r *Repository) List(ctx context.Context, sellerID *uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Payout, error) {
	q := r.db.WithContext(ctx).Model(&models.Payout{})
	if sellerID != nil {
		q = q.Where("seller_id = ?", *sellerID)
	}
	var rows []models.Payout
	if err := q.Scopes(pagination.Scope("", cursor, limit)).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
