package transactions

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/muhamadhazim/fishit-marketplace/pkg/db/models"
	"github.com/muhamadhazim/fishit-marketplace/pkg/enums"
	"github.com/muhamadhazim/fishit-marketplace/pkg/pagination"
)

// Repository persists transactions.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) DB() *gorm.DB {
	return r.db
}

// CreateAll inserts every transaction in order.
func (r *Repository) CreateAll(ctx context.Context, txns []*models.Transaction) error {
	for _, txn := range txns {
		if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).First(&txn, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

// FindByInvoice matches the invoice number case-insensitively.
func (r *Repository) FindByInvoice(ctx context.Context, invoice string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).
		Where("LOWER(invoice_number) = ?", strings.ToLower(strings.TrimSpace(invoice))).
		First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

// InvoicePrefixTaken reports whether any invoice starts with base.
func (r *Repository) InvoicePrefixTaken(ctx context.Context, base string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("invoice_number = ? OR invoice_number LIKE ?", base, base+"-%").
		Count(&count).Error
	return count > 0, err
}

// Search finds transactions whose invoice or buyer email equals query, ignoring case.
func (r *Repository) Search(ctx context.Context, query string, limit int) ([]models.Transaction, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	var txns []models.Transaction
	err := r.db.WithContext(ctx).
		Where("LOWER(invoice_number) = ? OR LOWER(email) = ?", q, q).
		Order("created_at DESC").
		Limit(pagination.NormalizeLimit(limit)).
		Find(&txns).Error
	return txns, err
}

// FindByInvoiceAndEmail requires both values to match, ignoring case.
func (r *Repository) FindByInvoiceAndEmail(ctx context.Context, invoice, email string) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).
		Where("LOWER(invoice_number) = ? AND LOWER(email) = ?",
			strings.ToLower(strings.TrimSpace(invoice)), strings.ToLower(strings.TrimSpace(email))).
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// FindByGatewayRef returns every transaction created under the gateway ids.
func (r *Repository) FindByGatewayRef(ctx context.Context, trxID, sessionID string) ([]models.Transaction, error) {
	q := r.db.WithContext(ctx).Model(&models.Transaction{})
	switch {
	case trxID != "" && sessionID != "":
		q = q.Where("gateway_transaction_id = ? OR gateway_session_id = ?", trxID, sessionID)
	case trxID != "":
		q = q.Where("gateway_transaction_id = ?", trxID)
	case sessionID != "":
		q = q.Where("gateway_session_id = ?", sessionID)
	default:
		return nil, nil
	}
	var txns []models.Transaction
	if err := q.Order("invoice_number ASC").Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// ListFilter narrows admin and seller listings.
type ListFilter struct {
	Status   enums.TransactionStatus
	SellerID *uuid.UUID
}

func (r *Repository) List(ctx context.Context, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Transaction, error) {
	q := r.db.WithContext(ctx).Model(&models.Transaction{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.SellerID != nil {
		q = q.Where("seller_id = ?", *filter.SellerID)
	}
	var txns []models.Transaction
	if err := q.Scopes(pagination.Scope("", cursor, limit)).Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// ListOverdue returns Pending transactions whose payment deadline has passed.
func (r *Repository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND payment_deadline < ?", enums.TransactionStatusPending, now).
		Order("payment_deadline ASC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}

// UpdateStatusFrom moves a transaction only while it still holds from.
// Zero rows affected means another writer got there first.
func (r *Repository) UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to enums.TransactionStatus, fields map[string]any) (int64, error) {
	updates := map[string]any{"status": to, "updated_at": time.Now().UTC()}
	for k, v := range fields {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}
