package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/muhamadhazim/fishit-marketplace/pkg/db/models"
	pkgerrors "github.com/muhamadhazim/fishit-marketplace/pkg/errors"
)

// Line is one stock movement request.
type Line struct {
	ProductID uuid.UUID
	Quantity  int
}

// Adjuster applies stock deltas as single guarded UPDATE statements.
// Stock is never read and written back.
type Adjuster struct{}

func NewAdjuster() *Adjuster {
	return &Adjuster{}
}

// Adjust adds delta to the product stock. A delta that would push stock below
// zero changes nothing and returns INSUFFICIENT_STOCK.
func (a *Adjuster) Adjust(ctx context.Context, tx *gorm.DB, productID uuid.UUID, delta int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "inventory adjust requires a db handle")
	}
	if delta == 0 {
		return nil
	}

	res := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock + ? >= 0", productID, delta).
		UpdateColumns(map[string]any{
			"stock":      gorm.Expr("stock + ?", delta),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "adjust stock")
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := tx.WithContext(ctx).Model(&models.Product{}).Where("id = ?", productID).Count(&count).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check product after failed adjust")
	}
	if count == 0 {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "product %s not found", productID)
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(map[string]any{"product_id": productID, "requested": -delta})
}

// Decrement removes quantity from stock.
func (a *Adjuster) Decrement(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int) error {
	return a.Adjust(ctx, tx, productID, -quantity)
}

// Increment hands quantity back to stock.
func (a *Adjuster) Increment(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int) error {
	return a.Adjust(ctx, tx, productID, quantity)
}

// Reserve decrements every line in order. When one line fails the lines already
// taken are handed back before the error is returned.
func (a *Adjuster) Reserve(ctx context.Context, tx *gorm.DB, lines []Line) error {
	taken := make([]Line, 0, len(lines))
	for _, line := range lines {
		if err := a.Decrement(ctx, tx, line.ProductID, line.Quantity); err != nil {
			if restoreErr := a.Restore(ctx, tx, taken); restoreErr != nil {
				return multierr.Append(err, restoreErr)
			}
			return err
		}
		taken = append(taken, line)
	}
	return nil
}

// Restore increments every line, continuing past failures so one deleted
// product does not strand the rest.
func (a *Adjuster) Restore(ctx context.Context, tx *gorm.DB, lines []Line) error {
	var errs error
	for _, line := range lines {
		if err := a.Increment(ctx, tx, line.ProductID, line.Quantity); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// LinesFromItems converts transaction snapshots into stock lines.
func LinesFromItems(items []models.TransactionItem) []Line {
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

// IsInsufficient reports whether err is a stock shortfall.
func IsInsufficient(err error) bool {
	var typed *pkgerrors.Error
	return errors.As(err, &typed) && typed.Code() == pkgerrors.CodeInsufficientStock
}
