package transactions

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/muhamadhazim/fishit-marketplace/internal/inventory"
	"github.com/muhamadhazim/fishit-marketplace/pkg/db/models"
	"github.com/muhamadhazim/fishit-marketplace/pkg/enums"
	pkgerrors "github.com/muhamadhazim/fishit-marketplace/pkg/errors"
)

// Change is a requested status move plus the payment details stamped with it.
type Change struct {
	To             enums.TransactionStatus
	PaymentChannel *string
	PaymentMethod  *string
	PaidAt         *time.Time
}

type stockRestorer interface {
	Restore(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error
}

// Machine applies status changes. Every writer of Transaction.status goes
// through Apply so the legal set and stock release stay in one place.
type Machine struct {
	stock stockRestorer
	now   func() time.Time
}

func NewMachine(stock stockRestorer) *Machine {
	if stock == nil {
		stock = inventory.NewAdjuster()
	}
	return &Machine{stock: stock, now: time.Now}
}

// Apply moves txn to change.To inside tx. The update is conditional on the
// status txn was loaded with; it returns false without error when another
// writer moved the row first. Entering a releasing status hands every line
// back to stock in the same tx.
func (m *Machine) Apply(ctx context.Context, tx *gorm.DB, txn *models.Transaction, change Change) (bool, error) {
	from := txn.Status
	if err := CheckTransition(from, change.To); err != nil {
		return false, err
	}

	now := m.now().UTC()
	fields := map[string]any{}
	switch change.To {
	case enums.TransactionStatusPaid:
		paidAt := now
		if change.PaidAt != nil {
			paidAt = change.PaidAt.UTC()
		}
		fields["paid_at"] = paidAt
		if change.PaymentChannel != nil {
			fields["payment_channel"] = *change.PaymentChannel
		}
		if change.PaymentMethod != nil {
			fields["payment_method"] = *change.PaymentMethod
		}
	case enums.TransactionStatusSuccess:
		fields["completed_at"] = now
	}

	affected, err := NewRepository(tx).UpdateStatusFrom(ctx, txn.ID, from, change.To, fields)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update transaction status")
	}
	if affected == 0 {
		return false, nil
	}

	if change.To.ReleasesStock() {
		if err := m.stock.Restore(ctx, tx, inventory.LinesFromItems(txn.Items)); err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "restore stock")
		}
	}

	txn.Status = change.To
	txn.UpdatedAt = now
	if paidAt, ok := fields["paid_at"].(time.Time); ok {
		txn.PaidAt = &paidAt
		txn.PaymentChannel = change.PaymentChannel
		txn.PaymentMethod = change.PaymentMethod
	}
	if change.To == enums.TransactionStatusSuccess {
		txn.CompletedAt = &now
	}
	return true, nil
}
