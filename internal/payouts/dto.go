package payouts

import (
	"time"

	"github.com/google/uuid"

	"github.com/muhamadhazim/fishit-marketplace/pkg/db/models"
	"github.com/muhamadhazim/fishit-marketplace/pkg/enums"
)

// SellerSummary is what an admin sees before paying a seller.
type SellerSummary struct {
	SellerID          uuid.UUID   `json:"seller_id"`
	Username          string      `json:"username"`
	Email             string      `json:"email"`
	BankName          *string     `json:"bank_name,omitempty"`
	BankAccountNumber *string     `json:"bank_account_number,omitempty"`
	BankAccountName   *string     `json:"bank_account_name,omitempty"`
	TotalAmount       int64       `json:"total_amount"`
	TransactionCount  int         `json:"transaction_count"`
	TransactionIDs    []uuid.UUID `json:"transaction_ids"`
}

type PayoutDTO struct {
	ID               uuid.UUID          `json:"id"`
	PayoutCode       string             `json:"payout_code"`
	SellerID         uuid.UUID          `json:"seller_id"`
	TotalAmount      int64              `json:"total_amount"`
	TransactionIDs   []uuid.UUID        `json:"transaction_ids"`
	TransactionCount int                `json:"transaction_count"`
	Status           enums.PayoutStatus `json:"status"`
	BankName         string             `json:"bank_name"`
	BankAccount      string             `json:"bank_account_number"`
	BankAccountName  string             `json:"bank_account_name"`
	Note             *string            `json:"note,omitempty"`
	PaidAt           time.Time          `json:"paid_at"`
	CreatedAt        time.Time          `json:"created_at"`
}

func FromModel(p *models.Payout) *PayoutDTO {
	if p == nil {
		return nil
	}
	ids := p.TransactionIDs
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return &PayoutDTO{
		ID:               p.ID,
		PayoutCode:       p.PayoutCode,
		SellerID:         p.SellerID,
		TotalAmount:      p.TotalAmount,
		TransactionIDs:   ids,
		TransactionCount: p.TransactionCount,
		Status:           p.Status,
		BankName:         p.BankName,
		BankAccount:      p.BankAccount,
		BankAccountName:  p.BankAccountName,
		Note:             p.Note,
		PaidAt:           p.PaidAt,
		CreatedAt:        p.CreatedAt,
	}
}

// MarkPaidInput selects the seller to settle.
type MarkPaidInput struct {
	SellerID uuid.UUID
	Note     *string
}

type ListInput struct {
	Limit  int
	Cursor string
}
