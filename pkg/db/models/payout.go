package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/muhamadhazim/fishit-marketplace/pkg/enums"
)

// Payout records a manual bank transfer covering a batch of seller transactions.
type Payout struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	PayoutCode       string             `gorm:"column:payout_code;not null;uniqueIndex"`
	SellerID         uuid.UUID          `gorm:"column:seller_id;type:uuid;not null;index"`
	TotalAmount      int64              `gorm:"column:total_amount;not null"`
	TransactionIDs   []uuid.UUID        `gorm:"column:transaction_ids;type:jsonb;serializer:json;not null"`
	TransactionCount int                `gorm:"column:transaction_count;not null"`
	Status           enums.PayoutStatus `gorm:"column:status;type:text;not null"`
	BankName         string             `gorm:"column:bank_name;not null;default:''"`
	BankAccount      string             `gorm:"column:bank_account_number;not null;default:''"`
	BankAccountName  string             `gorm:"column:bank_account_name;not null;default:''"`
	Note             *string            `gorm:"column:note"`
	CreatedBy        uuid.UUID          `gorm:"column:created_by;type:uuid;not null"`
	PaidAt           time.Time          `gorm:"column:paid_at;not null"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
}
