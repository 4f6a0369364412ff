package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/muhamadhazim/fishit-marketplace/pkg/enums"
)

// TransactionItem is the price and name snapshot of one order line.
type TransactionItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"`
	Quantity  int       `json:"quantity"`
	Image     string    `json:"image,omitempty"`
	Subtotal  int64     `json:"subtotal"`
}

// Transaction is the per-seller slice of a buyer checkout.
type Transaction struct {
	ID                   uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	InvoiceNumber        string                  `gorm:"column:invoice_number;not null;uniqueIndex"`
	Email                string                  `gorm:"column:email;not null;index"`
	RobloxUsername       *string                 `gorm:"column:roblox_username"`
	Items                []TransactionItem       `gorm:"column:items;type:jsonb;serializer:json;not null"`
	SellerID             uuid.UUID               `gorm:"column:seller_id;type:uuid;not null;index"`
	OriginalAmount       int64                   `gorm:"column:original_amount;not null"`
	UniqueCode           int                     `gorm:"column:unique_code;not null;default:0"`
	TotalTransfer        int64                   `gorm:"column:total_transfer;not null"`
	PaymentFlow          enums.PaymentFlow       `gorm:"column:payment_flow;type:text;not null"`
	GatewaySessionID     *string                 `gorm:"column:gateway_session_id;index"`
	GatewayTransactionID *string                 `gorm:"column:gateway_transaction_id;index"`
	PaymentURL           *string                 `gorm:"column:payment_url"`
	PaymentChannel       *string                 `gorm:"column:payment_channel"`
	PaymentMethod        *string                 `gorm:"column:payment_method"`
	PaymentDeadline      time.Time               `gorm:"column:payment_deadline;not null"`
	PaidAt               *time.Time              `gorm:"column:paid_at"`
	Status               enums.TransactionStatus `gorm:"column:status;type:text;not null;index"`
	PayoutStatus         enums.PayoutStatus      `gorm:"column:payout_status;type:text;not null;default:'Unpaid'"`
	PayoutID             *uuid.UUID              `gorm:"column:payout_id;type:uuid"`
	PaidOutAt            *time.Time              `gorm:"column:paid_out_at"`
	CompletedAt          *time.Time              `gorm:"column:completed_at"`
	CreatedAt            time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// ItemCount returns the total quantity across lines.
func (t Transaction) ItemCount() int {
	n := 0
	for _, it := range t.Items {
		n += it.Quantity
	}
	return n
}
