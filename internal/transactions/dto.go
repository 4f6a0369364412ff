package transactions

import (
	"time"

	"github.com/google/uuid"

	"github.com/muhamadhazim/fishit-marketplace/pkg/db/models"
	"github.com/muhamadhazim/fishit-marketplace/pkg/enums"
)

type ItemDTO struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"`
	Quantity  int       `json:"quantity"`
	Image     string    `json:"image,omitempty"`
	Subtotal  int64     `json:"subtotal"`
}

// TransactionDTO is the full view shown to admins and the owning seller.
type TransactionDTO struct {
	ID              uuid.UUID               `json:"id"`
	InvoiceNumber   string                  `json:"invoice_number"`
	Email           string                  `json:"email"`
	RobloxUsername  *string                 `json:"roblox_username,omitempty"`
	Items           []ItemDTO               `json:"items"`
	SellerID        uuid.UUID               `json:"seller_id"`
	OriginalAmount  int64                   `json:"original_amount"`
	UniqueCode      int                     `json:"unique_code"`
	TotalTransfer   int64                   `json:"total_transfer"`
	PaymentFlow     enums.PaymentFlow       `json:"payment_flow"`
	PaymentURL      *string                 `json:"payment_url,omitempty"`
	PaymentChannel  *string                 `json:"payment_channel,omitempty"`
	PaymentMethod   *string                 `json:"payment_method,omitempty"`
	PaymentDeadline time.Time               `json:"payment_deadline"`
	PaidAt          *time.Time              `json:"paid_at,omitempty"`
	Status          enums.TransactionStatus `json:"status"`
	PayoutStatus    enums.PayoutStatus      `json:"payout_status"`
	CompletedAt     *time.Time              `json:"completed_at,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
}

// OrderStatusDTO is what an anonymous buyer sees when checking an order.
type OrderStatusDTO struct {
	InvoiceNumber   string                  `json:"invoice_number"`
	Items           []ItemDTO               `json:"items"`
	TotalTransfer   int64                   `json:"total_transfer"`
	UniqueCode      int                     `json:"unique_code"`
	PaymentURL      *string                 `json:"payment_url,omitempty"`
	PaymentDeadline time.Time               `json:"payment_deadline"`
	PaidAt          *time.Time              `json:"paid_at,omitempty"`
	Status          enums.TransactionStatus `json:"status"`
	CreatedAt       time.Time               `json:"created_at"`
}

func itemsFromModel(items []models.TransactionItem) []ItemDTO {
	out := make([]ItemDTO, 0, len(items))
	for _, it := range items {
		out = append(out, ItemDTO{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
			Image:     it.Image,
			Subtotal:  it.Subtotal,
		})
	}
	return out
}

func FromModel(t *models.Transaction) *TransactionDTO {
	if t == nil {
		return nil
	}
	return &TransactionDTO{
		ID:              t.ID,
		InvoiceNumber:   t.InvoiceNumber,
		Email:           t.Email,
		RobloxUsername:  t.RobloxUsername,
		Items:           itemsFromModel(t.Items),
		SellerID:        t.SellerID,
		OriginalAmount:  t.OriginalAmount,
		UniqueCode:      t.UniqueCode,
		TotalTransfer:   t.TotalTransfer,
		PaymentFlow:     t.PaymentFlow,
		PaymentURL:      t.PaymentURL,
		PaymentChannel:  t.PaymentChannel,
		PaymentMethod:   t.PaymentMethod,
		PaymentDeadline: t.PaymentDeadline,
		PaidAt:          t.PaidAt,
		Status:          t.Status,
		PayoutStatus:    t.PayoutStatus,
		CompletedAt:     t.CompletedAt,
		CreatedAt:       t.CreatedAt,
	}
}

func StatusFromModel(t *models.Transaction) *OrderStatusDTO {
	if t == nil {
		return nil
	}
	return &OrderStatusDTO{
		InvoiceNumber:   t.InvoiceNumber,
		Items:           itemsFromModel(t.Items),
		TotalTransfer:   t.TotalTransfer,
		UniqueCode:      t.UniqueCode,
		PaymentURL:      t.PaymentURL,
		PaymentDeadline: t.PaymentDeadline,
		PaidAt:          t.PaidAt,
		Status:          t.Status,
		CreatedAt:       t.CreatedAt,
	}
}

// ListInput pages admin and seller listings.
type ListInput struct {
	Status string
	Limit  int
	Cursor string
}
