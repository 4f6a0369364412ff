package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a seller listing. Stock never goes negative.
type Product struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Name           string            `gorm:"column:name;not null"`
	CategoryID     uuid.UUID         `gorm:"column:category_id;type:uuid;not null;index"`
	Category       *Category         `gorm:"foreignKey:CategoryID"`
	SellerID       uuid.UUID         `gorm:"column:seller_id;type:uuid;not null;index"`
	Seller         *User             `gorm:"foreignKey:SellerID"`
	Description    string            `gorm:"column:description;not null;default:''"`
	Price          int64             `gorm:"column:price;not null"`
	Stock          int               `gorm:"column:stock;not null;default:0;check:stock >= 0"`
	Image          string            `gorm:"column:image;not null;default:''"`
	Specifications map[string]string `gorm:"column:specifications;type:jsonb;serializer:json"`
	IsActive       bool              `gorm:"column:is_active;not null"`
	IsBanned       bool              `gorm:"column:is_banned;not null;default:false"`
	BanReason      *string           `gorm:"column:ban_reason"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// Purchasable reports whether the listing can be added to an order.
func (p Product) Purchasable() bool {
	return p.IsActive && !p.IsBanned
}
