package models

import (
	"time"

	"github.com/google/uuid"
)

// Category groups products for browsing. Some categories are account sales
// and change what a buyer must supply at checkout.
type Category struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Slug      string    `gorm:"column:slug;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
