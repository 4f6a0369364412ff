package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/muhamadhazim/fishit-marketplace/pkg/db/models"
)

type CategoryDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

type SellerSummary struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

type ProductDTO struct {
	ID             uuid.UUID         `json:"id"`
	Name           string            `json:"name"`
	Category       *CategoryDTO      `json:"category,omitempty"`
	CategoryID     uuid.UUID         `json:"category_id"`
	SellerID       uuid.UUID         `json:"seller_id"`
	Seller         *SellerSummary    `json:"seller,omitempty"`
	Description    string            `json:"description"`
	Price          int64             `json:"price"`
	Stock          int               `json:"stock"`
	Image          string            `json:"image"`
	Specifications map[string]string `json:"specifications"`
	IsActive       bool              `json:"is_active"`
	IsBanned       bool              `json:"is_banned"`
	BanReason      *string           `json:"ban_reason,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func CategoryFromModel(c *models.Category) *CategoryDTO {
	if c == nil {
		return nil
	}
	return &CategoryDTO{ID: c.ID, Name: c.Name, Slug: c.Slug, CreatedAt: c.CreatedAt}
}

func ProductFromModel(p *models.Product) *ProductDTO {
	if p == nil {
		return nil
	}
	specs := p.Specifications
	if specs == nil {
		specs = map[string]string{}
	}
	dto := &ProductDTO{
		ID:             p.ID,
		Name:           p.Name,
		Category:       CategoryFromModel(p.Category),
		CategoryID:     p.CategoryID,
		SellerID:       p.SellerID,
		Description:    p.Description,
		Price:          p.Price,
		Stock:          p.Stock,
		Image:          p.Image,
		Specifications: specs,
		IsActive:       p.IsActive,
		IsBanned:       p.IsBanned,
		BanReason:      p.BanReason,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	if p.Seller != nil {
		dto.Seller = &SellerSummary{ID: p.Seller.ID, Username: p.Seller.Username}
	}
	return dto
}

// CreateCategoryInput is the validated payload for a new category.
type CreateCategoryInput struct {
	Name string
	Slug string
}

// CreateProductInput is the validated payload for a new listing.
type CreateProductInput struct {
	Name           string
	CategoryID     uuid.UUID
	SellerID       *uuid.UUID
	Description    string
	Price          int64
	Stock          int
	Image          string
	Specifications map[string]string
	IsActive       *bool
}

// UpdateProductInput carries optional changes. StockDelta goes through the
// inventory adjuster rather than overwriting the column.
type UpdateProductInput struct {
	Name           *string
	CategoryID     *uuid.UUID
	Description    *string
	Price          *int64
	StockDelta     *int
	Image          *string
	Specifications *map[string]string
	IsActive       *bool
}

// ListProductsInput filters listings.
type ListProductsInput struct {
	CategorySlug  string
	SellerID      *uuid.UUID
	Query         string
	IncludeHidden bool
	Limit         int
	Cursor        string
}
