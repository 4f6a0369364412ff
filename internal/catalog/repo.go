package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/muhamadhazim/fishit-marketplace/pkg/db/models"
	"github.com/muhamadhazim/fishit-marketplace/pkg/pagination"
)

// Repository persists products and categories.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// DB exposes the bound handle for callers that need to share it.
func (r *Repository) DB() *gorm.DB {
	return r.db
}

func (r *Repository) CreateCategory(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Create(category).Error
}

func (r *Repository) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *Repository) FindCategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// SaveProductFields writes the named columns of product.
func (r *Repository) SaveProductFields(ctx context.Context, product *models.Product, columns ...string) error {
	if len(columns) == 0 {
		return nil
	}
	product.UpdatedAt = time.Now().UTC()
	columns = append(columns, "updated_at")
	return r.db.WithContext(ctx).Model(product).Select(columns).Updates(product).Error
}

// FindProductByID loads a product with its category and seller.
func (r *Repository) FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).
		Preload("Category").
		Preload("Seller").
		First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs loads every listed product with its category in one round trip.
// Missing ids are simply absent from the result.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var products []models.Product
	if err := r.db.WithContext(ctx).
		Joins("Category").
		Where("products.id IN ?", ids).
		Find(&products).Error; err != nil {
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	CategorySlug  string
	SellerID      *uuid.UUID
	Query         string
	IncludeHidden bool
}

// ListProducts returns newest-first products matching filter.
func (r *Repository) ListProducts(ctx context.Context, filter ProductFilter, cursor *pagination.Cursor, limit int) ([]models.Product, error) {
	q := r.db.WithContext(ctx).Model(&models.Product{}).Joins("Category")
	if !filter.IncludeHidden {
		q = q.Where("products.is_active = ? AND products.is_banned = ?", true, false)
	}
	if filter.CategorySlug != "" {
		q = q.Where(`"Category".slug = ?`, filter.CategorySlug)
	}
	if filter.SellerID != nil {
		q = q.Where("products.seller_id = ?", *filter.SellerID)
	}
	if term := strings.ToLower(strings.TrimSpace(filter.Query)); term != "" {
		like := "%" + term + "%"
		q = q.Where("LOWER(products.name) LIKE ? OR LOWER(products.description) LIKE ?", like, like)
	}

	var products []models.Product
	if err := q.Scopes(pagination.Scope("products", cursor, limit)).Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// SetBan flips the ban flag and reason.
func (r *Repository) SetBan(ctx context.Context, id uuid.UUID, banned bool, reason *string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_banned": banned, "ban_reason": reason})
	return res.RowsAffected, res.Error
}
