package catalog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/muhamadhazim/fishit-marketplace/internal/inventory"
	pkgauth "github.com/muhamadhazim/fishit-marketplace/pkg/auth"
	"github.com/muhamadhazim/fishit-marketplace/pkg/db"
	"github.com/muhamadhazim/fishit-marketplace/pkg/db/models"
	pkgerrors "github.com/muhamadhazim/fishit-marketplace/pkg/errors"
	"github.com/muhamadhazim/fishit-marketplace/pkg/pagination"
)

// Service exposes catalog browsing and listing management.
type Service interface {
	CreateCategory(ctx context.Context, actor pkgauth.Actor, input CreateCategoryInput) (*CategoryDTO, error)
	ListCategories(ctx context.Context) ([]CategoryDTO, error)
	CreateProduct(ctx context.Context, actor pkgauth.Actor, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, actor pkgauth.Actor, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	SetBan(ctx context.Context, actor pkgauth.Actor, productID uuid.UUID, banned bool, reason *string) (*ProductDTO, error)
	GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	ListProducts(ctx context.Context, input ListProductsInput) (*pagination.Page[ProductDTO], error)
}

type stockAdjuster interface {
	Adjust(ctx context.Context, tx *gorm.DB, productID uuid.UUID, delta int) error
}

type service struct {
	repo     *Repository
	dbClient *db.Client
	stock    stockAdjuster
}

// NewService constructs a catalog service.
func NewService(repo *Repository, dbClient *db.Client, stock stockAdjuster) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if stock == nil {
		stock = inventory.NewAdjuster()
	}
	return &service{repo: repo, dbClient: dbClient, stock: stock}, nil
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases name and joins alphanumeric runs with dashes.
func Slugify(name string) string {
	return strings.Trim(slugStrip.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

func (s *service) CreateCategory(ctx context.Context, actor pkgauth.Actor, input CreateCategoryInput) (*CategoryDTO, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can create categories")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name is required")
	}
	slug := Slugify(input.Slug)
	if slug == "" {
		slug = Slugify(name)
	}
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category slug is empty")
	}

	category := &models.Category{Name: name, Slug: slug}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Newf(pkgerrors.CodeConflict, "category slug %q already exists", slug)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create category")
	}
	return CategoryFromModel(category), nil
}

func (s *service) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(categories))
	for i := range categories {
		out = append(out, *CategoryFromModel(&categories[i]))
	}
	return out, nil
}

func (s *service) CreateProduct(ctx context.Context, actor pkgauth.Actor, input CreateProductInput) (*ProductDTO, error) {
	sellerID := actor.UserID
	switch {
	case actor.IsAdmin():
		if input.SellerID != nil {
			sellerID = *input.SellerID
		}
	case input.SellerID != nil && *input.SellerID != actor.UserID:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "sellers can only list their own products")
	}

	if err := validateProductFields(input.Name, input.Price, input.Stock); err != nil {
		return nil, err
	}
	if _, err := s.repo.FindCategoryByID(ctx, input.CategoryID); err != nil {
		return nil, notFoundOr(err, "category", "load category")
	}

	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}
	product := &models.Product{
		Name:           strings.TrimSpace(input.Name),
		CategoryID:     input.CategoryID,
		SellerID:       sellerID,
		Description:    input.Description,
		Price:          input.Price,
		Stock:          input.Stock,
		Image:          input.Image,
		Specifications: input.Specifications,
		IsActive:       active,
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create product")
	}
	return s.GetProductAny(ctx, product.ID)
}

func (s *service) UpdateProduct(ctx context.Context, actor pkgauth.Actor, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := repo.FindProductByID(ctx, productID)
		if err != nil {
			return notFoundOr(err, "product", "load product")
		}
		if !actor.IsAdmin() && product.SellerID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "product belongs to another seller")
		}

		columns := make([]string, 0, 7)
		if input.Name != nil {
			product.Name = strings.TrimSpace(*input.Name)
			columns = append(columns, "name")
		}
		if input.CategoryID != nil {
			if _, err := repo.FindCategoryByID(ctx, *input.CategoryID); err != nil {
				return notFoundOr(err, "category", "load category")
			}
			product.CategoryID = *input.CategoryID
			columns = append(columns, "category_id")
		}
		if input.Description != nil {
			product.Description = *input.Description
			columns = append(columns, "description")
		}
		if input.Price != nil {
			product.Price = *input.Price
			columns = append(columns, "price")
		}
		if input.Image != nil {
			product.Image = *input.Image
			columns = append(columns, "image")
		}
		if input.Specifications != nil {
			product.Specifications = *input.Specifications
			columns = append(columns, "specifications")
		}
		if input.IsActive != nil {
			product.IsActive = *input.IsActive
			columns = append(columns, "is_active")
		}
		if err := validateProductFields(product.Name, product.Price, 0); err != nil {
			return err
		}
		if len(columns) > 0 {
			product.Category = nil
			product.Seller = nil
			if err := repo.SaveProductFields(ctx, product, columns...); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update product")
			}
		}
		if input.StockDelta != nil {
			return s.stock.Adjust(ctx, tx, productID, *input.StockDelta)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetProductAny(ctx, productID)
}

func (s *service) SetBan(ctx context.Context, actor pkgauth.Actor, productID uuid.UUID, banned bool, reason *string) (*ProductDTO, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can ban products")
	}
	if !banned {
		reason = nil
	}
	affected, err := s.repo.SetBan(ctx, productID, banned, reason)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update ban flag")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return s.GetProductAny(ctx, productID)
}

// GetProduct returns a publicly visible product.
func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindProductByID(ctx, productID)
	if err != nil {
		return nil, notFoundOr(err, "product", "load product")
	}
	if !product.Purchasable() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return ProductFromModel(product), nil
}

// GetProductAny returns a product regardless of visibility flags.
func (s *service) GetProductAny(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindProductByID(ctx, productID)
	if err != nil {
		return nil, notFoundOr(err, "product", "load product")
	}
	return ProductFromModel(product), nil
}

func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*pagination.Page[ProductDTO], error) {
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListProducts(ctx, ProductFilter{
		CategorySlug:  strings.TrimSpace(input.CategorySlug),
		SellerID:      input.SellerID,
		Query:         input.Query,
		IncludeHidden: input.IncludeHidden,
	}, cursor, input.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}

	dtos := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *ProductFromModel(&rows[i]))
	}
	page := pagination.Build(dtos, input.Limit, func(p ProductDTO) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return &page, nil
}

func validateProductFields(name string, price int64, stock int) error {
	if strings.TrimSpace(name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if price < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be zero or greater")
	}
	if stock < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock must be zero or greater")
	}
	return nil
}

func notFoundOr(err error, entity, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "%s not found", entity)
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, op)
}
