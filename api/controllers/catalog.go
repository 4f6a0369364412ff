package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/muhamadhazim/fishit-marketplace/api/responses"
	"github.com/muhamadhazim/fishit-marketplace/api/validators"
	"github.com/muhamadhazim/fishit-marketplace/internal/catalog"
	pkgerrors "github.com/muhamadhazim/fishit-marketplace/pkg/errors"
	"github.com/muhamadhazim/fishit-marketplace/pkg/logger"
)

const maxSearchQuery = 100

type createCategoryRequest struct {
	Name string `json:"name" validate:"required,max=64"`
	Slug string `json:"slug" validate:"omitempty,max=64"`
}

type createProductRequest struct {
	Name           string            `json:"name" validate:"required,max=200"`
	CategoryID     string            `json:"category_id" validate:"required,uuid"`
	SellerID       *string           `json:"seller_id,omitempty" validate:"omitempty,uuid"`
	Description    string            `json:"description" validate:"max=5000"`
	Price          int64             `json:"price" validate:"required,min=1"`
	Stock          int               `json:"stock" validate:"min=0"`
	Image          string            `json:"image" validate:"omitempty,max=2048"`
	Specifications map[string]string `json:"specifications,omitempty"`
	IsActive       *bool             `json:"is_active,omitempty"`
}

func (p createProductRequest) toInput() (catalog.CreateProductInput, error) {
	categoryID, err := uuid.Parse(p.CategoryID)
	if err != nil {
		return catalog.CreateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category_id")
	}
	input := catalog.CreateProductInput{
		Name:           validators.SanitizeString(p.Name, 200),
		CategoryID:     categoryID,
		Description:    strings.TrimSpace(p.Description),
		Price:          p.Price,
		Stock:          p.Stock,
		Image:          strings.TrimSpace(p.Image),
		Specifications: p.Specifications,
		IsActive:       p.IsActive,
	}
	if p.SellerID != nil {
		sellerID, err := uuid.Parse(*p.SellerID)
		if err != nil {
			return catalog.CreateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid seller_id")
		}
		input.SellerID = &sellerID
	}
	return input, nil
}

// updateProductRequest changes stock by delta so concurrent checkouts are not
// overwritten.
type updateProductRequest struct {
	Name           *string            `json:"name,omitempty" validate:"omitempty,max=200"`
	CategoryID     *string            `json:"category_id,omitempty" validate:"omitempty,uuid"`
	Description    *string            `json:"description,omitempty" validate:"omitempty,max=5000"`
	Price          *int64             `json:"price,omitempty" validate:"omitempty,min=1"`
	StockDelta     *int               `json:"stock_delta,omitempty"`
	Image          *string            `json:"image,omitempty" validate:"omitempty,max=2048"`
	Specifications *map[string]string `json:"specifications,omitempty"`
	IsActive       *bool              `json:"is_active,omitempty"`
}

func (p updateProductRequest) toInput() (catalog.UpdateProductInput, error) {
	input := catalog.UpdateProductInput{
		Name:           p.Name,
		Description:    p.Description,
		Price:          p.Price,
		StockDelta:     p.StockDelta,
		Image:          p.Image,
		Specifications: p.Specifications,
		IsActive:       p.IsActive,
	}
	if p.CategoryID != nil {
		id, err := uuid.Parse(*p.CategoryID)
		if err != nil {
			return catalog.UpdateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category_id")
		}
		input.CategoryID = &id
	}
	return input, nil
}

type banProductRequest struct {
	Banned *bool   `json:"banned" validate:"required"`
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

func ListCategories(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "catalog service")
			return
		}
		categories, err := svc.ListCategories(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, categories)
	}
}

func CreateCategory(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "catalog service")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body createCategoryRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		category, err := svc.CreateCategory(r.Context(), actor, catalog.CreateCategoryInput{
			Name: validators.SanitizeString(body.Name, 64),
			Slug: body.Slug,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, category)
	}
}

// ListProducts is the public storefront listing; hidden and banned products
// never appear.
func ListProducts(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "catalog service")
			return
		}
		page, err := parsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sellerID, err := validators.ParseQueryUUID(r, "seller")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := r.URL.Query()
		result, err := svc.ListProducts(r.Context(), catalog.ListProductsInput{
			CategorySlug: strings.TrimSpace(query.Get("category")),
			SellerID:     sellerID,
			Query:        validators.SanitizeString(query.Get("q"), maxSearchQuery),
			Limit:        page.Limit,
			Cursor:       page.Cursor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func GetProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "catalog service")
			return
		}
		productID, err := validators.ParsePathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func CreateProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "catalog service")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body createProductRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := body.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CreateProduct(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

func UpdateProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "catalog service")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		productID, err := validators.ParsePathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateProductRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := body.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.UpdateProduct(r.Context(), actor, productID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// SellerProducts lists the caller's own products, hidden and banned included.
func SellerProducts(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "catalog service")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		page, err := parsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sellerID := actor.UserID
		result, err := svc.ListProducts(r.Context(), catalog.ListProductsInput{
			SellerID:      &sellerID,
			IncludeHidden: true,
			Limit:         page.Limit,
			Cursor:        page.Cursor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func AdminBanProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "catalog service")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		productID, err := validators.ParsePathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body banProductRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.SetBan(r.Context(), actor, productID, *body.Banned, body.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}
