package helpers

import (
	"strings"

	"github.com/google/uuid"

	"github.com/muhamadhazim/fishit-marketplace/pkg/db/models"
	pkgerrors "github.com/muhamadhazim/fishit-marketplace/pkg/errors"
)

// accountMarker exempts a line from the external username requirement when
// found in its category or product name.
const accountMarker = "account"

// CartLine is one requested product and quantity.
type CartLine struct {
	ProductID uuid.UUID
	Quantity  int
}

// MergeLines validates quantities and folds duplicate product ids into one
// line, keeping first-appearance order.
func MergeLines(lines []CartLine) ([]CartLine, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	merged := make([]CartLine, 0, len(lines))
	index := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		if line.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
		}
		if line.Quantity < 1 {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "quantity for product %s must be at least 1", line.ProductID)
		}
		if i, ok := index[line.ProductID]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged, nil
}

// ValidateAvailability checks every line against the loaded products before
// anything is mutated.
func ValidateAvailability(lines []CartLine, products map[uuid.UUID]models.Product) error {
	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "product %s not found", line.ProductID)
		}
		if !product.Purchasable() {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "product %q is not available", product.Name)
		}
		if line.Quantity > product.Stock {
			return pkgerrors.Newf(pkgerrors.CodeInsufficientStock, "insufficient stock for %q", product.Name).
				WithDetails(map[string]any{
					"product_id": product.ID,
					"requested":  line.Quantity,
					"available":  product.Stock,
				})
		}
	}
	return nil
}

// IsAccountItem reports whether the product sells a game account.
func IsAccountItem(product models.Product) bool {
	if strings.Contains(strings.ToLower(product.Name), accountMarker) {
		return true
	}
	return product.Category != nil && strings.Contains(strings.ToLower(product.Category.Name), accountMarker)
}

// RequiresUsername reports whether any line needs the buyer's in-game username.
func RequiresUsername(lines []CartLine, products map[uuid.UUID]models.Product) bool {
	for _, line := range lines {
		if !IsAccountItem(products[line.ProductID]) {
			return true
		}
	}
	return false
}
