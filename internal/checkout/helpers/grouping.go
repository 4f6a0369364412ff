package helpers

import (
	"github.com/google/uuid"

	"github.com/muhamadhazim/fishit-marketplace/pkg/db/models"
)

// SellerGroup is the slice of a cart that becomes one transaction.
type SellerGroup struct {
	SellerID uuid.UUID
	Items    []models.TransactionItem
	Subtotal int64
}

// GroupBySeller snapshots each line and groups them by seller in order of first appearance.
func GroupBySeller(lines []CartLine, products map[uuid.UUID]models.Product) ([]SellerGroup, int64) {
	var (
		groups []SellerGroup
		total  int64
	)
	index := map[uuid.UUID]int{}
	for _, line := range lines {
		product := products[line.ProductID]
		item := Snapshot(product, line.Quantity)
		total += item.Subtotal

		i, ok := index[product.SellerID]
		if !ok {
			i = len(groups)
			index[product.SellerID] = i
			groups = append(groups, SellerGroup{SellerID: product.SellerID})
		}
		groups[i].Items = append(groups[i].Items, item)
		groups[i].Subtotal += item.Subtotal
	}
	return groups, total
}

// Snapshot freezes the product's name, price and image for a transaction line.
func Snapshot(product models.Product, quantity int) models.TransactionItem {
	return models.TransactionItem{
		ProductID: product.ID,
		Name:      product.Name,
		Price:     product.Price,
		Quantity:  quantity,
		Image:     product.Image,
		Subtotal:  product.Price * int64(quantity),
	}
}
