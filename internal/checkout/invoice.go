package checkout

import (
	"fmt"
	"time"

	"github.com/muhamadhazim/fishit-marketplace/pkg/security"
)

var wib = time.FixedZone("WIB", 7*60*60)

// baseInvoice renders INV-YYYYMMDD-NNNN using the Jakarta calendar date.
func baseInvoice(now time.Time) (string, error) {
	n, err := security.RandomInt(0, 9999)
	if err != nil {
		return "", fmt.Errorf("invoice suffix: %w", err)
	}
	return fmt.Sprintf("INV-%s-%04d", now.In(wib).Format("20060102"), n), nil
}

// groupInvoice appends -1, -2, ... when the cart spans several sellers.
func groupInvoice(base string, index, groups int) string {
	if groups <= 1 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, index+1)
}
