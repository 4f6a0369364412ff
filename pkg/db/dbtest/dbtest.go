// Package dbtest opens isolated sqlite databases seeded with the application schema.
package dbtest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/muhamadhazim/fishit-marketplace/pkg/db"
	"github.com/muhamadhazim/fishit-marketplace/pkg/db/models"
	"github.com/muhamadhazim/fishit-marketplace/pkg/enums"
	"github.com/muhamadhazim/fishit-marketplace/pkg/migrate"
)

// Open returns a client over a private in-memory database with every table migrated.
func Open(t testing.TB) *db.Client {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString()[:8])
	conn, err := db.Open(sqlite.Open(dsn))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := migrate.AutoMigrateModels(conn); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	client := db.NewFromGorm(conn)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// Seller inserts a verified seller with bank details.
func Seller(t testing.TB, conn *gorm.DB, username string) *models.User {
	t.Helper()
	bank, account, holder := "BCA", "1234567890", username
	user := &models.User{
		Username:          username,
		Email:             username + "@example.com",
		PasswordHash:      "hash",
		Role:              enums.UserRoleSeller,
		IsVerified:        true,
		BankName:          &bank,
		BankAccountNumber: &account,
		BankAccountName:   &holder,
	}
	if err := conn.Create(user).Error; err != nil {
		t.Fatalf("create seller: %v", err)
	}
	return user
}

// Admin inserts an admin account.
func Admin(t testing.TB, conn *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{
		Username:     "admin-" + uuid.NewString()[:6],
		Email:        "admin-" + uuid.NewString()[:6] + "@example.com",
		PasswordHash: "hash",
		Role:         enums.UserRoleAdmin,
		IsVerified:   true,
	}
	if err := conn.Create(user).Error; err != nil {
		t.Fatalf("create admin: %v", err)
	}
	return user
}

// Category inserts a category whose slug is derived from the name.
func Category(t testing.TB, conn *gorm.DB, name string) *models.Category {
	t.Helper()
	category := &models.Category{Name: name, Slug: strings.ToLower(strings.ReplaceAll(name, " ", "-")) + "-" + uuid.NewString()[:4]}
	if err := conn.Create(category).Error; err != nil {
		t.Fatalf("create category: %v", err)
	}
	return category
}

// Product inserts an active listing.
func Product(t testing.TB, conn *gorm.DB, seller *models.User, category *models.Category, name string, price int64, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:       name,
		CategoryID: category.ID,
		SellerID:   seller.ID,
		Price:      price,
		Stock:      stock,
		IsActive:   true,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

// Stock reads the current stock of a product.
func Stock(t testing.TB, conn *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var product models.Product
	if err := conn.Select("stock").First(&product, "id = ?", id).Error; err != nil {
		t.Fatalf("load product stock: %v", err)
	}
	return product.Stock
}

// Transaction inserts a transaction for seller covering one line of product.
func Transaction(t testing.TB, conn *gorm.DB, seller *models.User, product *models.Product, quantity int, status enums.TransactionStatus) *models.Transaction {
	t.Helper()
	subtotal := product.Price * int64(quantity)
	txn := &models.Transaction{
		InvoiceNumber: "INV-" + strings.ToUpper(uuid.NewString()[:8]),
		Email:         "buyer@example.com",
		Items: []models.TransactionItem{{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			Quantity:  quantity,
			Subtotal:  subtotal,
		}},
		SellerID:        seller.ID,
		OriginalAmount:  subtotal,
		TotalTransfer:   subtotal,
		PaymentFlow:     enums.PaymentFlowGatewayRedirect,
		PaymentDeadline: time.Now().UTC().Add(24 * time.Hour),
		Status:          status,
		PayoutStatus:    enums.PayoutStatusUnpaid,
	}
	if err := conn.Create(txn).Error; err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	return txn
}
