package transactions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	pkgauth "github.com/muhamadhazim/fishit-marketplace/pkg/auth"
	"github.com/muhamadhazim/fishit-marketplace/pkg/db"
	"github.com/muhamadhazim/fishit-marketplace/pkg/db/dbtest"
	"github.com/muhamadhazim/fishit-marketplace/pkg/db/models"
	"github.com/muhamadhazim/fishit-marketplace/pkg/enums"
	pkgerrors "github.com/muhamadhazim/fishit-marketplace/pkg/errors"
)

type fixture struct {
	client  *db.Client
	svc     Service
	seller  *models.User
	admin   pkgauth.Actor
	product *models.Product
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.Open(t)
	conn := client.DB()
	svc, err := NewService(NewRepository(conn), client, nil, nil, nil)
	require.NoError(t, err)

	seller := dbtest.Seller(t, conn, "reelking")
	admin := dbtest.Admin(t, conn)
	product := dbtest.Product(t, conn, seller, dbtest.Category(t, conn, "Coins"), "Golden Rod", 10000, 3)
	return fixture{
		client:  client,
		svc:     svc,
		seller:  seller,
		admin:   pkgauth.Actor{UserID: admin.ID, Role: enums.UserRoleAdmin},
		product: product,
	}
}

func (f fixture) sellerActor() pkgauth.Actor {
	return pkgauth.Actor{UserID: f.seller.ID, Role: enums.UserRoleSeller}
}

func TestAdminCancelRestoresStockOnce(t *testing.T) {
	f := newFixture(t)
	conn := f.client.DB()
	txn := dbtest.Transaction(t, conn, f.seller, f.product, 2, enums.TransactionStatusPending)

	out, err := f.svc.Transition(context.Background(), f.admin, txn.ID, enums.TransactionStatusCancelled)
	require.NoError(t, err)
	require.Equal(t, enums.TransactionStatusCancelled, out.Status)
	require.Equal(t, 5, dbtest.Stock(t, conn, f.product.ID))

	_, err = f.svc.Transition(context.Background(), f.admin, txn.ID, enums.TransactionStatusCancelled)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict), "got %v", err)
	require.Equal(t, 5, dbtest.Stock(t, conn, f.product.ID))
}

func TestForwardPathStampsCompletion(t *testing.T) {
	f := newFixture(t)
	conn := f.client.DB()
	txn := dbtest.Transaction(t, conn, f.seller, f.product, 1, enums.TransactionStatusPending)
	ctx := context.Background()

	_, err := f.svc.Transition(ctx, f.admin, txn.ID, enums.TransactionStatusPaid)
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, f.sellerActor(), txn.ID, enums.TransactionStatusProcessing)
	require.NoError(t, err)
	out, err := f.svc.Transition(ctx, f.sellerActor(), txn.ID, enums.TransactionStatusSuccess)
	require.NoError(t, err)
	require.Equal(t, enums.TransactionStatusSuccess, out.Status)
	require.NotNil(t, out.CompletedAt)
	require.NotNil(t, out.PaidAt)
	require.Equal(t, 3, dbtest.Stock(t, conn, f.product.ID))
}

func TestIllegalTransitionRejected(t *testing.T) {
	f := newFixture(t)
	txn := dbtest.Transaction(t, f.client.DB(), f.seller, f.product, 1, enums.TransactionStatusPending)

	_, err := f.svc.Transition(context.Background(), f.admin, txn.ID, enums.TransactionStatusSuccess)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	_, err = f.svc.Transition(context.Background(), f.admin, txn.ID, enums.TransactionStatus("Shipped"))
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestSellerRestrictions(t *testing.T) {
	f := newFixture(t)
	conn := f.client.DB()
	ctx := context.Background()
	pending := dbtest.Transaction(t, conn, f.seller, f.product, 1, enums.TransactionStatusPending)

	_, err := f.svc.Transition(ctx, f.sellerActor(), pending.ID, enums.TransactionStatusCancelled)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden), "got %v", err)

	other := dbtest.Seller(t, conn, "otherseller")
	paid := dbtest.Transaction(t, conn, f.seller, f.product, 1, enums.TransactionStatusPaid)
	_, err = f.svc.Transition(ctx, pkgauth.Actor{UserID: other.ID, Role: enums.UserRoleSeller}, paid.ID, enums.TransactionStatusProcessing)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound), "got %v", err)

	_, err = f.svc.Transition(ctx, f.admin, uuid.New(), enums.TransactionStatusPaid)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestLookupsIgnoreCase(t *testing.T) {
	f := newFixture(t)
	conn := f.client.DB()
	txn := dbtest.Transaction(t, conn, f.seller, f.product, 1, enums.TransactionStatusPending)
	ctx := context.Background()

	got, err := f.svc.GetByInvoice(ctx, "  "+txn.InvoiceNumber+" ")
	require.NoError(t, err)
	require.Equal(t, txn.InvoiceNumber, got.InvoiceNumber)

	lower := []byte(txn.InvoiceNumber)
	for i, c := range lower {
		if c >= 'A' && c <= 'Z' {
			lower[i] = c + ('a' - 'A')
		}
	}
	got, err = f.svc.GetByInvoice(ctx, string(lower))
	require.NoError(t, err)
	require.Equal(t, txn.InvoiceNumber, got.InvoiceNumber)

	found, err := f.svc.Search(ctx, "BUYER@example.com")
	require.NoError(t, err)
	require.Len(t, found, 1)

	_, err = f.svc.CheckOrder(ctx, txn.InvoiceNumber, "buyer@EXAMPLE.com")
	require.NoError(t, err)
	_, err = f.svc.CheckOrder(ctx, txn.InvoiceNumber, "someone@else.com")
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Search(ctx, " ")
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestListings(t *testing.T) {
	f := newFixture(t)
	conn := f.client.DB()
	ctx := context.Background()
	other := dbtest.Seller(t, conn, "otherseller")
	dbtest.Transaction(t, conn, f.seller, f.product, 1, enums.TransactionStatusPending)
	dbtest.Transaction(t, conn, f.seller, f.product, 1, enums.TransactionStatusPaid)
	dbtest.Transaction(t, conn, other, f.product, 1, enums.TransactionStatusPaid)

	page, err := f.svc.ListAll(ctx, f.admin, ListInput{Status: "paid"})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)

	page, err = f.svc.ListAll(ctx, f.admin, ListInput{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)

	page, err = f.svc.ListForSeller(ctx, f.sellerActor(), ListInput{})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)

	_, err = f.svc.ListAll(ctx, f.sellerActor(), ListInput{})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))
}

func TestExpireOverdue(t *testing.T) {
	f := newFixture(t)
	conn := f.client.DB()
	overdue := dbtest.Transaction(t, conn, f.seller, f.product, 2, enums.TransactionStatusPending)
	fresh := dbtest.Transaction(t, conn, f.seller, f.product, 1, enums.TransactionStatusPending)
	require.NoError(t, conn.Model(&models.Transaction{}).Where("id = ?", overdue.ID).
		Update("payment_deadline", time.Now().UTC().Add(-time.Minute)).Error)

	n, err := f.svc.ExpireOverdue(context.Background(), time.Now().UTC(), 0)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 5, dbtest.Stock(t, conn, f.product.ID))

	var reloaded models.Transaction
	require.NoError(t, conn.First(&reloaded, "id = ?", overdue.ID).Error)
	require.Equal(t, enums.TransactionStatusExpired, reloaded.Status)
	var untouched models.Transaction
	require.NoError(t, conn.First(&untouched, "id = ?", fresh.ID).Error)
	require.Equal(t, enums.TransactionStatusPending, untouched.Status)

	n, err = f.svc.ExpireOverdue(context.Background(), time.Now().UTC(), 0)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestMachineApplyIsConditional(t *testing.T) {
	f := newFixture(t)
	conn := f.client.DB()
	txn := dbtest.Transaction(t, conn, f.seller, f.product, 1, enums.TransactionStatusPending)
	stale := *txn

	m := NewMachine(nil)
	channel := "va"
	applied, err := m.Apply(context.Background(), conn, txn, Change{To: enums.TransactionStatusPaid, PaymentChannel: &channel})
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, "va", *txn.PaymentChannel)

	// a second writer still holding the Pending snapshot loses
	applied, err = m.Apply(context.Background(), conn, &stale, Change{To: enums.TransactionStatusExpired})
	require.NoError(t, err)
	require.False(t, applied)
	require.Equal(t, 3, dbtest.Stock(t, conn, f.product.ID))
}
