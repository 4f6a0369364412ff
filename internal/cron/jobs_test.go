package cron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/muhamadhazim/fishit-marketplace/internal/transactions"
	"github.com/muhamadhazim/fishit-marketplace/internal/users"
	"github.com/muhamadhazim/fishit-marketplace/pkg/db/dbtest"
	"github.com/muhamadhazim/fishit-marketplace/pkg/db/models"
	"github.com/muhamadhazim/fishit-marketplace/pkg/enums"
	"github.com/muhamadhazim/fishit-marketplace/pkg/logger"
)

func TestTransactionExpiryJobExpiresOverdueAndRestoresStock(t *testing.T) {
	client := dbtest.Open(t)
	conn := client.DB()
	svc, err := transactions.NewService(transactions.NewRepository(conn), client, nil, nil, nil)
	require.NoError(t, err)

	seller := dbtest.Seller(t, conn, "lurelord")
	product := dbtest.Product(t, conn, seller, dbtest.Category(t, conn, "Lures"), "Frog Lure", 7000, 3)
	overdue := dbtest.Transaction(t, conn, seller, product, 2, enums.TransactionStatusPending)
	fresh := dbtest.Transaction(t, conn, seller, product, 1, enums.TransactionStatusPending)
	paid := dbtest.Transaction(t, conn, seller, product, 1, enums.TransactionStatusPaid)
	past := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, conn.Model(&models.Transaction{}).Where("id IN ?", []any{overdue.ID, paid.ID}).
		Update("payment_deadline", past).Error)

	job, err := NewTransactionExpiryJob(TransactionExpiryJobParams{Logger: logger.Nop(), Transactions: svc, BatchSize: 1})
	require.NoError(t, err)
	require.Equal(t, "transaction-expiry", job.Name())
	require.NoError(t, job.Run(context.Background()))

	status := func(id any) enums.TransactionStatus {
		var txn models.Transaction
		require.NoError(t, conn.First(&txn, "id = ?", id).Error)
		return txn.Status
	}
	require.Equal(t, enums.TransactionStatusExpired, status(overdue.ID))
	require.Equal(t, enums.TransactionStatusPending, status(fresh.ID))
	require.Equal(t, enums.TransactionStatusPaid, status(paid.ID))
	require.Equal(t, 5, dbtest.Stock(t, conn, product.ID))

	// second run finds nothing left to expire
	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, 5, dbtest.Stock(t, conn, product.ID))
}

func TestVerificationCleanupJobClearsStaleTokens(t *testing.T) {
	conn := dbtest.Open(t).DB()
	repo := users.NewRepository(conn)
	now := time.Now().UTC()

	create := func(name string, expiry time.Time, verified bool) *models.User {
		token := name + "-token"
		user, err := repo.Create(context.Background(), users.CreateUserDTO{
			Username:           name,
			Email:              name + "@example.com",
			PasswordHash:       "hash",
			Role:               enums.UserRoleSeller,
			IsVerified:         verified,
			VerificationToken:  &token,
			VerificationExpiry: &expiry,
		})
		require.NoError(t, err)
		return user
	}
	stale := create("stale", now.Add(-10*24*time.Hour), false)
	recent := create("recent", now.Add(-time.Hour), false)

	job, err := NewVerificationCleanupJob(VerificationCleanupJobParams{Logger: logger.Nop(), Repository: repo})
	require.NoError(t, err)
	require.NoError(t, job.Run(context.Background()))

	reload := func(id any) models.User {
		var u models.User
		require.NoError(t, conn.First(&u, "id = ?", id).Error)
		return u
	}
	require.Nil(t, reload(stale.ID).VerificationToken)
	require.NotNil(t, reload(recent.ID).VerificationToken)
}
