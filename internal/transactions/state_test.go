package transactions

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/muhamadhazim/fishit-marketplace/pkg/enums"
	pkgerrors "github.com/muhamadhazim/fishit-marketplace/pkg/errors"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to enums.TransactionStatus
		ok       bool
	}{
		{enums.TransactionStatusPending, enums.TransactionStatusPaid, true},
		{enums.TransactionStatusPaid, enums.TransactionStatusProcessing, true},
		{enums.TransactionStatusProcessing, enums.TransactionStatusSuccess, true},
		{enums.TransactionStatusPending, enums.TransactionStatusCancelled, true},
		{enums.TransactionStatusProcessing, enums.TransactionStatusExpired, true},
		{enums.TransactionStatusPending, enums.TransactionStatusProcessing, false},
		{enums.TransactionStatusPending, enums.TransactionStatusSuccess, false},
		{enums.TransactionStatusPaid, enums.TransactionStatusPending, false},
		{enums.TransactionStatusSuccess, enums.TransactionStatusCancelled, false},
		{enums.TransactionStatusCancelled, enums.TransactionStatusCancelled, false},
		{enums.TransactionStatusExpired, enums.TransactionStatusPaid, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestCheckTransitionNamesThePair(t *testing.T) {
	err := CheckTransition(enums.TransactionStatusSuccess, enums.TransactionStatusPaid)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	require.Contains(t, typed.Message(), "Success")
	require.Contains(t, typed.Message(), "Paid")
	require.Equal(t, map[string]any{"from": enums.TransactionStatusSuccess, "to": enums.TransactionStatusPaid}, typed.Details())
}

func TestSellerMayTransition(t *testing.T) {
	require.True(t, sellerMayTransition(enums.TransactionStatusPaid, enums.TransactionStatusProcessing))
	require.True(t, sellerMayTransition(enums.TransactionStatusProcessing, enums.TransactionStatusSuccess))
	require.False(t, sellerMayTransition(enums.TransactionStatusPending, enums.TransactionStatusCancelled))
	require.False(t, sellerMayTransition(enums.TransactionStatusPaid, enums.TransactionStatusCancelled))
}
