package transactions

import (
	"github.com/muhamadhazim/fishit-marketplace/pkg/enums"
	pkgerrors "github.com/muhamadhazim/fishit-marketplace/pkg/errors"
)

var legalTransitions = map[enums.TransactionStatus][]enums.TransactionStatus{
	enums.TransactionStatusPending: {
		enums.TransactionStatusPaid,
		enums.TransactionStatusCancelled,
		enums.TransactionStatusFailed,
		enums.TransactionStatusExpired,
	},
	enums.TransactionStatusPaid: {
		enums.TransactionStatusProcessing,
		enums.TransactionStatusCancelled,
		enums.TransactionStatusFailed,
		enums.TransactionStatusExpired,
	},
	enums.TransactionStatusProcessing: {
		enums.TransactionStatusSuccess,
		enums.TransactionStatusCancelled,
		enums.TransactionStatusFailed,
		enums.TransactionStatusExpired,
	},
}

// sellerTransitions are the only moves a seller may make on their own orders.
var sellerTransitions = map[enums.TransactionStatus]enums.TransactionStatus{
	enums.TransactionStatusPaid:       enums.TransactionStatusProcessing,
	enums.TransactionStatusProcessing: enums.TransactionStatusSuccess,
}

// CanTransition reports whether from -> to is an adjacent legal move.
func CanTransition(from, to enums.TransactionStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns a STATE_CONFLICT error naming the pair when the move is illegal.
func CheckTransition(from, to enums.TransactionStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return transitionError(from, to)
}

func transitionError(from, to enums.TransactionStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot transition transaction from %s to %s", from, to).
		WithDetails(map[string]any{"from": from, "to": to})
}

func sellerMayTransition(from, to enums.TransactionStatus) bool {
	next, ok := sellerTransitions[from]
	return ok && next == to
}
