package enums

import "fmt"

// TransactionStatus tracks a per-seller transaction through payment and fulfilment.
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "Pending"
	TransactionStatusPaid       TransactionStatus = "Paid"
	TransactionStatusProcessing TransactionStatus = "Processing"
	TransactionStatusSuccess    TransactionStatus = "Success"
	TransactionStatusCancelled  TransactionStatus = "Cancelled"
	TransactionStatusFailed     TransactionStatus = "Failed"
	TransactionStatusExpired    TransactionStatus = "Expired"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusPending,
	TransactionStatusPaid,
	TransactionStatusProcessing,
	TransactionStatusSuccess,
	TransactionStatusCancelled,
	TransactionStatusFailed,
	TransactionStatusExpired,
}

// String implements fmt.Stringer.
func (s TransactionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TransactionStatus.
func (s TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition can leave this status.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TransactionStatusSuccess, TransactionStatusCancelled, TransactionStatusFailed, TransactionStatusExpired:
		return true
	}
	return false
}

// ReleasesStock reports whether entering this status hands reserved stock back.
func (s TransactionStatus) ReleasesStock() bool {
	switch s {
	case TransactionStatusCancelled, TransactionStatusFailed, TransactionStatusExpired:
		return true
	}
	return false
}

// ParseTransactionStatus converts raw input into a TransactionStatus. Matching is case-insensitive.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if equalFold(string(candidate), value) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}
