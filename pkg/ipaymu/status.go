package ipaymu

import (
	"strings"

	"github.com/muhamadhazim/fishit-marketplace/pkg/enums"
)

var statusTable = map[string]enums.TransactionStatus{
	"0":        enums.TransactionStatusPending,
	"pending":  enums.TransactionStatusPending,
	"-1":       enums.TransactionStatusPending,
	"1":        enums.TransactionStatusPaid,
	"berhasil": enums.TransactionStatusPaid,
	"success":  enums.TransactionStatusPaid,
	"paid":     enums.TransactionStatusPaid,
	"-2":       enums.TransactionStatusExpired,
	"expired":  enums.TransactionStatusExpired,
	"2":        enums.TransactionStatusFailed,
	"batal":    enums.TransactionStatusFailed,
	"failed":   enums.TransactionStatusFailed,
}

// MapStatus translates a gateway status code into a transaction status. An
// unrecognised code maps to Pending with known=false so callers can alert.
func MapStatus(code string) (status enums.TransactionStatus, known bool) {
	if mapped, ok := statusTable[strings.ToLower(strings.TrimSpace(code))]; ok {
		return mapped, true
	}
	return enums.TransactionStatusPending, false
}
