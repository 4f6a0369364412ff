package payments

import (
	"context"
	"time"

	"github.com/muhamadhazim/fishit-marketplace/pkg/enums"
	"github.com/muhamadhazim/fishit-marketplace/pkg/security"
)

const (
	defaultManualDeadline = 2 * time.Hour
	minUniqueCode         = 1
	maxUniqueCode         = 999
)

// ManualTransfer asks the buyer for a direct bank transfer. A small random
// code is added to each total so incoming transfers can be told apart.
type ManualTransfer struct {
	deadline time.Duration
	now      func() time.Time
}

func NewManualTransfer(deadline time.Duration) *ManualTransfer {
	if deadline <= 0 {
		deadline = defaultManualDeadline
	}
	return &ManualTransfer{deadline: deadline, now: time.Now}
}

func (m *ManualTransfer) Flow() enums.PaymentFlow {
	return enums.PaymentFlowManualTransfer
}

func (m *ManualTransfer) UniqueCode() (int, error) {
	return security.RandomInt(minUniqueCode, maxUniqueCode)
}

func (m *ManualTransfer) Initiate(context.Context, Request) (*Session, error) {
	return &Session{
		Flow:     enums.PaymentFlowManualTransfer,
		Deadline: m.now().UTC().Add(m.deadline),
	}, nil
}
