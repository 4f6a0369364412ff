package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/muhamadhazim/fishit-marketplace/pkg/enums"
	"github.com/muhamadhazim/fishit-marketplace/pkg/ipaymu"
)

// Request is the cart-level payment a checkout asks for.
type Request struct {
	ReferenceID string
	BuyerEmail  string
	BuyerName   string
	Items       []ipaymu.LineItem
	Amount      int64
}

// Session is how the buyer is told to pay. Gateway identifiers are nil for
// flows that never reach the gateway.
type Session struct {
	Flow          enums.PaymentFlow
	SessionID     *string
	TransactionID *string
	PaymentURL    *string
	Deadline      time.Time
}

// Strategy is one way of collecting payment for a checkout. Every strategy
// feeds the same transaction state machine.
type Strategy interface {
	Flow() enums.PaymentFlow
	// UniqueCode returns the amount added on top of one transaction's subtotal.
	UniqueCode() (int, error)
	Initiate(ctx context.Context, req Request) (*Session, error)
}

// Selector resolves the strategy for a flow, falling back to a default.
type Selector struct {
	strategies map[enums.PaymentFlow]Strategy
	fallback   enums.PaymentFlow
}

// NewSelector registers strategies and picks the default by flow.
func NewSelector(fallback enums.PaymentFlow, strategies ...Strategy) (*Selector, error) {
	s := &Selector{strategies: make(map[enums.PaymentFlow]Strategy, len(strategies)), fallback: fallback}
	for _, strategy := range strategies {
		if strategy == nil {
			continue
		}
		s.strategies[strategy.Flow()] = strategy
	}
	if _, ok := s.strategies[fallback]; !ok {
		return nil, fmt.Errorf("no payment strategy registered for default flow %q", fallback)
	}
	return s, nil
}

// Default returns the configured default strategy.
func (s *Selector) Default() Strategy {
	return s.strategies[s.fallback]
}

// For returns the strategy for flow or the default when flow is empty.
func (s *Selector) For(flow enums.PaymentFlow) (Strategy, bool) {
	if flow == "" {
		return s.Default(), true
	}
	strategy, ok := s.strategies[flow]
	return strategy, ok
}
