package enums

import (
	"fmt"
	"strings"
)

// PaymentFlow names how a buyer settles a checkout.
type PaymentFlow string

const (
	PaymentFlowManualTransfer  PaymentFlow = "manual_transfer"
	PaymentFlowGatewayRedirect PaymentFlow = "gateway_redirect"
)

var validPaymentFlows = []PaymentFlow{
	PaymentFlowManualTransfer,
	PaymentFlowGatewayRedirect,
}

// String implements fmt.Stringer.
func (p PaymentFlow) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentFlow.
func (p PaymentFlow) IsValid() bool {
	for _, candidate := range validPaymentFlows {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentFlow accepts the canonical names plus the short config aliases.
func ParsePaymentFlow(value string) (PaymentFlow, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "manual", string(PaymentFlowManualTransfer):
		return PaymentFlowManualTransfer, nil
	case "gateway", string(PaymentFlowGatewayRedirect):
		return PaymentFlowGatewayRedirect, nil
	}
	return "", fmt.Errorf("invalid payment flow %q", value)
}

func equalFold(a, b string) bool {
	return strings.EqualFold(a, strings.TrimSpace(b))
}
