package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics tracks the checkout, gateway and payout pipeline.
type PaymentMetrics struct {
	checkouts       *prometheus.CounterVec
	gatewayCalls    *prometheus.CounterVec
	unknownStatuses *prometheus.CounterVec
	callbacks       *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	payouts         prometheus.Counter
	payoutAmount    prometheus.Counter
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	m := &PaymentMetrics{
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fishit_checkout_total",
			Help: "Checkout attempts by payment flow and outcome.",
		}, []string{"flow", "outcome"}),
		gatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fishit_payment_gateway_requests_total",
			Help: "Payment gateway requests by operation and outcome.",
		}, []string{"operation", "outcome"}),
		unknownStatuses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fishit_payment_gateway_unknown_status_total",
			Help: "Gateway status codes that did not map to a known transaction status.",
		}, []string{"code"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fishit_payment_callbacks_total",
			Help: "Gateway callbacks by reconciliation outcome.",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fishit_transaction_transitions_total",
			Help: "Applied transaction status transitions.",
		}, []string{"from", "to"}),
		payouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fishit_payouts_total",
			Help: "Payout batches recorded.",
		}),
		payoutAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fishit_payout_amount_idr_total",
			Help: "Sum of paid-out amounts in IDR.",
		}),
	}
	reg.MustRegister(m.checkouts, m.gatewayCalls, m.unknownStatuses, m.callbacks, m.transitions, m.payouts, m.payoutAmount)
	return m
}

func (m *PaymentMetrics) IncCheckout(flow, outcome string) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(flow), normalizeLabel(outcome)).Inc()
}

func (m *PaymentMetrics) IncGatewayCall(operation, outcome string) {
	if m == nil || m.gatewayCalls == nil {
		return
	}
	m.gatewayCalls.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

// IncUnknownStatus counts a gateway status code that fell through the mapping table.
func (m *PaymentMetrics) IncUnknownStatus(code string) {
	if m == nil || m.unknownStatuses == nil {
		return
	}
	m.unknownStatuses.WithLabelValues(normalizeLabel(code)).Inc()
}

func (m *PaymentMetrics) IncCallback(outcome string) {
	if m == nil || m.callbacks == nil {
		return
	}
	m.callbacks.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *PaymentMetrics) IncTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (m *PaymentMetrics) ObservePayout(amount int64) {
	if m == nil || m.payouts == nil {
		return
	}
	m.payouts.Inc()
	m.payoutAmount.Add(float64(amount))
}
