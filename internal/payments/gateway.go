package payments

import (
	"context"
	"time"

	"github.com/muhamadhazim/fishit-marketplace/pkg/enums"
	pkgerrors "github.com/muhamadhazim/fishit-marketplace/pkg/errors"
	"github.com/muhamadhazim/fishit-marketplace/pkg/ipaymu"
	"github.com/muhamadhazim/fishit-marketplace/pkg/metrics"
)

const defaultGatewayDeadline = 24 * time.Hour

// PaymentCreator is the slice of the gateway client used to open a payment page.
type PaymentCreator interface {
	CreatePayment(ctx context.Context, req ipaymu.PaymentRequest) (*ipaymu.PaymentSession, error)
}

// GatewayRedirect sends the buyer to the hosted iPaymu page. One payment
// covers every seller group in the cart.
type GatewayRedirect struct {
	gateway  PaymentCreator
	deadline time.Duration
	metrics  *metrics.PaymentMetrics
	now      func() time.Time
}

func NewGatewayRedirect(gateway PaymentCreator, deadline time.Duration, m *metrics.PaymentMetrics) *GatewayRedirect {
	if deadline <= 0 {
		deadline = defaultGatewayDeadline
	}
	return &GatewayRedirect{gateway: gateway, deadline: deadline, metrics: m, now: time.Now}
}

func (g *GatewayRedirect) Flow() enums.PaymentFlow {
	return enums.PaymentFlowGatewayRedirect
}

func (g *GatewayRedirect) UniqueCode() (int, error) {
	return 0, nil
}

func (g *GatewayRedirect) Initiate(ctx context.Context, req Request) (*Session, error) {
	if g.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "payment gateway not configured")
	}
	created, err := g.gateway.CreatePayment(ctx, ipaymu.PaymentRequest{
		ReferenceID: req.ReferenceID,
		Items:       req.Items,
		Amount:      req.Amount,
		BuyerName:   req.BuyerName,
		BuyerEmail:  req.BuyerEmail,
	})
	if err != nil {
		g.metrics.IncGatewayCall("create_payment", "error")
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeGateway {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "create gateway payment")
	}
	g.metrics.IncGatewayCall("create_payment", "ok")

	return &Session{
		Flow:          enums.PaymentFlowGatewayRedirect,
		SessionID:     optional(created.SessionID),
		TransactionID: optional(created.TransactionID),
		PaymentURL:    optional(created.PaymentURL),
		Deadline:      g.now().UTC().Add(g.deadline),
	}, nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
