package controllers

import (
	"context"
	"net/http"

	"github.com/muhamadhazim/fishit-marketplace/api/responses"
	pkgerrors "github.com/muhamadhazim/fishit-marketplace/pkg/errors"
	"github.com/muhamadhazim/fishit-marketplace/pkg/ipaymu"
	"github.com/muhamadhazim/fishit-marketplace/pkg/logger"
)

type balanceReader interface {
	Balance(ctx context.Context) (*ipaymu.Balance, error)
}

type balanceResponse struct {
	VA              string `json:"va"`
	MerchantBalance string `json:"merchant_balance"`
	MemberBalance   string `json:"member_balance"`
}

// AdminBalance reports the merchant's balance held at the gateway.
func AdminBalance(gateway balanceReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gateway == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeGateway, "payment gateway not configured"))
			return
		}
		balance, err := gateway.Balance(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balanceResponse{
			VA:              balance.VA,
			MerchantBalance: balance.MerchantBalance.StringFixed(2),
			MemberBalance:   balance.MemberBalance.StringFixed(2),
		})
	}
}
