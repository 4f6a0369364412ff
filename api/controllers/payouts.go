package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/muhamadhazim/fishit-marketplace/api/responses"
	"github.com/muhamadhazim/fishit-marketplace/api/validators"
	"github.com/muhamadhazim/fishit-marketplace/internal/payouts"
	pkgerrors "github.com/muhamadhazim/fishit-marketplace/pkg/errors"
	"github.com/muhamadhazim/fishit-marketplace/pkg/logger"
)

type markPaidRequest struct {
	SellerID string  `json:"seller_id" validate:"required,uuid"`
	Note     *string `json:"note,omitempty" validate:"omitempty,max=500"`
}

// PayoutSummary groups settled, unpaid transactions by seller.
func PayoutSummary(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "payout service")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		summary, err := svc.Summary(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

func PayoutMarkPaid(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "payout service")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body markPaidRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sellerID, err := uuid.Parse(body.SellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid seller_id"))
			return
		}

		payout, err := svc.MarkPaid(r.Context(), actor, payouts.MarkPaidInput{SellerID: sellerID, Note: body.Note})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, payout)
	}
}

func PayoutHistory(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return listPayouts(svc, logg, true)
}

func MyPayouts(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return listPayouts(svc, logg, false)
}

func listPayouts(svc payouts.Service, logg *logger.Logger, all bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "payout service")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		page, err := parsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := payouts.ListInput{Limit: page.Limit, Cursor: page.Cursor}
		var result any
		if all {
			result, err = svc.History(r.Context(), actor, input)
		} else {
			result, err = svc.ForSeller(r.Context(), actor, input)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
