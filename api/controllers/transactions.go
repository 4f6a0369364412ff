package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/muhamadhazim/fishit-marketplace/api/responses"
	"github.com/muhamadhazim/fishit-marketplace/api/validators"
	"github.com/muhamadhazim/fishit-marketplace/internal/checkout"
	"github.com/muhamadhazim/fishit-marketplace/internal/checkout/helpers"
	"github.com/muhamadhazim/fishit-marketplace/internal/transactions"
	ipaymuwebhook "github.com/muhamadhazim/fishit-marketplace/internal/webhooks/ipaymu"
	"github.com/muhamadhazim/fishit-marketplace/pkg/enums"
	pkgerrors "github.com/muhamadhazim/fishit-marketplace/pkg/errors"
	"github.com/muhamadhazim/fishit-marketplace/pkg/ipaymu"
	"github.com/muhamadhazim/fishit-marketplace/pkg/logger"
)

type checkoutItemRequest struct {
	ID       string `json:"id" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
}

type checkoutRequest struct {
	Items          []checkoutItemRequest `json:"items" validate:"required,min=1,dive"`
	Email          string                `json:"email" validate:"required,email"`
	RobloxUsername string                `json:"roblox_username" validate:"omitempty,max=64"`
	PaymentFlow    string                `json:"payment_flow" validate:"omitempty"`
}

func (p checkoutRequest) toInput() (checkout.Input, error) {
	lines := make([]helpers.CartLine, 0, len(p.Items))
	for _, item := range p.Items {
		id, err := uuid.Parse(item.ID)
		if err != nil {
			return checkout.Input{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id")
		}
		lines = append(lines, helpers.CartLine{ProductID: id, Quantity: item.Quantity})
	}
	input := checkout.Input{
		Items:          lines,
		Email:          p.Email,
		RobloxUsername: validators.SanitizeString(p.RobloxUsername, 64),
	}
	if flow := strings.TrimSpace(p.PaymentFlow); flow != "" {
		parsed, err := enums.ParsePaymentFlow(flow)
		if err != nil {
			return checkout.Input{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment_flow")
		}
		input.Flow = parsed
	}
	return input, nil
}

type searchRequest struct {
	Query string `json:"query" validate:"required,max=100"`
}

type checkOrderRequest struct {
	InvoiceNumber string `json:"invoice_number" validate:"required,max=64"`
	Email         string `json:"email" validate:"required,email"`
}

type transitionRequest struct {
	Status string `json:"status" validate:"required"`
}

type syncer interface {
	Sync(ctx context.Context, transactionID uuid.UUID) (*ipaymuwebhook.Result, error)
}

type paymentMethodLister interface {
	PaymentMethods(ctx context.Context) ([]ipaymu.PaymentMethod, error)
}

// Checkout turns the buyer's cart into per-seller transactions.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "checkout service")
			return
		}

		var body checkoutRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := body.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Checkout(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func CheckInvoice(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "transaction service")
			return
		}
		invoice := strings.TrimSpace(chi.URLParam(r, "invoice"))
		if invoice == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invoice number is required"))
			return
		}

		order, err := svc.GetByInvoice(r.Context(), invoice)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// SearchTransactions looks orders up by invoice number or buyer email.
func SearchTransactions(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "transaction service")
			return
		}
		var body searchRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orders, err := svc.Search(r.Context(), body.Query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders)
	}
}

func CheckOrder(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "transaction service")
			return
		}
		var body checkOrderRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CheckOrder(r.Context(), body.InvoiceNumber, body.Email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// PaymentMethods lists the gateway's channels. Without gateway credentials it
// returns an empty list so the storefront falls back to manual transfer.
func PaymentMethods(gateway paymentMethodLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gateway == nil {
			responses.WriteSuccess(w, []ipaymu.PaymentMethod{})
			return
		}
		methods, err := gateway.PaymentMethods(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, methods)
	}
}

func SellerTransactions(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return listTransactions(svc, logg, false)
}

func AdminTransactions(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return listTransactions(svc, logg, true)
}

func listTransactions(svc transactions.Service, logg *logger.Logger, all bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "transaction service")
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

		input := transactions.ListInput{
			Status: strings.TrimSpace(r.URL.Query().Get("status")),
			Limit:  page.Limit,
			Cursor: page.Cursor,
		}
		var result any
		if all {
			result, err = svc.ListAll(r.Context(), actor, input)
		} else {
			result, err = svc.ListForSeller(r.Context(), actor, input)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// UpdateTransactionStatus moves a transaction along the state machine. Sellers
// and admins share the handler; the service enforces who may do what.
func UpdateTransactionStatus(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "transaction service")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParsePathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body transitionRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := enums.ParseTransactionStatus(strings.TrimSpace(body.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		txn, err := svc.Transition(r.Context(), actor, id, to)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, txn)
	}
}

// AdminSyncTransaction re-reads the gateway status and applies it like a callback.
func AdminSyncTransaction(rec syncer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rec == nil {
			unavailable(w, r, logg, "reconciler")
			return
		}
		id, err := validators.ParsePathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := rec.Sync(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
