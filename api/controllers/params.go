package controllers

import (
	"net/http"
	"strings"

	"github.com/muhamadhazim/fishit-marketplace/api/middleware"
	"github.com/muhamadhazim/fishit-marketplace/api/responses"
	"github.com/muhamadhazim/fishit-marketplace/api/validators"
	pkgauth "github.com/muhamadhazim/fishit-marketplace/pkg/auth"
	pkgerrors "github.com/muhamadhazim/fishit-marketplace/pkg/errors"
	"github.com/muhamadhazim/fishit-marketplace/pkg/logger"
	"github.com/muhamadhazim/fishit-marketplace/pkg/pagination"
)

// requireActor writes a 401 and returns false when Auth did not run.
func requireActor(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (pkgauth.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
		return pkgauth.Actor{}, false
	}
	return actor, true
}

type pageParams struct {
	Limit  int
	Cursor string
}

func parsePage(r *http.Request) (pageParams, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pageParams{}, err
	}
	return pageParams{Limit: limit, Cursor: strings.TrimSpace(r.URL.Query().Get("cursor"))}, nil
}

func unavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger, what string) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, what+" unavailable"))
}
