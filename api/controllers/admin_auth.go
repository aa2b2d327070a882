package controllers

import (
	"net/http"

	"github.com/teranga-eats/teranga-backend/api/responses"
	"github.com/teranga-eats/teranga-backend/api/validators"
	"github.com/teranga-eats/teranga-backend/internal/admins"
	pkgerrors "github.com/teranga-eats/teranga-backend/pkg/errors"
	"github.com/teranga-eats/teranga-backend/pkg/logger"
)

// AdminAuthLogin exchanges staff credentials for a bearer token.
func AdminAuthLogin(svc admins.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "admin auth service unavailable"))
			return
		}

		var input admins.LoginInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
