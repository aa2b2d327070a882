package controllers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/teranga-eats/teranga-backend/api/responses"
	"github.com/teranga-eats/teranga-backend/api/validators"
	"github.com/teranga-eats/teranga-backend/internal/checkout"
	paydunyawebhook "github.com/teranga-eats/teranga-backend/internal/webhooks/paydunya"
	pkgerrors "github.com/teranga-eats/teranga-backend/pkg/errors"
	"github.com/teranga-eats/teranga-backend/pkg/logger"
)

type callbackHandler interface {
	HandleCallback(ctx context.Context, event *paydunyawebhook.CallbackEvent) (*paydunyawebhook.CallbackResult, error)
}

// PayDunyaInitialize starts (or restarts) the gateway flow for an order.
// Failed and cancelled payments are reset in place; a live invoice is
// returned as-is instead of minting a second one.
func PayDunyaInitialize(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var input checkout.InitializeInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := uuid.Parse(input.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		result, err := svc.Initialize(r.Context(), orderID, input.Method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// PayDunyaCallback receives gateway deliveries. Structurally invalid bodies
// are rejected with 400; everything else is answered 200 so the gateway never
// retries, with reconciliation problems logged and resolved out of band.
func PayDunyaCallback(svc callbackHandler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		var event paydunyawebhook.CallbackEvent
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed callback body"))
			return
		}

		result, err := svc.HandleCallback(ctx, &event)
		if err != nil {
			// A validation error means the delivery itself is broken (e.g. no
			// token); only those bounce back to the sender.
			if pkgerrors.Is(err, pkgerrors.CodeValidation) {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if logg != nil {
				logg.Error(ctx, "callback reconciliation failed", err)
			}
			responses.WriteSuccess(w, map[string]string{"outcome": "error"})
			return
		}
		responses.WriteSuccess(w, map[string]string{"outcome": string(result.Outcome)})
	}
}

// PayDunyaStatus reports the payment state for an order, polling the
// gateway first when a live invoice token exists.
func PayDunyaStatus(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := svc.PaymentStatus(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}
