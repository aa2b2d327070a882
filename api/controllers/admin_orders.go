package controllers

import (
	"net/http"
	"strings"

	"github.com/teranga-eats/teranga-backend/api/responses"
	"github.com/teranga-eats/teranga-backend/api/validators"
	"github.com/teranga-eats/teranga-backend/internal/fulfillment"
	"github.com/teranga-eats/teranga-backend/internal/orders"
	"github.com/teranga-eats/teranga-backend/pkg/enums"
	pkgerrors "github.com/teranga-eats/teranga-backend/pkg/errors"
	"github.com/teranga-eats/teranga-backend/pkg/logger"
	"github.com/teranga-eats/teranga-backend/pkg/pagination"
)

// AdminOrderList pages the fulfillment queue, optionally filtered by
// status and order type.
func AdminOrderList(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters, err := buildAdminOrderFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func buildAdminOrderFilters(r *http.Request) (orders.ListFilters, error) {
	var filters orders.ListFilters

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return filters, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
		}
		filters.Status = &status
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("order_type")); raw != "" {
		orderType, err := enums.ParseOrderType(raw)
		if err != nil {
			return filters, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
		}
		filters.OrderType = &orderType
	}
	return filters, nil
}

// AdminOrderAdvance moves an order one step along its fulfillment ladder.
func AdminOrderAdvance(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Advance(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type setStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// AdminOrderSetStatus jumps an order to an explicit status. Cancellation
// routes through the dedicated cancel path; other terminal jumps are
// rejected by the service.
func AdminOrderSetStatus(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body setStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseOrderStatus(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, err.Error()))
			return
		}

		var order any
		if status == enums.OrderStatusCancelled {
			order, err = svc.Cancel(r.Context(), orderID)
		} else {
			order, err = svc.SetStatus(r.Context(), orderID, status)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
