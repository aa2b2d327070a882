package checkout

import (
	"github.com/teranga-eats/teranga-backend/internal/orders"
	"github.com/teranga-eats/teranga-backend/pkg/db/models"
)

// PlaceOrderInput is the full checkout submission: the cart plus the chosen
// payment channel.
type PlaceOrderInput struct {
	Order  orders.CreateOrderInput `json:"order" validate:"required"`
	Method string                  `json:"payment_method" validate:"required,oneof=wave orange-money"`
}

// InitializeInput starts (or restarts) the gateway flow for an order.
type InitializeInput struct {
	OrderID string `json:"order_id" validate:"required,uuid"`
	Method  string `json:"payment_method,omitempty" validate:"omitempty,oneof=wave orange-money"`
}

// CheckoutResult is returned once the gateway has an invoice for the order.
type CheckoutResult struct {
	Order         *models.Order   `json:"order"`
	Payment       *models.Payment `json:"payment"`
	PaymentURL    string          `json:"payment_url"`
	Token         string          `json:"token"`
	TransactionID string          `json:"transaction_id"`
}

// ReturnStatus is the advisory view served to return-path pages. It reports
// the reconciled store state and never asserts success on its own.
type ReturnStatus struct {
	Order     *models.Order   `json:"order"`
	Payment   *models.Payment `json:"payment"`
	Completed bool            `json:"completed"`
}
