package orders

import (
	"github.com/teranga-eats/teranga-backend/pkg/db/models"
)

// CreateItemInput is one cart line as submitted by the storefront.
type CreateItemInput struct {
	ProductName   string  `json:"product_name" validate:"required"`
	Quantity      int     `json:"quantity" validate:"required,gt=0"`
	UnitPrice     int64   `json:"unit_price" validate:"required,gte=0"`
	SelectedDrink *string `json:"selected_drink,omitempty"`
}

// CreateOrderInput captures a checkout submission. Totals are always
// recomputed server side; any client-sent total is ignored.
type CreateOrderInput struct {
	CustomerName    string            `json:"customer_name" validate:"required"`
	CustomerPhone   string            `json:"customer_phone" validate:"required"`
	DeliveryAddress *string           `json:"delivery_address,omitempty"`
	OrderType       string            `json:"order_type" validate:"required,oneof=delivery pickup"`
	Items           []CreateItemInput `json:"items" validate:"required,min=1,dive"`
}

// UpdateOrderInput is the typed patch accepted by the order update endpoint.
// Only contact details are patchable; totals, items, type and status never
// change through this path.
type UpdateOrderInput struct {
	CustomerName    *string `json:"customer_name,omitempty" validate:"omitempty,min=1"`
	CustomerPhone   *string `json:"customer_phone,omitempty" validate:"omitempty,min=1"`
	DeliveryAddress *string `json:"delivery_address,omitempty"`
}

// OrderResponse is the public shape of an order.
type OrderResponse struct {
	Order *models.Order `json:"order"`
}
