package enums

import "fmt"

// OrderStatus tracks the kitchen/delivery progress of an order, independent
// of payment state.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusPreparing      OrderStatus = "preparing"
	OrderStatusReady          OrderStatus = "ready"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// Fulfillment ladders per order type. Pickup orders skip out_for_delivery.
var (
	deliveryLadder = []OrderStatus{
		OrderStatusPending,
		OrderStatusConfirmed,
		OrderStatusPreparing,
		OrderStatusReady,
		OrderStatusOutForDelivery,
		OrderStatusDelivered,
	}
	pickupLadder = []OrderStatus{
		OrderStatusPending,
		OrderStatusConfirmed,
		OrderStatusPreparing,
		OrderStatusReady,
		OrderStatusDelivered,
	}
)

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are permitted.
func (o OrderStatus) IsTerminal() bool {
	return o == OrderStatusDelivered || o == OrderStatusCancelled
}

// FulfillmentLadder returns the ordered status sequence for an order type.
func FulfillmentLadder(orderType OrderType) []OrderStatus {
	if orderType == OrderTypePickup {
		return pickupLadder
	}
	return deliveryLadder
}

// NextOrderStatus returns the single next step in the ladder for the given
// order type, or an error when the current status is terminal or off-ladder.
func NextOrderStatus(orderType OrderType, current OrderStatus) (OrderStatus, error) {
	if current.IsTerminal() {
		return "", fmt.Errorf("order status %q is terminal", current)
	}
	ladder := FulfillmentLadder(orderType)
	for i, step := range ladder {
		if step == current {
			return ladder[i+1], nil
		}
	}
	return "", fmt.Errorf("order status %q has no next step for %s orders", current, orderType)
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
