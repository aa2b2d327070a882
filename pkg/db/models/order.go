package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/teranga-eats/teranga-backend/pkg/enums"
)

// Order is a customer's purchase request: items, totals, fulfillment type
// and fulfillment status. Payments reference orders by id, never the
// reverse.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderNumber     string            `gorm:"column:order_number;not null;uniqueIndex" json:"order_number"`
	CustomerName    string            `gorm:"column:customer_name;not null" json:"customer_name"`
	CustomerPhone   string            `gorm:"column:customer_phone;not null" json:"customer_phone"`
	DeliveryAddress *string           `gorm:"column:delivery_address" json:"delivery_address,omitempty"`
	OrderType       enums.OrderType   `gorm:"column:order_type;type:text;not null" json:"order_type"`
	Status          enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'" json:"status"`
	Total           int64             `gorm:"column:total;not null" json:"total"`
	DeliveryFee     int64             `gorm:"column:delivery_fee;not null;default:0" json:"delivery_fee"`
	Items           []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
