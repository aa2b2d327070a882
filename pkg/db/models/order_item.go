package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem is a single line of an order. Items are immutable after
// creation; there is no post-creation item editing.
type OrderItem struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID       uuid.UUID `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	ProductName   string    `gorm:"column:product_name;not null" json:"product_name"`
	Quantity      int       `gorm:"column:quantity;not null" json:"quantity"`
	UnitPrice     int64     `gorm:"column:unit_price;not null" json:"unit_price"`
	SelectedDrink *string   `gorm:"column:selected_drink" json:"selected_drink,omitempty"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
