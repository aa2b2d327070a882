package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/teranga-eats/teranga-backend/pkg/enums"
)

// Payment is a single payment attempt against an order, tracked
// independently of fulfillment status.
type Payment struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID           uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	Amount            int64               `gorm:"column:amount;not null" json:"amount"`
	Method            enums.PaymentMethod `gorm:"column:payment_method;type:text;not null" json:"payment_method"`
	Status            enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'" json:"status"`
	GatewayToken      *string             `gorm:"column:gateway_token" json:"gateway_token,omitempty"`
	GatewayInvoiceURL *string             `gorm:"column:gateway_invoice_url" json:"gateway_invoice_url,omitempty"`
	ErrorMessage      *string             `gorm:"column:error_message" json:"error_message,omitempty"`
	PaidAt            *time.Time          `gorm:"column:paid_at" json:"paid_at,omitempty"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
