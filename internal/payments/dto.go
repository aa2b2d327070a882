package payments

import (
	"github.com/google/uuid"
)

// CreatePaymentInput registers a payment attempt for an existing order.
type CreatePaymentInput struct {
	OrderID uuid.UUID
	Method  string
	// Amount is required and must equal the order total.
	Amount int64
}

// ProcessingInput records the gateway handles once an invoice exists.
type ProcessingInput struct {
	PaymentID  uuid.UUID
	Token      string
	InvoiceURL string
}

// UpdatePaymentInput is the typed patch accepted by the payment update
// endpoint. Only the method is patchable, and only while the payment is
// still pending.
type UpdatePaymentInput struct {
	Method *string `json:"payment_method,omitempty" validate:"omitempty,oneof=wave orange-money"`
}

// TerminalInput finalizes a payment attempt.
type TerminalInput struct {
	PaymentID    uuid.UUID
	ErrorMessage *string
}
