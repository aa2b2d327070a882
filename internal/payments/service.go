package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/teranga-eats/teranga-backend/pkg/db/models"
	"github.com/teranga-eats/teranga-backend/pkg/enums"
	pkgerrors "github.com/teranga-eats/teranga-backend/pkg/errors"
	"github.com/teranga-eats/teranga-backend/pkg/metrics"
)

// OrderFinder loads orders so payment creation can cross-check them.
type OrderFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// Service defines payment-level operations.
type Service interface {
	Create(ctx context.Context, input CreatePaymentInput) (*models.Payment, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	GetByToken(ctx context.Context, token string) (*models.Payment, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)
	// Update merges the typed patch into the stored payment. Only the
	// method is patchable, and only while the payment is pending.
	Update(ctx context.Context, id uuid.UUID, input UpdatePaymentInput) (*models.Payment, error)
	MarkProcessing(ctx context.Context, input ProcessingInput) (*models.Payment, error)
	Complete(ctx context.Context, paymentID uuid.UUID, paidAt time.Time) (*models.Payment, error)
	Fail(ctx context.Context, input TerminalInput) (*models.Payment, error)
	Cancel(ctx context.Context, input TerminalInput) (*models.Payment, error)
	// ResetForRetry rewinds a failed or cancelled payment to pending for a
	// fresh gateway attempt. The same row is reused; there is no attempt
	// history table.
	ResetForRetry(ctx context.Context, paymentID uuid.UUID, method enums.PaymentMethod) (*models.Payment, error)
}

type service struct {
	repo    Repository
	orders  OrderFinder
	metrics *metrics.PaymentMetrics
}

// NewService builds a payments service with the required dependencies.
func NewService(repo Repository, orders OrderFinder, m *metrics.PaymentMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order finder required")
	}
	return &service{repo: repo, orders: orders, metrics: m}, nil
}

func (s *service) Create(ctx context.Context, input CreatePaymentInput) (*models.Payment, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount required")
	}
	method, err := enums.ParsePaymentMethod(input.Method)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}

	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order for payment")
	}
	if input.Amount != order.Total {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must match order total").
			WithDetails(map[string]int64{"order_total": order.Total, "amount": input.Amount})
	}

	if existing, err := s.repo.FindLatestByOrder(ctx, input.OrderID); err == nil {
		if existing.Status == enums.PaymentStatusCompleted {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already has a completed payment")
		}
	} else if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing payments")
	}

	payment := &models.Payment{
		ID:      uuid.New(),
		OrderID: order.ID,
		Amount:  order.Total,
		Method:  method,
		Status:  enums.PaymentStatusPending,
	}
	created, err := s.repo.Create(ctx, payment)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payment")
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

func (s *service) GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	payment, err := s.repo.FindLatestByOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no payment for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment by order")
	}
	return payment, nil
}

func (s *service) GetByToken(ctx context.Context, token string) (*models.Payment, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway token required")
	}
	payment, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no payment for token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment by token")
	}
	return payment, nil
}

func (s *service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	rows, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	return rows, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdatePaymentInput) (*models.Payment, error) {
	payment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Method == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no updatable fields in request")
	}
	method, err := enums.ParsePaymentMethod(*input.Method)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}
	if payment.Status != enums.PaymentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("payment method cannot change while %s", payment.Status))
	}

	if err := s.repo.Update(ctx, id, map[string]any{"payment_method": method}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
	}
	return s.Get(ctx, id)
}

func (s *service) MarkProcessing(ctx context.Context, input ProcessingInput) (*models.Payment, error) {
	if input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if strings.TrimSpace(input.Token) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway token required")
	}

	payment, err := s.Get(ctx, input.PaymentID)
	if err != nil {
		return nil, err
	}
	if !payment.Status.CanTransitionTo(enums.PaymentStatusProcessing) {
		return nil, stateConflict(payment.Status, enums.PaymentStatusProcessing)
	}

	updates := map[string]any{
		"status":              enums.PaymentStatusProcessing,
		"gateway_token":       input.Token,
		"gateway_invoice_url": input.InvoiceURL,
	}
	rows, err := s.repo.UpdateStatusFrom(ctx, payment.ID, []enums.PaymentStatus{enums.PaymentStatusPending}, updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment processing")
	}
	if rows == 0 {
		current, loadErr := s.Get(ctx, payment.ID)
		if loadErr != nil {
			return nil, loadErr
		}
		return nil, stateConflict(current.Status, enums.PaymentStatusProcessing)
	}
	s.metrics.IncTransition(enums.PaymentStatusProcessing.String())
	return s.Get(ctx, payment.ID)
}

func (s *service) Complete(ctx context.Context, paymentID uuid.UUID, paidAt time.Time) (*models.Payment, error) {
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}
	return s.finalize(ctx, paymentID, enums.PaymentStatusCompleted, map[string]any{
		"status":  enums.PaymentStatusCompleted,
		"paid_at": paidAt,
	})
}

func (s *service) Fail(ctx context.Context, input TerminalInput) (*models.Payment, error) {
	return s.finalize(ctx, input.PaymentID, enums.PaymentStatusFailed, map[string]any{
		"status":        enums.PaymentStatusFailed,
		"error_message": input.ErrorMessage,
	})
}

func (s *service) Cancel(ctx context.Context, input TerminalInput) (*models.Payment, error) {
	return s.finalize(ctx, input.PaymentID, enums.PaymentStatusCancelled, map[string]any{
		"status":        enums.PaymentStatusCancelled,
		"error_message": input.ErrorMessage,
	})
}

// finalize applies a terminal status under first-terminal-wins rules:
// re-applying the stored terminal status is a no-op, a different terminal
// status is a conflict, and the actual write is a compare-and-set so a
// concurrent winner is detected after the fact.
func (s *service) finalize(ctx context.Context, paymentID uuid.UUID, target enums.PaymentStatus, updates map[string]any) (*models.Payment, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}

	payment, err := s.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status == target {
		return payment, nil
	}
	if payment.Status.IsTerminal() {
		return nil, terminalConflict(payment.Status, target)
	}
	if !payment.Status.CanTransitionTo(target) {
		return nil, stateConflict(payment.Status, target)
	}

	expected := transitionSources(target)
	rows, err := s.repo.UpdateStatusFrom(ctx, paymentID, expected, updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalize payment")
	}
	if rows == 0 {
		current, loadErr := s.Get(ctx, paymentID)
		if loadErr != nil {
			return nil, loadErr
		}
		if current.Status == target {
			return current, nil
		}
		if current.Status.IsTerminal() {
			return nil, terminalConflict(current.Status, target)
		}
		return nil, stateConflict(current.Status, target)
	}
	s.metrics.IncTransition(target.String())
	return s.Get(ctx, paymentID)
}

func (s *service) ResetForRetry(ctx context.Context, paymentID uuid.UUID, method enums.PaymentMethod) (*models.Payment, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", method))
	}

	payment, err := s.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status == enums.PaymentStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "completed payments cannot be retried")
	}
	if payment.Status != enums.PaymentStatusFailed && payment.Status != enums.PaymentStatusCancelled {
		return nil, stateConflict(payment.Status, enums.PaymentStatusPending)
	}

	updates := map[string]any{
		"status":              enums.PaymentStatusPending,
		"payment_method":      method,
		"gateway_token":       nil,
		"gateway_invoice_url": nil,
		"error_message":       nil,
	}
	expected := []enums.PaymentStatus{enums.PaymentStatusFailed, enums.PaymentStatusCancelled}
	rows, err := s.repo.UpdateStatusFrom(ctx, paymentID, expected, updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset payment for retry")
	}
	if rows == 0 {
		current, loadErr := s.Get(ctx, paymentID)
		if loadErr != nil {
			return nil, loadErr
		}
		return nil, stateConflict(current.Status, enums.PaymentStatusPending)
	}
	return s.Get(ctx, paymentID)
}

// transitionSources returns the states the machine allows target to be
// entered from.
func transitionSources(target enums.PaymentStatus) []enums.PaymentStatus {
	sources := []enums.PaymentStatus{}
	for _, candidate := range []enums.PaymentStatus{enums.PaymentStatusPending, enums.PaymentStatusProcessing} {
		if candidate.CanTransitionTo(target) {
			sources = append(sources, candidate)
		}
	}
	return sources
}

func stateConflict(current, target enums.PaymentStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("payment cannot move from %s to %s", current, target))
}

func terminalConflict(current, target enums.PaymentStatus) error {
	return pkgerrors.New(pkgerrors.CodeConflict,
		fmt.Sprintf("payment already %s; %s rejected", current, target)).
		WithDetails(map[string]string{"stored": current.String(), "attempted": target.String()})
}
