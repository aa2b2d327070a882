package paydunyawebhook

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teranga-eats/teranga-backend/internal/payments"
	"github.com/teranga-eats/teranga-backend/pkg/db/models"
	"github.com/teranga-eats/teranga-backend/pkg/enums"
	pkgerrors "github.com/teranga-eats/teranga-backend/pkg/errors"
	"github.com/teranga-eats/teranga-backend/pkg/logger"
	"github.com/teranga-eats/teranga-backend/pkg/metrics"
	"github.com/teranga-eats/teranga-backend/pkg/redis"
)

const orderLockScope = "order"

// Outcome classifies how a callback delivery was handled. Every outcome is
// acknowledged with HTTP 200; the gateway is never asked to retry.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeConflict  Outcome = "conflict"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeMismatch  Outcome = "mismatch"
)

// CallbackEvent is the body PayDunya posts to the callback URL.
type CallbackEvent struct {
	Status     string `json:"status"`
	Token      string `json:"token"`
	CustomData struct {
		OrderID string `json:"order_id"`
	} `json:"custom_data"`
}

// CallbackResult reports what the handler did with a delivery.
type CallbackResult struct {
	Outcome Outcome         `json:"outcome"`
	Payment *models.Payment `json:"payment,omitempty"`
}

type paymentService interface {
	GetByToken(ctx context.Context, token string) (*models.Payment, error)
	Complete(ctx context.Context, paymentID uuid.UUID, paidAt time.Time) (*models.Payment, error)
	Fail(ctx context.Context, input payments.TerminalInput) (*models.Payment, error)
	Cancel(ctx context.Context, input payments.TerminalInput) (*models.Payment, error)
}

type orderConfirmer interface {
	UpdateStatusFrom(ctx context.Context, id uuid.UUID, expected, next enums.OrderStatus) (int64, error)
}

type ServiceParams struct {
	Payments paymentService
	Orders   orderConfirmer
	Guard    *IdempotencyGuard
	Locks    redis.Locker
	LockTTL  time.Duration
	Logger   *logger.Logger
	Metrics  *metrics.PaymentMetrics
}

type Service struct {
	payments paymentService
	orders   orderConfirmer
	guard    *IdempotencyGuard
	locks    redis.Locker
	lockTTL  time.Duration
	logg     *logger.Logger
	metrics  *metrics.PaymentMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments service required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order confirmer required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard required")
	}
	if params.Locks == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "locker required")
	}
	ttl := params.LockTTL
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &Service{
		payments: params.Payments,
		orders:   params.Orders,
		guard:    params.Guard,
		locks:    params.Locks,
		lockTTL:  ttl,
		logg:     params.Logger,
		metrics:  params.Metrics,
	}, nil
}

// HandleCallback reconciles one gateway delivery against the payment store.
// Validation errors mean the delivery itself is broken and surface as 400;
// anything downstream means "log and ack" so the gateway never retries.
func (s *Service) HandleCallback(ctx context.Context, event *CallbackEvent) (*CallbackResult, error) {
	if event == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "callback event required")
	}
	token := strings.TrimSpace(event.Token)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "callback token required")
	}
	status := strings.ToLower(strings.TrimSpace(event.Status))

	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{"gateway_token": token, "callback_status": status})
	}

	switch status {
	case "completed", "failed", "cancelled":
	default:
		// Unknown statuses are acknowledged and logged, never applied.
		if s.logg != nil {
			s.logg.Warn(ctx, fmt.Sprintf("ignoring callback with unknown status %q", event.Status))
		}
		s.metrics.IncCallback(string(OutcomeIgnored))
		return &CallbackResult{Outcome: OutcomeIgnored}, nil
	}

	deliveryID := token + ":" + status
	seen, err := s.guard.CheckAndMark(ctx, deliveryID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "callback idempotency check")
	}
	if seen {
		s.metrics.IncCallback(string(OutcomeDuplicate))
		if s.logg != nil {
			s.logg.Info(ctx, "duplicate callback delivery, no-op")
		}
		return &CallbackResult{Outcome: OutcomeDuplicate}, nil
	}

	result, err := s.apply(ctx, event, token, status)
	if err != nil {
		// Clear the mark so a redelivery can retry the reconciliation.
		if delErr := s.guard.Delete(ctx, deliveryID); delErr != nil && s.logg != nil {
			s.logg.Error(ctx, "clear idempotency mark", delErr)
		}
		return nil, err
	}
	return result, nil
}

func (s *Service) apply(ctx context.Context, event *CallbackEvent, token, status string) (*CallbackResult, error) {
	payment, err := s.payments.GetByToken(ctx, token)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			if s.logg != nil {
				s.logg.Warn(ctx, "callback token matches no payment, acknowledging")
			}
			s.metrics.IncCallback(string(OutcomeMismatch))
			return &CallbackResult{Outcome: OutcomeMismatch}, nil
		}
		return nil, err
	}

	if event.CustomData.OrderID != "" {
		orderID, parseErr := uuid.Parse(event.CustomData.OrderID)
		if parseErr != nil || orderID != payment.OrderID {
			if s.logg != nil {
				s.logg.Warn(ctx, "callback order id does not match payment, acknowledging")
			}
			s.metrics.IncCallback(string(OutcomeMismatch))
			return &CallbackResult{Outcome: OutcomeMismatch}, nil
		}
	}

	ok, err := s.locks.AcquireLock(ctx, orderLockScope, payment.OrderID.String(), s.lockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire order lock")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order is locked by a concurrent operation")
	}
	defer func() {
		if err := s.locks.ReleaseLock(ctx, orderLockScope, payment.OrderID.String()); err != nil && s.logg != nil {
			s.logg.Warn(ctx, "release order lock failed")
		}
	}()

	var updated *models.Payment
	switch status {
	case "completed":
		updated, err = s.payments.Complete(ctx, payment.ID, time.Now().UTC())
	case "failed":
		msg := "payment failed at gateway"
		updated, err = s.payments.Fail(ctx, payments.TerminalInput{PaymentID: payment.ID, ErrorMessage: &msg})
	case "cancelled":
		msg := "payment cancelled at gateway"
		updated, err = s.payments.Cancel(ctx, payments.TerminalInput{PaymentID: payment.ID, ErrorMessage: &msg})
	}
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeConflict) || pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
			// First terminal wins. Acknowledge, keep the stored state and
			// flag the disagreement for manual review.
			if s.logg != nil {
				s.logg.Error(ctx, "callback disagrees with stored terminal state", err)
			}
			s.metrics.IncCallback(string(OutcomeConflict))
			return &CallbackResult{Outcome: OutcomeConflict}, nil
		}
		return nil, err
	}

	if status == "completed" {
		// A paid order moves into the kitchen queue. If staff already moved
		// it the compare-and-set is a harmless no-op.
		if _, err := s.orders.UpdateStatusFrom(ctx, payment.OrderID, enums.OrderStatusPending, enums.OrderStatusConfirmed); err != nil {
			if s.logg != nil {
				s.logg.Error(ctx, "confirm order after completed payment", err)
			}
		}
	}

	s.metrics.IncCallback(string(OutcomeApplied))
	s.metrics.IncTransition(status)
	return &CallbackResult{Outcome: OutcomeApplied, Payment: updated}, nil
}
