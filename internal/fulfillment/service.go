package fulfillment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/teranga-eats/teranga-backend/pkg/db/models"
	"github.com/teranga-eats/teranga-backend/pkg/enums"
	pkgerrors "github.com/teranga-eats/teranga-backend/pkg/errors"
	"github.com/teranga-eats/teranga-backend/pkg/logger"
)

// OrderStore is the slice of the orders repository fulfillment needs.
type OrderStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateStatusFrom(ctx context.Context, id uuid.UUID, expected, next enums.OrderStatus) (int64, error)
}

// Service moves orders along the kitchen/delivery ladder. All operations are
// staff-only; the router guards them with admin auth.
type Service interface {
	// Advance moves the order exactly one step along its ladder.
	Advance(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	// SetStatus jumps to an arbitrary non-terminal status. Entering or
	// leaving a terminal state this way is rejected.
	SetStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error)
	// Cancel marks the order cancelled from any non-terminal state.
	Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type service struct {
	store OrderStore
	logg  *logger.Logger
}

// NewService builds a fulfillment service.
func NewService(store OrderStore, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("order store required")
	}
	return &service{store: store, logg: logg}, nil
}

func (s *service) Advance(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	next, err := enums.NextOrderStatus(order.OrderType, order.Status)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, err.Error())
	}

	return s.apply(ctx, order, next)
}

func (s *service) SetStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", status))
	}
	if status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("terminal status %s cannot be set directly", status))
	}

	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == status {
		return order, nil
	}
	if order.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order is already %s", order.Status))
	}

	return s.apply(ctx, order, status)
}

func (s *service) Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == enums.OrderStatusCancelled {
		return order, nil
	}
	if order.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order is already %s", order.Status))
	}

	return s.apply(ctx, order, enums.OrderStatusCancelled)
}

func (s *service) load(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.store.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// apply flips status with a compare-and-set; a lost race surfaces as a
// state conflict against whatever won.
func (s *service) apply(ctx context.Context, order *models.Order, next enums.OrderStatus) (*models.Order, error) {
	rows, err := s.store.UpdateStatusFrom(ctx, order.ID, order.Status, next)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if rows == 0 {
		current, loadErr := s.load(ctx, order.ID)
		if loadErr != nil {
			return nil, loadErr
		}
		if current.Status == next {
			return current, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order moved to %s concurrently", current.Status))
	}

	if s.logg != nil {
		ctx = s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Info(ctx, fmt.Sprintf("order status %s -> %s", order.Status, next))
	}

	order.Status = next
	return order, nil
}
