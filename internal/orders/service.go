package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/teranga-eats/teranga-backend/pkg/config"
	"github.com/teranga-eats/teranga-backend/pkg/db"
	"github.com/teranga-eats/teranga-backend/pkg/db/models"
	"github.com/teranga-eats/teranga-backend/pkg/enums"
	pkgerrors "github.com/teranga-eats/teranga-backend/pkg/errors"
	"github.com/teranga-eats/teranga-backend/pkg/pagination"
)

// orderNumberAttempts bounds retries when a generated number collides.
const orderNumberAttempts = 5

// Service defines order-level operations.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error)
	// Update merges the typed patch into the stored order. Totals, items,
	// order type and status are never touched through this path.
	Update(ctx context.Context, id uuid.UUID, input UpdateOrderInput) (*models.Order, error)
}

type service struct {
	repo Repository
	cfg  config.CheckoutConfig
}

// NewService builds an orders service with the required dependencies.
func NewService(repo Repository, cfg config.CheckoutConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{repo: repo, cfg: cfg}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	orderType, err := enums.ParseOrderType(input.OrderType)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}

	address := normalizeAddress(input.DeliveryAddress)
	if orderType == enums.OrderTypeDelivery && address == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery orders require a delivery address")
	}
	if orderType == enums.OrderTypePickup {
		address = nil
	}

	items := make([]models.OrderItem, 0, len(input.Items))
	var subtotal int64
	for _, line := range input.Items {
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		if line.UnitPrice < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item unit price cannot be negative")
		}
		if strings.TrimSpace(line.ProductName) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item product name required")
		}
		subtotal += int64(line.Quantity) * line.UnitPrice
		items = append(items, models.OrderItem{
			ID:            uuid.New(),
			ProductName:   line.ProductName,
			Quantity:      line.Quantity,
			UnitPrice:     line.UnitPrice,
			SelectedDrink: line.SelectedDrink,
		})
	}

	var deliveryFee int64
	if orderType == enums.OrderTypeDelivery {
		deliveryFee = s.cfg.DeliveryFee
	}

	order := &models.Order{
		ID:              uuid.New(),
		CustomerName:    strings.TrimSpace(input.CustomerName),
		CustomerPhone:   strings.TrimSpace(input.CustomerPhone),
		DeliveryAddress: address,
		OrderType:       orderType,
		Status:          enums.OrderStatusPending,
		Total:           subtotal + deliveryFee,
		DeliveryFee:     deliveryFee,
		Items:           items,
	}

	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		number, err := GenerateOrderNumber()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
		}
		order.OrderNumber = number

		created, err := s.repo.Create(ctx, order)
		if err == nil {
			return created, nil
		}
		if db.IsUniqueViolation(err) {
			continue
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
	}
	return nil, pkgerrors.New(pkgerrors.CodeDependency, "could not allocate a unique order number")
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number required")
	}
	order, err := s.repo.FindByNumber(ctx, orderNumber)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateOrderInput) (*models.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.CustomerName != nil {
		name := strings.TrimSpace(*input.CustomerName)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name cannot be empty")
		}
		updates["customer_name"] = name
	}
	if input.CustomerPhone != nil {
		phone := strings.TrimSpace(*input.CustomerPhone)
		if phone == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer phone cannot be empty")
		}
		updates["customer_phone"] = phone
	}
	if input.DeliveryAddress != nil {
		if order.OrderType != enums.OrderTypeDelivery {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "pickup orders do not carry a delivery address")
		}
		address := normalizeAddress(input.DeliveryAddress)
		if address == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery orders require a delivery address")
		}
		updates["delivery_address"] = *address
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no updatable fields in request")
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
	}
	return s.Get(ctx, id)
}

func (s *service) List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error) {
	list, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

func normalizeAddress(address *string) *string {
	if address == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*address)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
