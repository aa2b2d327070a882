package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/teranga-eats/teranga-backend/pkg/db/models"
	"github.com/teranga-eats/teranga-backend/pkg/enums"
	"github.com/teranga-eats/teranga-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	// UpdateStatusFrom flips status only when the stored row still matches
	// expected. Returns the number of rows changed so callers can detect a
	// lost race.
	UpdateStatusFrom(ctx context.Context, id uuid.UUID, expected, next enums.OrderStatus) (int64, error)
}

// ListFilters narrows admin order listings.
type ListFilters struct {
	Status    *enums.OrderStatus
	OrderType *enums.OrderType
}

// OrderList is one page of orders plus the cursor for the next page.
type OrderList struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
