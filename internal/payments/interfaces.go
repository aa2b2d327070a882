package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/teranga-eats/teranga-backend/pkg/db/models"
	"github.com/teranga-eats/teranga-backend/pkg/enums"
)

// Repository defines persistence operations for payment attempts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	// FindLatestByOrder returns the most recently updated payment for the
	// order. Retried payments reuse rows, so "latest" is by updated_at.
	FindLatestByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	FindByToken(ctx context.Context, token string) (*models.Payment, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	// UpdateStatusFrom applies updates only while the stored status is one of
	// the expected values. RowsAffected reveals lost races.
	UpdateStatusFrom(ctx context.Context, id uuid.UUID, expected []enums.PaymentStatus, updates map[string]any) (int64, error)
}
