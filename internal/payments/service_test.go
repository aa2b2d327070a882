package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/teranga-eats/teranga-backend/pkg/db/models"
	"github.com/teranga-eats/teranga-backend/pkg/enums"
	pkgerrors "github.com/teranga-eats/teranga-backend/pkg/errors"
)

type stubPaymentsRepo struct {
	payments         map[uuid.UUID]*models.Payment
	updateStatusFrom func(ctx context.Context, id uuid.UUID, expected []enums.PaymentStatus, updates map[string]any) (int64, error)
}

func newStubPaymentsRepo(payments ...*models.Payment) *stubPaymentsRepo {
	repo := &stubPaymentsRepo{payments: map[uuid.UUID]*models.Payment{}}
	for _, p := range payments {
		repo.payments[p.ID] = p
	}
	return repo
}

func (s *stubPaymentsRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubPaymentsRepo) Create(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	s.payments[payment.ID] = payment
	return payment, nil
}

func (s *stubPaymentsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	payment, ok := s.payments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *payment
	return &copied, nil
}

func (s *stubPaymentsRepo) FindLatestByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var latest *models.Payment
	for _, payment := range s.payments {
		if payment.OrderID != orderID {
			continue
		}
		if latest == nil || payment.UpdatedAt.After(latest.UpdatedAt) {
			latest = payment
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *latest
	return &copied, nil
}

func (s *stubPaymentsRepo) FindByToken(ctx context.Context, token string) (*models.Payment, error) {
	for _, payment := range s.payments {
		if payment.GatewayToken != nil && *payment.GatewayToken == token {
			copied := *payment
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubPaymentsRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	rows := []models.Payment{}
	for _, payment := range s.payments {
		if payment.OrderID == orderID {
			rows = append(rows, *payment)
		}
	}
	return rows, nil
}

func (s *stubPaymentsRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	payment, ok := s.payments[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	applyUpdates(payment, updates)
	return nil
}

func (s *stubPaymentsRepo) UpdateStatusFrom(ctx context.Context, id uuid.UUID, expected []enums.PaymentStatus, updates map[string]any) (int64, error) {
	if s.updateStatusFrom != nil {
		return s.updateStatusFrom(ctx, id, expected, updates)
	}
	payment, ok := s.payments[id]
	if !ok {
		return 0, nil
	}
	matched := false
	for _, status := range expected {
		if payment.Status == status {
			matched = true
			break
		}
	}
	if !matched {
		return 0, nil
	}
	applyUpdates(payment, updates)
	return 1, nil
}

func applyUpdates(payment *models.Payment, updates map[string]any) {
	if v, ok := updates["status"]; ok {
		payment.Status = v.(enums.PaymentStatus)
	}
	if v, ok := updates["payment_method"]; ok {
		payment.Method = v.(enums.PaymentMethod)
	}
	if v, ok := updates["gateway_token"]; ok {
		payment.GatewayToken = toStringPtr(v)
	}
	if v, ok := updates["gateway_invoice_url"]; ok {
		payment.GatewayInvoiceURL = toStringPtr(v)
	}
	if v, ok := updates["error_message"]; ok {
		if ptr, isPtr := v.(*string); isPtr {
			payment.ErrorMessage = ptr
		} else {
			payment.ErrorMessage = toStringPtr(v)
		}
	}
	if v, ok := updates["paid_at"]; ok {
		if t, isTime := v.(time.Time); isTime {
			payment.PaidAt = &t
		}
	}
	payment.UpdatedAt = time.Now()
}

func toStringPtr(v any) *string {
	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}

type stubOrderFinder struct {
	orders map[uuid.UUID]*models.Order
}

func (s *stubOrderFinder) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func buildService(t *testing.T, repo Repository, orders OrderFinder) Service {
	t.Helper()
	svc, err := NewService(repo, orders, nil)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func TestCreateCrossChecksOrder(t *testing.T) {
	ctx := context.Background()
	repo := newStubPaymentsRepo()
	orders := &stubOrderFinder{orders: map[uuid.UUID]*models.Order{}}
	svc := buildService(t, repo, orders)

	_, err := svc.Create(ctx, CreatePaymentInput{OrderID: uuid.New(), Method: "wave", Amount: 5000})
	if !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for unknown order, got %v", err)
	}
}

func TestCreateRequiresAmountMatchingOrder(t *testing.T) {
	ctx := context.Background()
	order := &models.Order{ID: uuid.New(), Total: 6500}
	repo := newStubPaymentsRepo()
	orders := &stubOrderFinder{orders: map[uuid.UUID]*models.Order{order.ID: order}}
	svc := buildService(t, repo, orders)

	_, err := svc.Create(ctx, CreatePaymentInput{OrderID: order.ID, Method: "wave"})
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for missing amount, got %v", err)
	}

	_, err = svc.Create(ctx, CreatePaymentInput{OrderID: order.ID, Method: "wave", Amount: 9999})
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for amount mismatch, got %v", err)
	}

	payment, err := svc.Create(ctx, CreatePaymentInput{OrderID: order.ID, Method: "orange-money", Amount: 6500})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	if payment.Amount != 6500 {
		t.Fatalf("expected amount 6500, got %d", payment.Amount)
	}
	if payment.Status != enums.PaymentStatusPending {
		t.Fatalf("expected pending, got %s", payment.Status)
	}
}

func TestCreateRejectsSecondPaymentAfterCompletion(t *testing.T) {
	ctx := context.Background()
	order := &models.Order{ID: uuid.New(), Total: 5000}
	completed := &models.Payment{
		ID:      uuid.New(),
		OrderID: order.ID,
		Amount:  5000,
		Method:  enums.PaymentMethodWave,
		Status:  enums.PaymentStatusCompleted,
	}
	repo := newStubPaymentsRepo(completed)
	orders := &stubOrderFinder{orders: map[uuid.UUID]*models.Order{order.ID: order}}
	svc := buildService(t, repo, orders)

	_, err := svc.Create(ctx, CreatePaymentInput{OrderID: order.ID, Method: "wave", Amount: 5000})
	if !pkgerrors.Is(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestMarkProcessingStoresGatewayHandles(t *testing.T) {
	ctx := context.Background()
	payment := &models.Payment{ID: uuid.New(), OrderID: uuid.New(), Status: enums.PaymentStatusPending}
	repo := newStubPaymentsRepo(payment)
	svc := buildService(t, repo, &stubOrderFinder{})

	updated, err := svc.MarkProcessing(ctx, ProcessingInput{
		PaymentID:  payment.ID,
		Token:      "tok-1",
		InvoiceURL: "https://paydunya.com/checkout/invoice/tok-1",
	})
	if err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if updated.Status != enums.PaymentStatusProcessing {
		t.Fatalf("expected processing, got %s", updated.Status)
	}
	if updated.GatewayToken == nil || *updated.GatewayToken != "tok-1" {
		t.Fatalf("expected token stored")
	}
}

func TestMarkProcessingRejectsTerminal(t *testing.T) {
	ctx := context.Background()
	payment := &models.Payment{ID: uuid.New(), Status: enums.PaymentStatusCompleted}
	svc := buildService(t, newStubPaymentsRepo(payment), &stubOrderFinder{})

	_, err := svc.MarkProcessing(ctx, ProcessingInput{PaymentID: payment.ID, Token: "tok-1"})
	if !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCompleteSetsPaidAt(t *testing.T) {
	ctx := context.Background()
	payment := &models.Payment{ID: uuid.New(), Status: enums.PaymentStatusProcessing}
	svc := buildService(t, newStubPaymentsRepo(payment), &stubOrderFinder{})

	paidAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	updated, err := svc.Complete(ctx, payment.ID, paidAt)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if updated.Status != enums.PaymentStatusCompleted {
		t.Fatalf("expected completed, got %s", updated.Status)
	}
	if updated.PaidAt == nil || !updated.PaidAt.Equal(paidAt) {
		t.Fatalf("expected paid_at %v, got %v", paidAt, updated.PaidAt)
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	paidAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	payment := &models.Payment{ID: uuid.New(), Status: enums.PaymentStatusCompleted, PaidAt: &paidAt}
	svc := buildService(t, newStubPaymentsRepo(payment), &stubOrderFinder{})

	updated, err := svc.Complete(ctx, payment.ID, time.Now())
	if err != nil {
		t.Fatalf("repeat complete should be a no-op, got %v", err)
	}
	if updated.PaidAt == nil || !updated.PaidAt.Equal(paidAt) {
		t.Fatalf("paid_at must not change on the repeat call")
	}
}

func TestFirstTerminalWins(t *testing.T) {
	ctx := context.Background()
	payment := &models.Payment{ID: uuid.New(), Status: enums.PaymentStatusCancelled}
	svc := buildService(t, newStubPaymentsRepo(payment), &stubOrderFinder{})

	_, err := svc.Complete(ctx, payment.ID, time.Now())
	if !pkgerrors.Is(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	stored, _ := svc.Get(ctx, payment.ID)
	if stored.Status != enums.PaymentStatusCancelled {
		t.Fatalf("stored status must remain cancelled, got %s", stored.Status)
	}
}

func TestFinalizeDetectsLostRace(t *testing.T) {
	ctx := context.Background()
	payment := &models.Payment{ID: uuid.New(), Status: enums.PaymentStatusProcessing}
	repo := newStubPaymentsRepo(payment)
	// The compare-and-set loses; another writer completed the payment
	// between the read and the write.
	repo.updateStatusFrom = func(ctx context.Context, id uuid.UUID, expected []enums.PaymentStatus, updates map[string]any) (int64, error) {
		repo.payments[id].Status = enums.PaymentStatusCompleted
		return 0, nil
	}
	svc := buildService(t, repo, &stubOrderFinder{})

	_, err := svc.Fail(ctx, TerminalInput{PaymentID: payment.ID})
	if !pkgerrors.Is(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict after lost race, got %v", err)
	}
}

func TestResetForRetry(t *testing.T) {
	ctx := context.Background()
	msg := "gateway timeout"
	token := "tok-old"
	payment := &models.Payment{
		ID:           uuid.New(),
		Status:       enums.PaymentStatusFailed,
		Method:       enums.PaymentMethodWave,
		GatewayToken: &token,
		ErrorMessage: &msg,
	}
	svc := buildService(t, newStubPaymentsRepo(payment), &stubOrderFinder{})

	updated, err := svc.ResetForRetry(ctx, payment.ID, enums.PaymentMethodOrangeMoney)
	if err != nil {
		t.Fatalf("reset for retry: %v", err)
	}
	if updated.Status != enums.PaymentStatusPending {
		t.Fatalf("expected pending, got %s", updated.Status)
	}
	if updated.Method != enums.PaymentMethodOrangeMoney {
		t.Fatalf("expected method change, got %s", updated.Method)
	}
	if updated.GatewayToken != nil || updated.ErrorMessage != nil {
		t.Fatalf("expected gateway handles and error cleared")
	}
}

func TestResetForRetryRejectsCompleted(t *testing.T) {
	ctx := context.Background()
	payment := &models.Payment{ID: uuid.New(), Status: enums.PaymentStatusCompleted}
	svc := buildService(t, newStubPaymentsRepo(payment), &stubOrderFinder{})

	_, err := svc.ResetForRetry(ctx, payment.ID, enums.PaymentMethodWave)
	if !pkgerrors.Is(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestUpdateChangesMethodWhilePending(t *testing.T) {
	ctx := context.Background()
	payment := &models.Payment{ID: uuid.New(), Status: enums.PaymentStatusPending, Method: enums.PaymentMethodWave}
	svc := buildService(t, newStubPaymentsRepo(payment), &stubOrderFinder{})

	method := "orange-money"
	updated, err := svc.Update(ctx, payment.ID, UpdatePaymentInput{Method: &method})
	if err != nil {
		t.Fatalf("update payment: %v", err)
	}
	if updated.Method != enums.PaymentMethodOrangeMoney {
		t.Fatalf("expected method change, got %s", updated.Method)
	}

	if _, err := svc.Update(ctx, payment.ID, UpdatePaymentInput{}); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for empty patch, got %v", err)
	}

	bad := "cash"
	if _, err := svc.Update(ctx, payment.ID, UpdatePaymentInput{Method: &bad}); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for unknown method, got %v", err)
	}
}

func TestUpdateRejectsNonPending(t *testing.T) {
	ctx := context.Background()
	payment := &models.Payment{ID: uuid.New(), Status: enums.PaymentStatusProcessing, Method: enums.PaymentMethodWave}
	svc := buildService(t, newStubPaymentsRepo(payment), &stubOrderFinder{})

	method := "orange-money"
	if _, err := svc.Update(ctx, payment.ID, UpdatePaymentInput{Method: &method}); !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}
