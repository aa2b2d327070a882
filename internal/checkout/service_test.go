package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/teranga-eats/teranga-backend/internal/orders"
	"github.com/teranga-eats/teranga-backend/internal/payments"
	"github.com/teranga-eats/teranga-backend/pkg/config"
	"github.com/teranga-eats/teranga-backend/pkg/db/models"
	"github.com/teranga-eats/teranga-backend/pkg/enums"
	pkgerrors "github.com/teranga-eats/teranga-backend/pkg/errors"
	"github.com/teranga-eats/teranga-backend/pkg/pagination"
	"github.com/teranga-eats/teranga-backend/pkg/paydunya"
)

type stubOrderService struct {
	order *models.Order
}

func (s *stubOrderService) Create(ctx context.Context, input orders.CreateOrderInput) (*models.Order, error) {
	return s.order, nil
}

func (s *stubOrderService) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return s.order, nil
}

func (s *stubOrderService) GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	panic("not implemented")
}

func (s *stubOrderService) Update(ctx context.Context, id uuid.UUID, input orders.UpdateOrderInput) (*models.Order, error) {
	return s.Get(ctx, id)
}

func (s *stubOrderService) List(ctx context.Context, params pagination.Params, filters orders.ListFilters) (*orders.OrderList, error) {
	panic("not implemented")
}

type stubPaymentService struct {
	payment     *models.Payment
	createInput payments.CreatePaymentInput
	failCalled  bool
	resetCalled bool
}

func (s *stubPaymentService) Create(ctx context.Context, input payments.CreatePaymentInput) (*models.Payment, error) {
	s.createInput = input
	return s.payment, nil
}

func (s *stubPaymentService) Get(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return s.payment, nil
}

func (s *stubPaymentService) GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	if s.payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no payment for order")
	}
	return s.payment, nil
}

func (s *stubPaymentService) GetByToken(ctx context.Context, token string) (*models.Payment, error) {
	panic("not implemented")
}

func (s *stubPaymentService) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	panic("not implemented")
}

func (s *stubPaymentService) Update(ctx context.Context, id uuid.UUID, input payments.UpdatePaymentInput) (*models.Payment, error) {
	return s.Get(ctx, id)
}

func (s *stubPaymentService) MarkProcessing(ctx context.Context, input payments.ProcessingInput) (*models.Payment, error) {
	s.payment.Status = enums.PaymentStatusProcessing
	s.payment.GatewayToken = &input.Token
	s.payment.GatewayInvoiceURL = &input.InvoiceURL
	return s.payment, nil
}

func (s *stubPaymentService) Complete(ctx context.Context, paymentID uuid.UUID, paidAt time.Time) (*models.Payment, error) {
	s.payment.Status = enums.PaymentStatusCompleted
	s.payment.PaidAt = &paidAt
	return s.payment, nil
}

func (s *stubPaymentService) Fail(ctx context.Context, input payments.TerminalInput) (*models.Payment, error) {
	s.failCalled = true
	s.payment.Status = enums.PaymentStatusFailed
	s.payment.ErrorMessage = input.ErrorMessage
	return s.payment, nil
}

func (s *stubPaymentService) Cancel(ctx context.Context, input payments.TerminalInput) (*models.Payment, error) {
	if s.payment.Status == enums.PaymentStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment already completed")
	}
	s.payment.Status = enums.PaymentStatusCancelled
	s.payment.ErrorMessage = input.ErrorMessage
	return s.payment, nil
}

func (s *stubPaymentService) ResetForRetry(ctx context.Context, paymentID uuid.UUID, method enums.PaymentMethod) (*models.Payment, error) {
	s.resetCalled = true
	s.payment.Status = enums.PaymentStatusPending
	s.payment.Method = method
	s.payment.GatewayToken = nil
	s.payment.GatewayInvoiceURL = nil
	s.payment.ErrorMessage = nil
	return s.payment, nil
}

type stubGateway struct {
	invoice    *paydunya.Invoice
	createErr  error
	status     *paydunya.InvoiceStatus
	confirmErr error
	created    int
}

func (s *stubGateway) CreateInvoice(ctx context.Context, req paydunya.InvoiceRequest) (*paydunya.Invoice, error) {
	s.created++
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.invoice, nil
}

func (s *stubGateway) ConfirmInvoice(ctx context.Context, token string) (*paydunya.InvoiceStatus, error) {
	if s.confirmErr != nil {
		return nil, s.confirmErr
	}
	return s.status, nil
}

type memoryLocker struct {
	mu    sync.Mutex
	held  map[string]bool
	stuck bool
}

func newMemoryLocker() *memoryLocker {
	return &memoryLocker{held: map[string]bool{}}
}

func (m *memoryLocker) AcquireLock(ctx context.Context, scope, id string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := scope + ":" + id
	if m.held[key] || m.stuck {
		return false, nil
	}
	m.held[key] = true
	return true, nil
}

func (m *memoryLocker) ReleaseLock(ctx context.Context, scope, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, scope+":"+id)
	return nil
}

func testOrder() *models.Order {
	address := "Rue 10, Dakar"
	return &models.Order{
		ID:              uuid.New(),
		OrderNumber:     "CM12345678",
		CustomerName:    "Awa Ndiaye",
		CustomerPhone:   "+221771234567",
		DeliveryAddress: &address,
		OrderType:       enums.OrderTypeDelivery,
		Status:          enums.OrderStatusPending,
		Total:           7500,
		DeliveryFee:     1000,
		Items: []models.OrderItem{
			{ProductName: "Thieboudienne", Quantity: 2, UnitPrice: 2500},
		},
	}
}

func pendingPayment(orderID uuid.UUID) *models.Payment {
	return &models.Payment{
		ID:      uuid.New(),
		OrderID: orderID,
		Amount:  7500,
		Method:  enums.PaymentMethodWave,
		Status:  enums.PaymentStatusPending,
	}
}

func buildCheckout(t *testing.T, orderSvc orders.Service, paySvc payments.Service, gw Gateway, locks *memoryLocker) Service {
	t.Helper()
	svc, err := NewService(orderSvc, paySvc, gw, locks, config.CheckoutConfig{OrderLockTTL: time.Second}, nil, nil)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func placeInput() PlaceOrderInput {
	address := "Rue 10, Dakar"
	return PlaceOrderInput{
		Order: orders.CreateOrderInput{
			CustomerName:    "Awa Ndiaye",
			CustomerPhone:   "+221771234567",
			DeliveryAddress: &address,
			OrderType:       "delivery",
			Items: []orders.CreateItemInput{
				{ProductName: "Thieboudienne", Quantity: 2, UnitPrice: 2500},
			},
		},
		Method: "wave",
	}
}

func TestPlaceOrderHappyPath(t *testing.T) {
	order := testOrder()
	payment := pendingPayment(order.ID)
	gw := &stubGateway{invoice: &paydunya.Invoice{
		RedirectURL:   "https://paydunya.com/checkout/invoice/tok-1",
		Token:         "tok-1",
		TransactionID: "txn-1",
	}}
	locks := newMemoryLocker()
	payStub := &stubPaymentService{payment: payment}
	svc := buildCheckout(t, &stubOrderService{order: order}, payStub, gw, locks)

	result, err := svc.PlaceOrder(context.Background(), placeInput())
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if payStub.createInput.Amount != order.Total {
		t.Fatalf("payment must be created for the order total, got %d", payStub.createInput.Amount)
	}
	if result.Payment.Status != enums.PaymentStatusProcessing {
		t.Fatalf("expected processing payment, got %s", result.Payment.Status)
	}
	if result.PaymentURL == "" || result.Token != "tok-1" || result.TransactionID != "txn-1" {
		t.Fatalf("missing gateway handles in result: %+v", result)
	}
	if result.Order.Status != enums.OrderStatusPending {
		t.Fatalf("order must stay pending until the callback, got %s", result.Order.Status)
	}
	if len(locks.held) != 0 {
		t.Fatalf("lock must be released after checkout")
	}
}

func TestPlaceOrderGatewayFailureLeavesRetryableState(t *testing.T) {
	order := testOrder()
	payment := pendingPayment(order.ID)
	payStub := &stubPaymentService{payment: payment}
	gw := &stubGateway{createErr: pkgerrors.New(pkgerrors.CodeGateway, "gateway timeout")}
	svc := buildCheckout(t, &stubOrderService{order: order}, payStub, gw, newMemoryLocker())

	_, err := svc.PlaceOrder(context.Background(), placeInput())
	if !pkgerrors.Is(err, pkgerrors.CodeGateway) {
		t.Fatalf("expected gateway error, got %v", err)
	}
	if !payStub.failCalled {
		t.Fatalf("payment must be marked failed after gateway error")
	}
	if payment.ErrorMessage == nil {
		t.Fatalf("failure reason must be recorded")
	}
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("order must remain pending, got %s", order.Status)
	}
}

func TestPlaceOrderRejectsUnknownMethod(t *testing.T) {
	svc := buildCheckout(t, &stubOrderService{}, &stubPaymentService{}, &stubGateway{}, newMemoryLocker())

	input := placeInput()
	input.Method = "cash"
	if _, err := svc.PlaceOrder(context.Background(), input); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestInitializeRetriesFailedPayment(t *testing.T) {
	order := testOrder()
	msg := "gateway timeout"
	payment := pendingPayment(order.ID)
	payment.Status = enums.PaymentStatusFailed
	payment.ErrorMessage = &msg
	payStub := &stubPaymentService{payment: payment}
	gw := &stubGateway{invoice: &paydunya.Invoice{RedirectURL: "https://pay", Token: "tok-2", TransactionID: "tok-2"}}
	svc := buildCheckout(t, &stubOrderService{order: order}, payStub, gw, newMemoryLocker())

	result, err := svc.Initialize(context.Background(), order.ID, "orange-money")
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if !payStub.resetCalled {
		t.Fatalf("failed payment must be reset for retry")
	}
	if result.Payment.Method != enums.PaymentMethodOrangeMoney {
		t.Fatalf("retry must honor the new method, got %s", result.Payment.Method)
	}
	if result.Payment.Status != enums.PaymentStatusProcessing {
		t.Fatalf("expected processing after retry, got %s", result.Payment.Status)
	}
}

func TestInitializeReusesLiveInvoice(t *testing.T) {
	order := testOrder()
	token := "tok-live"
	url := "https://paydunya.com/checkout/invoice/tok-live"
	payment := pendingPayment(order.ID)
	payment.Status = enums.PaymentStatusProcessing
	payment.GatewayToken = &token
	payment.GatewayInvoiceURL = &url
	gw := &stubGateway{}
	svc := buildCheckout(t, &stubOrderService{order: order}, &stubPaymentService{payment: payment}, gw, newMemoryLocker())

	result, err := svc.Initialize(context.Background(), order.ID, "")
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if gw.created != 0 {
		t.Fatalf("must not mint a second invoice for a processing payment")
	}
	if result.Token != token || result.PaymentURL != url {
		t.Fatalf("expected existing invoice handles, got %+v", result)
	}
}

func TestInitializeRejectsPaidOrder(t *testing.T) {
	order := testOrder()
	payment := pendingPayment(order.ID)
	payment.Status = enums.PaymentStatusCompleted
	svc := buildCheckout(t, &stubOrderService{order: order}, &stubPaymentService{payment: payment}, &stubGateway{}, newMemoryLocker())

	if _, err := svc.Initialize(context.Background(), order.ID, "wave"); !pkgerrors.Is(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCancelReturnCancelsPaymentOnly(t *testing.T) {
	order := testOrder()
	payment := pendingPayment(order.ID)
	payment.Status = enums.PaymentStatusProcessing
	svc := buildCheckout(t, &stubOrderService{order: order}, &stubPaymentService{payment: payment}, &stubGateway{}, newMemoryLocker())

	status, err := svc.CancelReturn(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("cancel return: %v", err)
	}
	if status.Payment.Status != enums.PaymentStatusCancelled {
		t.Fatalf("expected cancelled payment, got %s", status.Payment.Status)
	}
	if status.Payment.ErrorMessage == nil || *status.Payment.ErrorMessage != "cancelled by user" {
		t.Fatalf("expected cancellation reason recorded")
	}
	if status.Order.Status != enums.OrderStatusPending {
		t.Fatalf("cancel return must not touch the order, got %s", status.Order.Status)
	}
}

func TestCancelReturnAfterCompletionConflicts(t *testing.T) {
	order := testOrder()
	payment := pendingPayment(order.ID)
	payment.Status = enums.PaymentStatusCompleted
	svc := buildCheckout(t, &stubOrderService{order: order}, &stubPaymentService{payment: payment}, &stubGateway{}, newMemoryLocker())

	if _, err := svc.CancelReturn(context.Background(), order.ID); !pkgerrors.Is(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if payment.Status != enums.PaymentStatusCompleted {
		t.Fatalf("stored status must remain completed")
	}
}

func TestConfirmReturnIsAdvisory(t *testing.T) {
	order := testOrder()
	payment := pendingPayment(order.ID)
	payment.Status = enums.PaymentStatusProcessing
	svc := buildCheckout(t, &stubOrderService{order: order}, &stubPaymentService{payment: payment}, &stubGateway{}, newMemoryLocker())

	status, err := svc.ConfirmReturn(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("confirm return: %v", err)
	}
	if status.Completed {
		t.Fatalf("processing payment must not report completed")
	}
	if payment.Status != enums.PaymentStatusProcessing {
		t.Fatalf("confirm return must never flip state, got %s", payment.Status)
	}
}

func TestPaymentStatusPollsGateway(t *testing.T) {
	order := testOrder()
	token := "tok-poll"
	payment := pendingPayment(order.ID)
	payment.Status = enums.PaymentStatusProcessing
	payment.GatewayToken = &token
	gw := &stubGateway{status: &paydunya.InvoiceStatus{Status: "completed", Token: token}}
	svc := buildCheckout(t, &stubOrderService{order: order}, &stubPaymentService{payment: payment}, gw, newMemoryLocker())

	status, err := svc.PaymentStatus(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("payment status: %v", err)
	}
	if !status.Completed || status.Payment.Status != enums.PaymentStatusCompleted {
		t.Fatalf("expected completion applied from gateway poll, got %s", status.Payment.Status)
	}
}

func TestPaymentStatusFallsBackOnPollError(t *testing.T) {
	order := testOrder()
	token := "tok-poll"
	payment := pendingPayment(order.ID)
	payment.Status = enums.PaymentStatusProcessing
	payment.GatewayToken = &token
	gw := &stubGateway{confirmErr: pkgerrors.New(pkgerrors.CodeGateway, "gateway down")}
	svc := buildCheckout(t, &stubOrderService{order: order}, &stubPaymentService{payment: payment}, gw, newMemoryLocker())

	status, err := svc.PaymentStatus(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("payment status must not fail on poll error: %v", err)
	}
	if status.Payment.Status != enums.PaymentStatusProcessing {
		t.Fatalf("stored state must stand, got %s", status.Payment.Status)
	}
}

func TestLockContentionConflicts(t *testing.T) {
	order := testOrder()
	payment := pendingPayment(order.ID)
	locks := newMemoryLocker()
	locks.stuck = true
	svc := buildCheckout(t, &stubOrderService{order: order}, &stubPaymentService{payment: payment}, &stubGateway{}, locks)

	if _, err := svc.CancelReturn(context.Background(), order.ID); !pkgerrors.Is(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict while order is locked, got %v", err)
	}
}
