package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/teranga-eats/teranga-backend/internal/orders"
	"github.com/teranga-eats/teranga-backend/internal/payments"
	"github.com/teranga-eats/teranga-backend/pkg/config"
	"github.com/teranga-eats/teranga-backend/pkg/db/models"
	"github.com/teranga-eats/teranga-backend/pkg/enums"
	pkgerrors "github.com/teranga-eats/teranga-backend/pkg/errors"
	"github.com/teranga-eats/teranga-backend/pkg/logger"
	"github.com/teranga-eats/teranga-backend/pkg/metrics"
	"github.com/teranga-eats/teranga-backend/pkg/paydunya"
	"github.com/teranga-eats/teranga-backend/pkg/redis"
)

const orderLockScope = "order"

// Gateway is the slice of the PayDunya client the coordinator calls.
type Gateway interface {
	CreateInvoice(ctx context.Context, req paydunya.InvoiceRequest) (*paydunya.Invoice, error)
	ConfirmInvoice(ctx context.Context, token string) (*paydunya.InvoiceStatus, error)
}

// Service coordinates the order/payment lifecycle across the stores and the
// payment gateway.
type Service interface {
	// PlaceOrder runs the whole checkout: order create, payment create,
	// gateway initialize. A gateway failure leaves the payment failed and
	// the order pending, ready for a retry.
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*CheckoutResult, error)
	// Initialize starts or restarts the gateway flow for an existing order.
	Initialize(ctx context.Context, orderID uuid.UUID, method string) (*CheckoutResult, error)
	// CancelReturn handles the gateway's cancel redirect: the payment is
	// cancelled, the order is untouched.
	CancelReturn(ctx context.Context, orderID uuid.UUID) (*ReturnStatus, error)
	// ConfirmReturn handles the success redirect. Advisory only: reports
	// the reconciled store state without flipping anything.
	ConfirmReturn(ctx context.Context, orderID uuid.UUID) (*ReturnStatus, error)
	// PaymentStatus reports the payment for an order, polling the gateway
	// first when an invoice token exists.
	PaymentStatus(ctx context.Context, orderID uuid.UUID) (*ReturnStatus, error)
}

type service struct {
	orders   orders.Service
	payments payments.Service
	gateway  Gateway
	locks    redis.Locker
	cfg      config.CheckoutConfig
	logg     *logger.Logger
	metrics  *metrics.PaymentMetrics
}

// NewService builds the lifecycle coordinator.
func NewService(
	orderSvc orders.Service,
	paymentSvc payments.Service,
	gateway Gateway,
	locks redis.Locker,
	cfg config.CheckoutConfig,
	logg *logger.Logger,
	m *metrics.PaymentMetrics,
) (Service, error) {
	if orderSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if paymentSvc == nil {
		return nil, fmt.Errorf("payments service required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("gateway required")
	}
	if locks == nil {
		return nil, fmt.Errorf("locker required")
	}
	return &service{
		orders:   orderSvc,
		payments: paymentSvc,
		gateway:  gateway,
		locks:    locks,
		cfg:      cfg,
		logg:     logg,
		metrics:  m,
	}, nil
}

func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*CheckoutResult, error) {
	method, err := enums.ParsePaymentMethod(input.Method)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}

	order, err := s.orders.Create(ctx, input.Order)
	if err != nil {
		return nil, err
	}

	payment, err := s.payments.Create(ctx, payments.CreatePaymentInput{
		OrderID: order.ID,
		Method:  method.String(),
		Amount:  order.Total,
	})
	if err != nil {
		return nil, err
	}

	return s.withOrderLock(ctx, order.ID, func(ctx context.Context) (*CheckoutResult, error) {
		return s.startInvoice(ctx, order, payment)
	})
}

func (s *service) Initialize(ctx context.Context, orderID uuid.UUID, method string) (*CheckoutResult, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return s.withOrderLock(ctx, order.ID, func(ctx context.Context) (*CheckoutResult, error) {
		payment, err := s.paymentForInitialize(ctx, order, method)
		if err != nil {
			return nil, err
		}
		return s.startInvoice(ctx, order, payment)
	})
}

// paymentForInitialize finds or prepares a pending payment for the order.
// Failed and cancelled payments are rewound in place; a completed payment is
// a conflict; a processing one with a live invoice is returned as-is.
func (s *service) paymentForInitialize(ctx context.Context, order *models.Order, method string) (*models.Payment, error) {
	payment, err := s.payments.GetByOrder(ctx, order.ID)
	if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		if method == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method required")
		}
		return s.payments.Create(ctx, payments.CreatePaymentInput{OrderID: order.ID, Method: method, Amount: order.Total})
	}
	if err != nil {
		return nil, err
	}

	retryMethod := payment.Method
	if method != "" {
		parsed, err := enums.ParsePaymentMethod(method)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
		}
		retryMethod = parsed
	}

	switch payment.Status {
	case enums.PaymentStatusPending:
		return payment, nil
	case enums.PaymentStatusFailed, enums.PaymentStatusCancelled:
		return s.payments.ResetForRetry(ctx, payment.ID, retryMethod)
	case enums.PaymentStatusCompleted:
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already paid")
	default:
		return payment, nil
	}
}

func (s *service) startInvoice(ctx context.Context, order *models.Order, payment *models.Payment) (*CheckoutResult, error) {
	// A processing payment already holds a live invoice; hand it back
	// instead of minting a second one.
	if payment.Status == enums.PaymentStatusProcessing && payment.GatewayToken != nil {
		result := &CheckoutResult{Order: order, Payment: payment, Token: *payment.GatewayToken}
		if payment.GatewayInvoiceURL != nil {
			result.PaymentURL = *payment.GatewayInvoiceURL
		}
		result.TransactionID = *payment.GatewayToken
		return result, nil
	}

	items := make([]paydunya.InvoiceItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, paydunya.InvoiceItem{
			Name:      item.ProductName,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	start := time.Now()
	invoice, err := s.gateway.CreateInvoice(ctx, paydunya.InvoiceRequest{
		OrderID:       order.ID.String(),
		PaymentID:     payment.ID.String(),
		OrderNumber:   order.OrderNumber,
		Amount:        payment.Amount,
		Method:        payment.Method.String(),
		CustomerName:  order.CustomerName,
		CustomerPhone: order.CustomerPhone,
		Items:         items,
	})
	s.metrics.ObserveGatewayDuration("create_invoice", time.Since(start))

	if err != nil {
		s.metrics.IncInitialized(payment.Method.String(), "failure")
		msg := err.Error()
		if _, failErr := s.payments.Fail(ctx, payments.TerminalInput{
			PaymentID:    payment.ID,
			ErrorMessage: &msg,
		}); failErr != nil && s.logg != nil {
			s.logg.Error(ctx, "mark payment failed after gateway error", failErr)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "initialize payment")
	}

	updated, err := s.payments.MarkProcessing(ctx, payments.ProcessingInput{
		PaymentID:  payment.ID,
		Token:      invoice.Token,
		InvoiceURL: invoice.RedirectURL,
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncInitialized(payment.Method.String(), "success")
	return &CheckoutResult{
		Order:         order,
		Payment:       updated,
		PaymentURL:    invoice.RedirectURL,
		Token:         invoice.Token,
		TransactionID: invoice.TransactionID,
	}, nil
}

func (s *service) CancelReturn(ctx context.Context, orderID uuid.UUID) (*ReturnStatus, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return s.withOrderLockStatus(ctx, order.ID, func(ctx context.Context) (*ReturnStatus, error) {
		payment, err := s.payments.GetByOrder(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		msg := "cancelled by user"
		cancelled, err := s.payments.Cancel(ctx, payments.TerminalInput{
			PaymentID:    payment.ID,
			ErrorMessage: &msg,
		})
		if err != nil {
			return nil, err
		}
		return &ReturnStatus{Order: order, Payment: cancelled}, nil
	})
}

func (s *service) ConfirmReturn(ctx context.Context, orderID uuid.UUID) (*ReturnStatus, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	payment, err := s.payments.GetByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return &ReturnStatus{
		Order:     order,
		Payment:   payment,
		Completed: payment.Status == enums.PaymentStatusCompleted,
	}, nil
}

func (s *service) PaymentStatus(ctx context.Context, orderID uuid.UUID) (*ReturnStatus, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	payment, err := s.payments.GetByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	if payment.Status == enums.PaymentStatusProcessing && payment.GatewayToken != nil {
		if refreshed := s.pollGateway(ctx, order.ID, payment); refreshed != nil {
			payment = refreshed
		}
	}

	return &ReturnStatus{
		Order:     order,
		Payment:   payment,
		Completed: payment.Status == enums.PaymentStatusCompleted,
	}, nil
}

// pollGateway reconciles a processing payment against the gateway's view.
// Poll failures are logged and the stored state stands.
func (s *service) pollGateway(ctx context.Context, orderID uuid.UUID, payment *models.Payment) *models.Payment {
	start := time.Now()
	status, err := s.gateway.ConfirmInvoice(ctx, *payment.GatewayToken)
	s.metrics.ObserveGatewayDuration("confirm_invoice", time.Since(start))
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithOrderID(ctx, orderID.String()), "gateway status poll failed, serving stored state")
		}
		return nil
	}

	updated, err := s.applyGatewayStatus(ctx, orderID, payment, status.Status)
	if err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, orderID.String()), "apply polled gateway status", err)
		}
		return nil
	}
	return updated
}

func (s *service) applyGatewayStatus(ctx context.Context, orderID uuid.UUID, payment *models.Payment, remote string) (*models.Payment, error) {
	return s.withOrderLockPayment(ctx, orderID, func(ctx context.Context) (*models.Payment, error) {
		switch remote {
		case "completed":
			return s.payments.Complete(ctx, payment.ID, time.Now().UTC())
		case "cancelled":
			msg := "cancelled at gateway"
			return s.payments.Cancel(ctx, payments.TerminalInput{PaymentID: payment.ID, ErrorMessage: &msg})
		case "failed":
			msg := "failed at gateway"
			return s.payments.Fail(ctx, payments.TerminalInput{PaymentID: payment.ID, ErrorMessage: &msg})
		default:
			return payment, nil
		}
	})
}

func (s *service) withOrderLock(ctx context.Context, orderID uuid.UUID, fn func(ctx context.Context) (*CheckoutResult, error)) (*CheckoutResult, error) {
	release, err := s.acquire(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer release()
	return fn(ctx)
}

func (s *service) withOrderLockStatus(ctx context.Context, orderID uuid.UUID, fn func(ctx context.Context) (*ReturnStatus, error)) (*ReturnStatus, error) {
	release, err := s.acquire(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer release()
	return fn(ctx)
}

func (s *service) withOrderLockPayment(ctx context.Context, orderID uuid.UUID, fn func(ctx context.Context) (*models.Payment, error)) (*models.Payment, error) {
	release, err := s.acquire(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer release()
	return fn(ctx)
}

// acquire takes the per-order lock that serializes competing lifecycle
// writes (callback vs cancel return vs retry).
func (s *service) acquire(ctx context.Context, orderID uuid.UUID) (func(), error) {
	ttl := s.cfg.OrderLockTTL
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	ok, err := s.locks.AcquireLock(ctx, orderLockScope, orderID.String(), ttl)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire order lock")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "another operation on this order is in progress")
	}
	return func() {
		if err := s.locks.ReleaseLock(ctx, orderLockScope, orderID.String()); err != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithOrderID(ctx, orderID.String()), "release order lock failed")
		}
	}, nil
}
