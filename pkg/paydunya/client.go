package paydunya

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/teranga-eats/teranga-backend/pkg/config"
	pkgerrors "github.com/teranga-eats/teranga-backend/pkg/errors"
	"github.com/teranga-eats/teranga-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	createInvoicePath  = "/api/v1/checkout-invoice/create"
	confirmInvoicePath = "/api/v1/checkout-invoice/confirm/"

	// PayDunya's success response code.
	responseCodeOK = "00"
)

var (
	errKeysRequired   = errors.New("paydunya master key, private key and token are required")
	errInvalidPDEnv   = fmt.Errorf("paydunya mode must be %q or %q", testEnv, liveEnv)
	errTokenRequired  = errors.New("invoice token is required")
	errAmountRequired = errors.New("invoice amount must be positive")
)

// Client calls the PayDunya checkout-invoice API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	environment string
	masterKey   string
	privateKey  string
	token       string
	storeName   string
	callbackURL string
	returnURL   string
	cancelURL   string
}

// InvoiceItem is one line of the itemized description sent to the gateway.
type InvoiceItem struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// InvoiceRequest carries everything the gateway needs to host a payment page.
type InvoiceRequest struct {
	OrderID       string
	PaymentID     string
	OrderNumber   string
	Amount        int64
	Method        string
	CustomerName  string
	CustomerPhone string
	Items         []InvoiceItem
}

// Invoice is the result of a successful initialization.
type Invoice struct {
	RedirectURL   string
	Token         string
	TransactionID string
}

// InvoiceStatus is the gateway-reported state of an invoice.
type InvoiceStatus struct {
	Status     string
	Token      string
	ReceiptURL string
}

// NewClient validates the PayDunya configuration and returns a client.
func NewClient(ctx context.Context, cfg config.PayDunyaConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	masterKey := strings.TrimSpace(cfg.MasterKey)
	privateKey := strings.TrimSpace(cfg.PrivateKey)
	token := strings.TrimSpace(cfg.Token)
	if masterKey == "" || privateKey == "" || token == "" {
		return nil, errKeysRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("paydunya client initialized (%s)", env))
	}

	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		environment: env,
		masterKey:   masterKey,
		privateKey:  privateKey,
		token:       token,
		storeName:   cfg.StoreName,
		callbackURL: cfg.CallbackURL,
		returnURL:   cfg.ReturnURL,
		cancelURL:   cfg.CancelURL,
	}, nil
}

// Environment reports the normalized PayDunya environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

type createInvoicePayload struct {
	Invoice struct {
		TotalAmount int64         `json:"total_amount"`
		Description string        `json:"description"`
		Items       []InvoiceItem `json:"items,omitempty"`
	} `json:"invoice"`
	Store struct {
		Name string `json:"name"`
	} `json:"store"`
	Actions struct {
		CallbackURL string `json:"callback_url,omitempty"`
		ReturnURL   string `json:"return_url,omitempty"`
		CancelURL   string `json:"cancel_url,omitempty"`
	} `json:"actions"`
	CustomData map[string]string `json:"custom_data"`
	Channels   []string          `json:"channels,omitempty"`
}

type createInvoiceResponse struct {
	ResponseCode  string `json:"response_code"`
	ResponseText  string `json:"response_text"`
	Description   string `json:"description"`
	Token         string `json:"token"`
	TransactionID string `json:"transaction_id"`
}

type confirmInvoiceResponse struct {
	ResponseCode string `json:"response_code"`
	Status       string `json:"status"`
	ReceiptURL   string `json:"receipt_url"`
}

// CreateInvoice registers a hosted invoice with the gateway and returns the
// redirect URL plus the token subsequent callbacks will carry.
func (c *Client) CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error) {
	if req.Amount <= 0 {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, errAmountRequired, "create invoice")
	}

	payload := createInvoicePayload{
		CustomData: map[string]string{
			"order_id":     req.OrderID,
			"payment_id":   req.PaymentID,
			"order_number": req.OrderNumber,
		},
	}
	payload.Invoice.TotalAmount = req.Amount
	payload.Invoice.Description = invoiceDescription(req)
	payload.Invoice.Items = req.Items
	payload.Store.Name = c.storeName
	payload.Actions.CallbackURL = c.callbackURL
	payload.Actions.ReturnURL = c.returnURL
	payload.Actions.CancelURL = c.cancelURL
	if req.Method != "" {
		payload.Channels = []string{req.Method}
	}

	var decoded createInvoiceResponse
	if err := c.post(ctx, createInvoicePath, payload, &decoded); err != nil {
		return nil, err
	}

	if decoded.ResponseCode != responseCodeOK {
		msg := decoded.Description
		if msg == "" {
			msg = decoded.ResponseText
		}
		return nil, pkgerrors.New(pkgerrors.CodeGateway, fmt.Sprintf("gateway rejected invoice: %s", msg)).
			WithDetails(map[string]string{"response_code": decoded.ResponseCode})
	}
	if decoded.Token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "gateway returned no invoice token")
	}

	transactionID := decoded.TransactionID
	if transactionID == "" {
		transactionID = decoded.Token
	}

	return &Invoice{
		RedirectURL:   decoded.ResponseText,
		Token:         decoded.Token,
		TransactionID: transactionID,
	}, nil
}

// ConfirmInvoice polls the gateway for the current state of an invoice.
func (c *Client) ConfirmInvoice(ctx context.Context, token string) (*InvoiceStatus, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, errTokenRequired, "confirm invoice")
	}

	var decoded confirmInvoiceResponse
	if err := c.get(ctx, confirmInvoicePath+token, &decoded); err != nil {
		return nil, err
	}

	return &InvoiceStatus{
		Status:     decoded.Status,
		Token:      token,
		ReceiptURL: decoded.ReceiptURL,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, dest any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode gateway payload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, dest)
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	return c.do(req, dest)
}

func (c *Client) do(req *http.Request, dest any) error {
	req.Header.Set("PAYDUNYA-MASTER-KEY", c.masterKey)
	req.Header.Set("PAYDUNYA-PRIVATE-KEY", c.privateKey)
	req.Header.Set("PAYDUNYA-TOKEN", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts land here; callers treat any gateway error as an
		// initialize failure, never an indefinite pending.
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "call payment gateway")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "read gateway response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return pkgerrors.New(pkgerrors.CodeGateway, fmt.Sprintf("gateway returned status %d", resp.StatusCode)).
			WithDetails(map[string]string{"body": truncate(string(raw), 512)})
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "decode gateway response")
	}
	return nil
}

func invoiceDescription(req InvoiceRequest) string {
	var b strings.Builder
	b.WriteString("Commande ")
	b.WriteString(req.OrderNumber)
	for _, item := range req.Items {
		b.WriteString(fmt.Sprintf(" | %dx %s", item.Quantity, item.Name))
	}
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidPDEnv
	}
}
