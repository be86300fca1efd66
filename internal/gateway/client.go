package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the production API root.
	DefaultBaseURL = "https://api.yookassa.ru/v3"
	defaultTimeout = 10 * time.Second
	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 64 << 10
)

// Config holds gateway credentials and transport settings.
type Config struct {
	BaseURL   string
	ShopID    string
	SecretKey string
	Timeout   time.Duration
}

// Client calls the payment gateway HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	shopID     string
	secretKey  string
	logger     *zap.Logger
}

// NewClient creates a gateway client. A nil httpClient gets one with cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		shopID:     cfg.ShopID,
		secretKey:  cfg.SecretKey,
		logger:     logger,
	}
}

// CreatePayment creates a remote payment.
func (c *Client) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*Payment, error) {
	key := idempotenceKey(req.IdempotenceKey)
	var p Payment
	if err := c.do(ctx, http.MethodPost, key, req, &p, "payments"); err != nil {
		c.logger.Error("gateway create payment failed", zap.Error(err), zap.String("idempotence_key", key))
		return nil, err
	}
	c.logger.Info("gateway payment created", zap.String("remote_id", p.ID), zap.String("status", p.Status))
	return &p, nil
}

// GetPayment fetches the current state of a remote payment.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var p Payment
	if err := c.do(ctx, http.MethodGet, "", nil, &p, "payments", paymentID); err != nil {
		return nil, err
	}
	return &p, nil
}

// CancelPayment cancels a remote payment that has not been captured.
// An empty key gets a fresh one.
func (c *Client) CancelPayment(ctx context.Context, paymentID, key string) (*Payment, error) {
	key = idempotenceKey(key)
	var p Payment
	if err := c.do(ctx, http.MethodPost, key, struct{}{}, &p, "payments", paymentID, "cancel"); err != nil {
		c.logger.Error("gateway cancel payment failed", zap.Error(err), zap.String("remote_id", paymentID))
		return nil, err
	}
	c.logger.Info("gateway payment cancelled", zap.String("remote_id", p.ID), zap.String("status", p.Status))
	return &p, nil
}

// CreateRefund creates a refund against a remote payment.
func (c *Client) CreateRefund(ctx context.Context, req CreateRefundRequest) (*Refund, error) {
	key := idempotenceKey(req.IdempotenceKey)
	var r Refund
	if err := c.do(ctx, http.MethodPost, key, req, &r, "refunds"); err != nil {
		c.logger.Error("gateway create refund failed", zap.Error(err), zap.String("remote_id", req.PaymentID))
		return nil, err
	}
	c.logger.Info("gateway refund created", zap.String("refund_id", r.ID), zap.String("remote_id", req.PaymentID))
	return &r, nil
}

// GetRefund fetches the current state of a remote refund.
func (c *Client) GetRefund(ctx context.Context, refundID string) (*Refund, error) {
	var r Refund
	if err := c.do(ctx, http.MethodGet, "", nil, &r, "refunds", refundID); err != nil {
		return nil, err
	}
	return &r, nil
}

type errorResponse struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (c *Client) do(ctx context.Context, method, key string, body, out any, path ...string) error {
	endpoint, err := url.JoinPath(c.baseURL, path...)
	if err != nil {
		return fmt.Errorf("build url: %w", err)
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.shopID, c.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("Idempotence-Key", key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrService, err)
		}
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	var er errorResponse
	if raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)); len(raw) > 0 {
		if json.Unmarshal(raw, &er) == nil {
			apiErr.Code, apiErr.Description = er.Code, er.Description
		}
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		apiErr.kind = ErrAuth
	case http.StatusBadRequest:
		apiErr.kind = ErrValidation
	default:
		apiErr.kind = ErrService
	}
	return apiErr
}

func idempotenceKey(key string) string {
	if key != "" {
		return key
	}
	return uuid.NewString()
}
