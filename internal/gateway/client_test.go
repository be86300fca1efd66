package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, ShopID: "shop", SecretKey: "secret"}, srv.Client(), nil)
}

func TestClient_CreatePayment(t *testing.T) {
	var (
		mu   sync.Mutex
		keys []string
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "shop", user)
		assert.Equal(t, "secret", pass)

		var req CreatePaymentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "4500.00", req.Amount.Value)
		assert.Equal(t, "RUB", req.Amount.Currency)
		assert.Equal(t, "order-1", req.Metadata["order_id"])

		mu.Lock()
		keys = append(keys, r.Header.Get("Idempotence-Key"))
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pay_1","status":"pending","amount":{"value":"4500.00","currency":"RUB"},
			"confirmation":{"type":"redirect","confirmation_url":"https://pay.example/confirm"}}`))
	})

	req := CreatePaymentRequest{
		Amount:       NewAmount(decimal.NewFromInt(4500), "RUB"),
		Capture:      true,
		Confirmation: Confirmation{Type: "redirect", ReturnURL: "https://shop.example/back"},
		Metadata:     map[string]string{"order_id": "order-1"},
	}
	p, err := c.CreatePayment(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "pay_1", p.ID)
	assert.Equal(t, "pending", p.Status)
	assert.Equal(t, "https://pay.example/confirm", p.ConfirmationURL())

	_, err = c.CreatePayment(context.Background(), req)
	require.NoError(t, err)

	req.IdempotenceKey = "fixed-key"
	_, err = c.CreatePayment(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, keys, 3)
	assert.NotEmpty(t, keys[0])
	assert.NotEqual(t, keys[0], keys[1], "each logical attempt gets a fresh key")
	assert.Equal(t, "fixed-key", keys[2])
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantErr   error
		retryable bool
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: ErrAuth},
		{name: "bad_request", status: http.StatusBadRequest, wantErr: ErrValidation},
		{name: "internal", status: http.StatusInternalServerError, wantErr: ErrService, retryable: true},
		{name: "too_many_requests", status: http.StatusTooManyRequests, wantErr: ErrService, retryable: true},
		{name: "not_found", status: http.StatusNotFound, wantErr: ErrService, retryable: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"type":"error","code":"invalid_request","description":"bad amount"}`))
			})
			_, err := c.GetPayment(context.Background(), "pay_1")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.retryable, IsRetryable(err))

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, "bad amount", apiErr.Description)
		})
	}
}

func TestClient_TransportErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: url}, nil, nil)
	_, err := c.GetPayment(context.Background(), "pay_1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrService)
	assert.True(t, IsRetryable(err))
}

func TestClient_CancelAndRefund(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("Idempotence-Key"))
		switch r.URL.Path {
		case "/payments/pay_1/cancel":
			_, _ = w.Write([]byte(`{"id":"pay_1","status":"canceled","amount":{"value":"10.00","currency":"RUB"}}`))
		case "/refunds":
			var req CreateRefundRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "pay_1", req.PaymentID)
			_, _ = w.Write([]byte(`{"id":"rf_1","payment_id":"pay_1","status":"succeeded","amount":{"value":"5.00","currency":"RUB"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	p, err := c.CancelPayment(context.Background(), "pay_1", "")
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, p.Status)

	r, err := c.CreateRefund(context.Background(), CreateRefundRequest{
		PaymentID: "pay_1",
		Amount:    NewAmount(decimal.NewFromInt(5), "RUB"),
	})
	require.NoError(t, err)
	assert.Equal(t, "rf_1", r.ID)
	amount, err := r.Amount.Decimal()
	require.NoError(t, err)
	assert.True(t, amount.Equal(decimal.NewFromInt(5)))
}
