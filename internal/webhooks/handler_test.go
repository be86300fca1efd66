package webhooks_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/checkout/internal/enrollments"
	"github.com/coursehub/checkout/internal/gateway"
	"github.com/coursehub/checkout/internal/models"
	"github.com/coursehub/checkout/internal/payments"
	"github.com/coursehub/checkout/internal/refunds"
	"github.com/coursehub/checkout/internal/testutil"
	"github.com/coursehub/checkout/internal/webhooks"
)

const secret = "whsec_test"

type archive struct {
	mu   sync.Mutex
	ids  []uuid.UUID
	fail bool
}

func (a *archive) PutWebhookPayload(_ context.Context, id uuid.UUID, _ string, _ time.Time, _ []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail {
		return errors.New("s3 unavailable")
	}
	a.ids = append(a.ids, id)
	return nil
}

type env struct {
	store   *testutil.Store
	archive *archive
	router  *gin.Engine
	signer  *gateway.Verifier
	order   *models.Order
	pay     *models.Payment
	userID  uuid.UUID
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := testutil.NewStore()
	course := store.AddCourse("Go in Production", "4500.00")
	userID := uuid.New()
	order, pay := store.SeedCheckout(userID, "pay_1", course)

	granter := enrollments.NewGranter(store.Enrollments(), nil)
	rec := payments.NewReconciler(store.Payments(), store.Orders(), granter, store, nil, nil)
	rfs := refunds.NewService(store.Refunds(), store.Payments(), store.Orders(), store, &testutil.Gateway{}, nil)
	arch := &archive{}
	signer := gateway.NewVerifier(secret)
	h := webhooks.NewHandler(signer, "", rec, rfs, store.Ledger(), arch, nil)

	r := gin.New()
	r.POST("/payments/webhook", h.Receive)
	r.GET("/admin/webhook-events", h.List)
	r.POST("/admin/webhook-events/:id/replay", h.Replay)
	return &env{store: store, archive: arch, router: r, signer: signer, order: order, pay: pay, userID: userID}
}

func (e *env) deliver(body string) *httptest.ResponseRecorder {
	return e.deliverSigned(body, e.signer.Sign([]byte(body)))
}

func (e *env) deliverSigned(body, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if sig != "" {
		req.Header.Set(webhooks.DefaultSignatureHeader, sig)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func paymentEvent(event, remoteID, status string) string {
	return fmt.Sprintf(`{"type":"notification","event":%q,"object":{"id":%q,"status":%q,"paid":true,
		"amount":{"value":"4500.00","currency":"RUB"},"payment_method":{"type":"bank_card"}}}`, event, remoteID, status)
}

func TestReceive_PaymentSucceeded(t *testing.T) {
	e := newEnv(t)

	w := e.deliver(paymentEvent(webhooks.EventPaymentSucceeded, "pay_1", gateway.StatusSucceeded))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	assert.Equal(t, models.PaymentStatusSucceeded, e.store.Payment(e.pay.ID).Status)
	assert.Equal(t, models.OrderStatusCompleted, e.store.Order(e.order.ID).Status)
	assert.Len(t, e.store.EnrollmentsFor(e.userID), 1)

	events := e.store.Events()
	require.Len(t, events, 1)
	assert.True(t, events[0].Processed)
	assert.Equal(t, webhooks.EventPaymentSucceeded, events[0].EventType)
	assert.Equal(t, "pay_1", events[0].ObjectID)
	assert.Equal(t, []uuid.UUID{events[0].ID}, e.archive.ids)
}

func TestReceive_DuplicateDelivery(t *testing.T) {
	e := newEnv(t)
	body := paymentEvent(webhooks.EventPaymentSucceeded, "pay_1", gateway.StatusSucceeded)

	for i := 0; i < 3; i++ {
		w := e.deliver(body)
		require.Equal(t, http.StatusOK, w.Code)
	}
	assert.Len(t, e.store.EnrollmentsFor(e.userID), 1)
	assert.Len(t, e.store.Events(), 3)
}

func TestReceive_PaymentCanceled(t *testing.T) {
	e := newEnv(t)

	w := e.deliver(paymentEvent(webhooks.EventPaymentCanceled, "pay_1", gateway.StatusCanceled))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.PaymentStatusCancelled, e.store.Payment(e.pay.ID).Status)
	assert.Equal(t, models.OrderStatusCancelled, e.store.Order(e.order.ID).Status)
	assert.Empty(t, e.store.EnrollmentsFor(e.userID))
}

func TestReceive_Rejected(t *testing.T) {
	body := paymentEvent(webhooks.EventPaymentSucceeded, "pay_1", gateway.StatusSucceeded)
	tests := []struct {
		name string
		body string
		sig  func(e *env, body string) string
	}{
		{"missing signature", body, func(*env, string) string { return "" }},
		{"wrong secret", body, func(_ *env, b string) string { return gateway.NewVerifier("other").Sign([]byte(b)) }},
		{"tampered body", body, func(e *env, b string) string { return e.signer.Sign([]byte(b + " ")) }},
		{"malformed json", `{"event":`, func(e *env, b string) string { return e.signer.Sign([]byte(b)) }},
		{"missing object id", `{"event":"payment.succeeded","object":{}}`, func(e *env, b string) string { return e.signer.Sign([]byte(b)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			w := e.deliverSigned(tt.body, tt.sig(e, tt.body))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, e.store.Events())
			assert.Equal(t, models.PaymentStatusPending, e.store.Payment(e.pay.ID).Status)
		})
	}
}

func TestReceive_UnknownPayment(t *testing.T) {
	e := newEnv(t)

	w := e.deliver(paymentEvent(webhooks.EventPaymentSucceeded, "pay_unknown", gateway.StatusSucceeded))
	assert.Equal(t, http.StatusNotFound, w.Code)

	events := e.store.Events()
	require.Len(t, events, 1)
	assert.False(t, events[0].Processed)
	assert.NotEmpty(t, events[0].ProcessingError)
}

func TestReceive_UnhandledEventChangesNothing(t *testing.T) {
	e := newEnv(t)

	w := e.deliver(paymentEvent("payment.waiting_for_capture", "pay_1", gateway.StatusWaitingForCapture))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	assert.Equal(t, models.PaymentStatusPending, e.store.Payment(e.pay.ID).Status)
	assert.Equal(t, models.OrderStatusProcessing, e.store.Order(e.order.ID).Status)
	assert.Empty(t, e.store.EnrollmentsFor(e.userID))
	events := e.store.Events()
	require.Len(t, events, 1)
	assert.True(t, events[0].Processed)
}

func TestReceive_InternalFailureIsRetryable(t *testing.T) {
	e := newEnv(t)
	body := paymentEvent(webhooks.EventPaymentSucceeded, "pay_1", gateway.StatusSucceeded)

	e.store.CreateEnrollmentsErr = errors.New("connection reset")
	w := e.deliver(body)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, models.PaymentStatusPending, e.store.Payment(e.pay.ID).Status)
	assert.Equal(t, models.OrderStatusProcessing, e.store.Order(e.order.ID).Status)

	e.store.CreateEnrollmentsErr = nil
	w = e.deliver(body)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.OrderStatusCompleted, e.store.Order(e.order.ID).Status)
	assert.Len(t, e.store.EnrollmentsFor(e.userID), 1)
}

func TestReceive_LedgerFailure(t *testing.T) {
	e := newEnv(t)
	e.store.RecordEventErr = errors.New("disk full")

	w := e.deliver(paymentEvent(webhooks.EventPaymentSucceeded, "pay_1", gateway.StatusSucceeded))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, models.PaymentStatusPending, e.store.Payment(e.pay.ID).Status)
}

func TestReceive_ArchiveFailureIsIgnored(t *testing.T) {
	e := newEnv(t)
	e.archive.fail = true

	w := e.deliver(paymentEvent(webhooks.EventPaymentSucceeded, "pay_1", gateway.StatusSucceeded))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.PaymentStatusSucceeded, e.store.Payment(e.pay.ID).Status)
}

func TestReceive_RefundSucceeded(t *testing.T) {
	e := newEnv(t)
	require.Equal(t, http.StatusOK, e.deliver(paymentEvent(webhooks.EventPaymentSucceeded, "pay_1", gateway.StatusSucceeded)).Code)

	p := e.store.Payment(e.pay.ID)
	require.NoError(t, e.store.Refunds().Create(context.Background(), &models.Refund{
		PaymentID: p.ID, RemoteID: "rf_1", Amount: p.Amount, Currency: p.Currency, Status: models.RefundStatusPending,
	}))

	w := e.deliver(`{"event":"refund.succeeded","object":{"id":"rf_1","payment_id":"pay_1","status":"succeeded",
		"amount":{"value":"4500.00","currency":"RUB"}}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.PaymentStatusRefunded, e.store.Payment(e.pay.ID).Status)
	assert.Equal(t, models.OrderStatusRefunded, e.store.Order(e.order.ID).Status)
}

func TestReplay(t *testing.T) {
	e := newEnv(t)
	e.store.CreateEnrollmentsErr = errors.New("connection reset")
	require.Equal(t, http.StatusInternalServerError,
		e.deliver(paymentEvent(webhooks.EventPaymentSucceeded, "pay_1", gateway.StatusSucceeded)).Code)
	e.store.CreateEnrollmentsErr = nil

	failed := e.store.Events()[0]
	req := httptest.NewRequest(http.MethodPost, "/admin/webhook-events/"+failed.ID.String()+"/replay", nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool                `json:"success"`
		Data    models.WebhookEvent `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.True(t, body.Data.Processed)
	assert.Empty(t, body.Data.ProcessingError)
	assert.Equal(t, models.OrderStatusCompleted, e.store.Order(e.order.ID).Status)

	req = httptest.NewRequest(http.MethodPost, "/admin/webhook-events/"+uuid.NewString()+"/replay", nil)
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestList(t *testing.T) {
	e := newEnv(t)
	require.Equal(t, http.StatusOK, e.deliver(paymentEvent(webhooks.EventPaymentSucceeded, "pay_1", gateway.StatusSucceeded)).Code)
	require.Equal(t, http.StatusNotFound, e.deliver(paymentEvent(webhooks.EventPaymentSucceeded, "pay_x", gateway.StatusSucceeded)).Code)

	req := httptest.NewRequest(http.MethodGet, "/admin/webhook-events?processed=false", nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data struct {
			Events     []models.WebhookEvent `json:"events"`
			Pagination models.Pagination     `json:"pagination"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data.Events, 1)
	assert.Equal(t, "pay_x", body.Data.Events[0].ObjectID)
	assert.Equal(t, 1, body.Data.Pagination.Total)

	req = httptest.NewRequest(http.MethodGet, "/admin/webhook-events?processed=maybe", nil)
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
