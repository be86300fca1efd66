package webhooks

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coursehub/checkout/internal/gateway"
	"github.com/coursehub/checkout/internal/models"
	"github.com/coursehub/checkout/internal/payments"
	"github.com/coursehub/checkout/internal/refunds"
	"github.com/coursehub/checkout/pkg/response"
)

const (
	// DefaultSignatureHeader carries the hex HMAC-SHA256 of the raw body.
	DefaultSignatureHeader = "X-Webhook-Signature"
	maxBodyBytes           = 1 << 20
)

// PaymentReconciler applies a remote payment snapshot.
type PaymentReconciler interface {
	ApplyRemote(ctx context.Context, remote *gateway.Payment) (*payments.Result, error)
}

// RefundReconciler applies a remote refund snapshot.
type RefundReconciler interface {
	ApplyRemote(ctx context.Context, remote *gateway.Refund) (*refunds.Result, error)
}

// Ledger stores every verified delivery.
type Ledger interface {
	Record(ctx context.Context, ev *models.WebhookEvent) error
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, msg string) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.WebhookEvent, error)
	List(ctx context.Context, f models.WebhookEventFilter, limit, offset int) ([]*models.WebhookEvent, int, error)
}

// Archiver keeps a copy of raw bodies outside the database.
type Archiver interface {
	PutWebhookPayload(ctx context.Context, eventID uuid.UUID, eventType string, receivedAt time.Time, body []byte) error
}

// Handler is the gateway notification endpoint plus the admin ledger views.
type Handler struct {
	verifier        *gateway.Verifier
	signatureHeader string
	payments        PaymentReconciler
	refunds         RefundReconciler
	ledger          Ledger
	archive         Archiver
	logger          *zap.Logger
}

// NewHandler creates a webhooks handler. archive may be nil; an empty
// signatureHeader means DefaultSignatureHeader.
func NewHandler(verifier *gateway.Verifier, signatureHeader string, pr PaymentReconciler, rr RefundReconciler, ledger Ledger, archive Archiver, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if signatureHeader == "" {
		signatureHeader = DefaultSignatureHeader
	}
	return &Handler{
		verifier:        verifier,
		signatureHeader: signatureHeader,
		payments:        pr,
		refunds:         rr,
		ledger:          ledger,
		archive:         archive,
		logger:          logger,
	}
}

// Receive handles POST /payments/webhook. The response code tells the gateway
// whether to retry: 400 never, 404 and 500 later, 200 done.
func (h *Handler) Receive(c *gin.Context) {
	ctx := c.Request.Context()
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}
	if err := h.verifier.Verify(body, c.GetHeader(h.signatureHeader)); err != nil {
		h.logger.Warn("webhook signature rejected", zap.String("client_ip", c.ClientIP()))
		response.BadRequest(c, "invalid signature")
		return
	}
	ev, err := DecodeEvent(body)
	if err != nil {
		h.logger.Warn("webhook payload rejected", zap.Error(err))
		response.BadRequest(c, "malformed payload")
		return
	}

	rec := &models.WebhookEvent{EventType: ev.Name(), ObjectID: ev.ObjectID(), Payload: body}
	if err := h.ledger.Record(ctx, rec); err != nil {
		h.logger.Error("record webhook event failed", zap.Error(err), zap.String("event", ev.Name()), zap.String("remote_id", ev.ObjectID()))
		response.Internal(c, "internal error")
		return
	}
	if h.archive != nil {
		if err := h.archive.PutWebhookPayload(ctx, rec.ID, rec.EventType, rec.CreatedAt, body); err != nil {
			h.logger.Warn("archive webhook payload failed", zap.Error(err), zap.String("webhook_event_id", rec.ID.String()))
		}
	}

	err = h.process(ctx, rec.ID, ev)
	switch {
	case err == nil:
		response.OK(c, nil)
	case errors.Is(err, models.ErrPaymentNotFound), errors.Is(err, models.ErrRefundNotFound):
		response.NotFound(c, "unknown object")
	default:
		response.Internal(c, "internal error")
	}
}

// List handles GET /admin/webhook-events?processed=&event_type=.
func (h *Handler) List(c *gin.Context) {
	var f models.WebhookEventFilter
	if v := c.Query("processed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			response.BadRequest(c, "invalid processed flag")
			return
		}
		f.Processed = &b
	}
	f.EventType = c.Query("event_type")
	page, limit := response.Page(c)
	p := models.NewPagination(page, limit, 0)
	list, total, err := h.ledger.List(c.Request.Context(), f, limit, p.Offset())
	if err != nil {
		h.logger.Error("list webhook events failed", zap.Error(err))
		response.Internal(c, "failed to list webhook events")
		return
	}
	if list == nil {
		list = []*models.WebhookEvent{}
	}
	response.Paged(c, "events", list, models.NewPagination(page, limit, total))
}

// Replay handles POST /admin/webhook-events/:id/replay. The stored payload goes
// through the same dispatch as a live delivery.
func (h *Handler) Replay(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	rec, err := h.ledger.GetByID(ctx, id)
	if errors.Is(err, models.ErrWebhookEventNotFound) {
		response.NotFound(c, "webhook event not found")
		return
	}
	if err != nil {
		h.logger.Error("load webhook event failed", zap.Error(err), zap.String("webhook_event_id", id.String()))
		response.Internal(c, "failed to load webhook event")
		return
	}
	ev, err := DecodeEvent(rec.Payload)
	if err != nil {
		response.UnprocessableEntity(c, "stored payload cannot be decoded")
		return
	}
	err = h.process(ctx, rec.ID, ev)
	switch {
	case err == nil:
		rec, _ = h.ledger.GetByID(ctx, id)
		response.OK(c, rec)
	case errors.Is(err, models.ErrPaymentNotFound), errors.Is(err, models.ErrRefundNotFound):
		response.NotFound(c, "unknown object")
	default:
		response.Internal(c, "replay failed")
	}
}

// process dispatches ev and records the outcome on the ledger row.
func (h *Handler) process(ctx context.Context, eventID uuid.UUID, ev Event) error {
	fields := []zap.Field{
		zap.String("webhook_event_id", eventID.String()),
		zap.String("event", ev.Name()),
		zap.String("remote_id", ev.ObjectID()),
	}
	err := h.dispatch(ctx, ev)
	if err != nil {
		h.logger.Error("webhook processing failed", append(fields, zap.Error(err))...)
		if mErr := h.ledger.MarkFailed(ctx, eventID, err.Error()); mErr != nil {
			h.logger.Error("mark webhook event failed", append(fields, zap.Error(mErr))...)
		}
		return err
	}
	if mErr := h.ledger.MarkProcessed(ctx, eventID); mErr != nil {
		h.logger.Error("mark webhook event processed", append(fields, zap.Error(mErr))...)
	}
	return nil
}

func (h *Handler) dispatch(ctx context.Context, ev Event) error {
	switch e := ev.(type) {
	case PaymentSucceeded:
		_, err := h.payments.ApplyRemote(ctx, e.Payment)
		return err
	case PaymentCanceled:
		_, err := h.payments.ApplyRemote(ctx, e.Payment)
		return err
	case RefundSucceeded:
		_, err := h.refunds.ApplyRemote(ctx, e.Refund)
		return err
	default:
		h.logger.Info("webhook event ignored", zap.String("event", ev.Name()), zap.String("remote_id", ev.ObjectID()))
		return nil
	}
}
