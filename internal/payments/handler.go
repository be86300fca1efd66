package payments

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coursehub/checkout/internal/gateway"
	"github.com/coursehub/checkout/internal/middleware"
	"github.com/coursehub/checkout/internal/models"
	"github.com/coursehub/checkout/pkg/response"
)

// CreateRequest is the body for POST /payments/create.
type CreateRequest struct {
	OrderID   uuid.UUID `json:"orderId" binding:"required"`
	ReturnURL string    `json:"returnUrl,omitempty" binding:"omitempty,url"`
}

// PaymentView is the buyer-facing payment summary.
type PaymentView struct {
	ID              uuid.UUID            `json:"id"`
	RemoteID        string               `json:"remoteId,omitempty"`
	Status          models.PaymentStatus `json:"status"`
	ConfirmationURL string               `json:"confirmationUrl,omitempty"`
}

// Handler handles buyer payment endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a payments handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Create handles POST /payments/create.
func (h *Handler) Create(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.Initiate(c.Request.Context(), userID, req.OrderID, req.ReturnURL)
	if err != nil {
		h.fail(c, err, "failed to create payment", zap.String("order_id", req.OrderID.String()))
		return
	}
	response.OK(c, gin.H{"payment": PaymentView{
		ID:              res.Payment.ID,
		RemoteID:        res.Payment.RemoteIDString(),
		Status:          res.Payment.Status,
		ConfirmationURL: res.ConfirmationURL,
	}})
}

// Get handles GET /payments/:id.
func (h *Handler) Get(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid payment id")
		return
	}
	p, err := h.svc.Get(c.Request.Context(), userID, id)
	if err != nil {
		h.fail(c, err, "failed to get payment", zap.String("payment_id", id.String()))
		return
	}
	response.OK(c, gin.H{"payment": p})
}

// Cancel handles POST /payments/:id/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid payment id")
		return
	}
	p, err := h.svc.Cancel(c.Request.Context(), userID, id)
	if err != nil {
		h.fail(c, err, "failed to cancel payment", zap.String("payment_id", id.String()))
		return
	}
	response.OK(c, gin.H{"payment": p})
}

func (h *Handler) fail(c *gin.Context, err error, msg string, fields ...zap.Field) {
	switch {
	case errors.Is(err, models.ErrOrderNotFound):
		response.NotFound(c, "order not found")
	case errors.Is(err, models.ErrPaymentNotFound):
		response.NotFound(c, "payment not found")
	case errors.Is(err, models.ErrForbidden):
		response.Forbidden(c, "access denied")
	case errors.Is(err, models.ErrOrderAlreadyProcessed):
		response.BadRequest(c, err.Error())
	case errors.Is(err, models.ErrPaymentExists), errors.Is(err, models.ErrPaymentNotCancelable):
		response.Conflict(c, err.Error())
	case errors.Is(err, gateway.ErrValidation):
		h.logger.Warn(msg, append(fields, zap.Error(err))...)
		response.UnprocessableEntity(c, "payment gateway rejected the request")
	case errors.Is(err, gateway.ErrAuth), errors.Is(err, gateway.ErrService):
		h.logger.Error(msg, append(fields, zap.Error(err))...)
		response.BadGateway(c, "payment gateway unavailable")
	default:
		h.logger.Error(msg, append(fields, zap.Error(err))...)
		response.Internal(c, msg)
	}
}
