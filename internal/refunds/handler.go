package refunds

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/coursehub/checkout/internal/gateway"
	"github.com/coursehub/checkout/internal/models"
	"github.com/coursehub/checkout/pkg/response"
)

// CreateRequest is the body for POST /refunds.
type CreateRequest struct {
	PaymentID   uuid.UUID       `json:"payment_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason,omitempty"`
	Description string          `json:"description,omitempty"`
}

// Handler handles admin refund endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a refunds handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Create handles POST /refunds.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	rf, err := h.svc.Create(c.Request.Context(), CreateInput{
		PaymentID:   req.PaymentID,
		Amount:      req.Amount,
		Reason:      req.Reason,
		Description: req.Description,
	})
	switch {
	case errors.Is(err, models.ErrPaymentNotFound):
		response.NotFound(c, "payment not found")
	case errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrPaymentNotRefundable),
		errors.Is(err, models.ErrRefundExceedsPayment):
		response.BadRequest(c, err.Error())
	case errors.Is(err, gateway.ErrValidation):
		h.logger.Warn("create refund rejected", zap.Error(err), zap.String("payment_id", req.PaymentID.String()))
		response.UnprocessableEntity(c, "payment gateway rejected the refund")
	case errors.Is(err, gateway.ErrAuth), errors.Is(err, gateway.ErrService):
		h.logger.Error("create refund failed", zap.Error(err), zap.String("payment_id", req.PaymentID.String()))
		response.BadGateway(c, "payment gateway unavailable")
	case err != nil:
		h.logger.Error("create refund failed", zap.Error(err), zap.String("payment_id", req.PaymentID.String()))
		response.Internal(c, "failed to create refund")
	default:
		response.Created(c, rf)
	}
}

// Get handles GET /refunds/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid refund id")
		return
	}
	rf, err := h.svc.Get(c.Request.Context(), id)
	if errors.Is(err, models.ErrRefundNotFound) {
		response.NotFound(c, "refund not found")
		return
	}
	if err != nil {
		h.logger.Error("get refund failed", zap.Error(err), zap.String("refund_id", id.String()))
		response.Internal(c, "failed to get refund")
		return
	}
	response.OK(c, rf)
}

// List handles GET /refunds?payment_id=&status=.
func (h *Handler) List(c *gin.Context) {
	var f models.RefundFilter
	if v := c.Query("payment_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid payment_id")
			return
		}
		f.PaymentID = &id
	}
	switch st := models.RefundStatus(c.Query("status")); st {
	case "", models.RefundStatusPending, models.RefundStatusSucceeded, models.RefundStatusCancelled, models.RefundStatusFailed:
		f.Status = st
	default:
		response.BadRequest(c, "invalid status")
		return
	}
	page, limit := response.Page(c)
	list, p, err := h.svc.List(c.Request.Context(), f, page, limit)
	if err != nil {
		h.logger.Error("list refunds failed", zap.Error(err))
		response.Internal(c, "failed to list refunds")
		return
	}
	if list == nil {
		list = []*models.Refund{}
	}
	response.Paged(c, "refunds", list, p)
}
