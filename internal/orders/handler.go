package orders

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coursehub/checkout/internal/middleware"
	"github.com/coursehub/checkout/internal/models"
	"github.com/coursehub/checkout/pkg/response"
)

// CreateRequest is the body for POST /orders.
type CreateRequest struct {
	CourseIDs      []uuid.UUID `json:"course_ids" binding:"required,min=1"`
	CustomerName   string      `json:"customer_name" binding:"required"`
	CustomerEmail  string      `json:"customer_email" binding:"required,email"`
	CustomerPhone  string      `json:"customer_phone,omitempty"`
	BillingAddress string      `json:"billing_address,omitempty"`
	BillingCity    string      `json:"billing_city,omitempty"`
	BillingZip     string      `json:"billing_zip,omitempty"`
}

// Handler handles order HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an orders handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Create handles POST /orders.
func (h *Handler) Create(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	o, err := h.svc.Create(c.Request.Context(), userID, CreateInput{
		CourseIDs:      req.CourseIDs,
		CustomerName:   req.CustomerName,
		CustomerEmail:  req.CustomerEmail,
		CustomerPhone:  req.CustomerPhone,
		BillingAddress: req.BillingAddress,
		BillingCity:    req.BillingCity,
		BillingZip:     req.BillingZip,
	})
	switch {
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrCoursesUnavailable),
		errors.Is(err, models.ErrInvalidTotal):
		response.BadRequest(c, err.Error())
		return
	case err != nil:
		h.logger.Error("create order failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to create order")
		return
	}
	response.Created(c, o)
}

// Get handles GET /orders/:id.
func (h *Handler) Get(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid order id")
		return
	}
	o, err := h.svc.Get(c.Request.Context(), userID, id)
	if errors.Is(err, models.ErrOrderNotFound) {
		response.NotFound(c, "order not found")
		return
	}
	if err != nil {
		h.logger.Error("get order failed", zap.Error(err), zap.String("order_id", id.String()))
		response.Internal(c, "failed to get order")
		return
	}
	response.OK(c, o)
}

// List handles GET /orders.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	page, limit := response.Page(c)
	list, p, err := h.svc.List(c.Request.Context(), userID, page, limit)
	if err != nil {
		h.logger.Error("list orders failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to list orders")
		return
	}
	if list == nil {
		list = []*models.Order{}
	}
	response.Paged(c, "orders", list, p)
}
