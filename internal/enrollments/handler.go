package enrollments

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coursehub/checkout/internal/middleware"
	"github.com/coursehub/checkout/internal/models"
	"github.com/coursehub/checkout/pkg/response"
)

// Store is the read/update side used by the HTTP handlers.
type Store interface {
	ListByUser(ctx context.Context, userID uuid.UUID, status models.EnrollmentStatus, limit, offset int) ([]*models.Enrollment, int, error)
	UpdateProgress(ctx context.Context, id, userID uuid.UUID, progress int) (*models.Enrollment, error)
}

// ProgressRequest is the body for PUT /enrollments/:id/progress.
type ProgressRequest struct {
	Progress *int `json:"progress" binding:"required"`
}

// Handler handles enrollment HTTP endpoints.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates an enrollments handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// List handles GET /enrollments.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	status := models.EnrollmentStatus(c.Query("status"))
	switch status {
	case "", models.EnrollmentStatusActive, models.EnrollmentStatusCompleted,
		models.EnrollmentStatusSuspended, models.EnrollmentStatusCancelled:
	default:
		response.BadRequest(c, "invalid status")
		return
	}
	page, limit := response.Page(c)
	p := models.NewPagination(page, limit, 0)
	list, total, err := h.store.ListByUser(c.Request.Context(), userID, status, limit, p.Offset())
	if err != nil {
		h.logger.Error("list enrollments failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to list enrollments")
		return
	}
	if list == nil {
		list = []*models.Enrollment{}
	}
	response.Paged(c, "enrollments", list, models.NewPagination(page, limit, total))
}

// UpdateProgress handles PUT /enrollments/:id/progress.
func (h *Handler) UpdateProgress(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid enrollment id")
		return
	}
	var req ProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if *req.Progress < 0 || *req.Progress > 100 {
		response.BadRequest(c, models.ErrInvalidProgress.Error())
		return
	}
	e, err := h.store.UpdateProgress(c.Request.Context(), id, userID, *req.Progress)
	if errors.Is(err, models.ErrEnrollmentNotFound) {
		response.NotFound(c, "enrollment not found")
		return
	}
	if err != nil {
		h.logger.Error("update progress failed", zap.Error(err), zap.String("enrollment_id", id.String()))
		response.Internal(c, "failed to update progress")
		return
	}
	response.OK(c, e)
}
