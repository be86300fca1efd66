package notifications

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coursehub/checkout/internal/models"
	"github.com/coursehub/checkout/pkg/response"
)

// LogReader lists delivery attempts.
type LogReader interface {
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*models.EmailLog, error)
}

// Handler exposes e-mail delivery history to operators.
type Handler struct {
	logs   LogReader
	logger *zap.Logger
}

// NewHandler creates an email logs handler.
func NewHandler(logs LogReader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{logs: logs, logger: logger}
}

// ListByOrder handles GET /admin/orders/:id/emails.
func (h *Handler) ListByOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid order id")
		return
	}
	logs, err := h.logs.ListByOrder(c.Request.Context(), orderID)
	if err != nil {
		h.logger.Error("list email logs failed", zap.Error(err), zap.String("order_id", orderID.String()))
		response.Internal(c, "failed to load email logs")
		return
	}
	if logs == nil {
		logs = []*models.EmailLog{}
	}
	response.OK(c, gin.H{"emails": logs})
}
