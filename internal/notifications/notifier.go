package notifications

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/coursehub/checkout/internal/models"
	"github.com/coursehub/checkout/pkg/queue"
)

// Enqueuer accepts order e-mail jobs.
type Enqueuer interface {
	EnqueueOrderEmail(ctx context.Context, payload queue.OrderEmailPayload) error
}

// Notifier turns completed orders into confirmation e-mail jobs.
type Notifier struct {
	queue  Enqueuer
	logger *zap.Logger
}

// NewNotifier creates a notifier.
func NewNotifier(q Enqueuer, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{queue: q, logger: logger}
}

// OrderCompleted enqueues the confirmation e-mail for a paid order.
func (n *Notifier) OrderCompleted(ctx context.Context, order *models.Order, payment *models.Payment) error {
	if order == nil || payment == nil {
		return fmt.Errorf("order and payment are required")
	}
	titles := make([]string, 0, len(order.Items))
	for _, it := range order.Items {
		titles = append(titles, it.Title)
	}
	payload := queue.OrderEmailPayload{
		OrderID:        order.ID,
		PaymentID:      payment.ID,
		UserID:         order.UserID,
		RecipientEmail: order.CustomerEmail,
		CustomerName:   order.CustomerName,
		Amount:         payment.Amount.StringFixed(2),
		Currency:       payment.Currency,
		CourseTitles:   titles,
	}
	if err := n.queue.EnqueueOrderEmail(ctx, payload); err != nil {
		return fmt.Errorf("enqueue order email: %w", err)
	}
	n.logger.Info("order confirmation queued", zap.String("order_id", order.ID.String()))
	return nil
}
