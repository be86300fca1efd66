package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/coursehub/checkout/internal/models"
	"github.com/coursehub/checkout/internal/notifications"
	"github.com/coursehub/checkout/pkg/mailer"
	"github.com/coursehub/checkout/pkg/queue"
)

// JobSource is the queue the notification worker consumes.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// EmailLogStore records delivery attempts.
type EmailLogStore interface {
	Create(ctx context.Context, el *models.EmailLog) error
}

// NotificationProcessor sends order confirmation e-mails from the queue.
type NotificationProcessor struct {
	queue   JobSource
	mailer  mailer.Mailer
	logs    EmailLogStore
	logger  *zap.Logger
	backoff time.Duration
}

// NewNotificationProcessor creates a notification processor.
func NewNotificationProcessor(q JobSource, m mailer.Mailer, logs EmailLogStore, logger *zap.Logger) *NotificationProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationProcessor{queue: q, mailer: m, logs: logs, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one job. Every send attempt leaves an email_logs row.
func (p *NotificationProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeOrderEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.OrderEmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	subject, body, err := notifications.RenderOrderConfirmation(payload)
	if err != nil {
		return err
	}

	orderID := payload.OrderID
	el := &models.EmailLog{
		OrderID:        &orderID,
		EmailType:      models.EmailTypeOrderConfirmation,
		RecipientEmail: payload.RecipientEmail,
		Subject:        subject,
	}
	sendErr := p.mailer.Send(ctx, payload.RecipientEmail, subject, body)
	if sendErr != nil {
		el.Status = models.EmailLogStatusFailed
		el.ErrorMessage = sendErr.Error()
	} else {
		now := time.Now().UTC()
		el.Status = models.EmailLogStatusSent
		el.SentAt = &now
	}
	if err := p.logs.Create(ctx, el); err != nil {
		p.logger.Error("create email log failed", zap.Error(err), zap.String("order_id", orderID.String()))
	}
	if sendErr != nil {
		return fmt.Errorf("send email: %w", sendErr)
	}
	p.logger.Info("order confirmation sent", zap.String("order_id", orderID.String()), zap.String("job_id", job.ID))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *NotificationProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("notification worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			sleep(ctx, p.backoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(context.WithoutCancel(ctx), job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			sleep(ctx, p.backoff)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
