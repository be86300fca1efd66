package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coursehub/checkout/internal/gateway"
	"github.com/coursehub/checkout/internal/models"
)

// Outcome says what ApplyRemote did with a remote payment snapshot.
type Outcome string

const (
	// OutcomeApplied means local state moved towards the remote status.
	OutcomeApplied Outcome = "applied"
	// OutcomeDuplicate means local state already matched; only denormalized fields were refreshed.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeStale means the payment is terminal with a different status; nothing was written.
	OutcomeStale Outcome = "stale"
)

// Result of one reconciliation.
type Result struct {
	Outcome     Outcome
	Payment     *models.Payment
	Order       *models.Order
	Enrollments []*models.Enrollment
}

// Granter creates enrollments for a paid order inside the caller's transaction.
type Granter interface {
	Grant(ctx context.Context, userID uuid.UUID, courseIDs []uuid.UUID) ([]*models.Enrollment, error)
}

// Notifier is told about orders that just completed. Called after commit.
type Notifier interface {
	OrderCompleted(ctx context.Context, order *models.Order, payment *models.Payment) error
}

// Reconciler moves a local payment, its order and the buyer's enrollments to
// match the gateway's view of the payment.
type Reconciler struct {
	payments PaymentStore
	orders   OrderStore
	granter  Granter
	tx       Transactor
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewReconciler creates a reconciler. notifier may be nil.
func NewReconciler(payments PaymentStore, orders OrderStore, granter Granter, tx Transactor, notifier Notifier, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		payments: payments,
		orders:   orders,
		granter:  granter,
		tx:       tx,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// ApplyRemote reconciles one remote payment snapshot. The remote status decides the
// target, never the event that carried it, so duplicate and out-of-order deliveries
// are safe. All writes share one transaction holding the payment row lock.
// An unknown remote id returns models.ErrPaymentNotFound.
func (r *Reconciler) ApplyRemote(ctx context.Context, remote *gateway.Payment) (*Result, error) {
	target := gateway.MapStatus(remote.Status)
	method := remote.MethodType()
	var res Result

	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		res = Result{}
		p, err := r.payments.GetByRemoteIDForUpdate(ctx, remote.ID)
		if err != nil {
			return err
		}
		res.Payment = p

		if p.Status.IsTerminal() || p.Status == target {
			if p.Status != target {
				res.Outcome = OutcomeStale
				return nil
			}
			res.Outcome = OutcomeDuplicate
			if method == "" || method == p.PaymentMethod {
				return nil
			}
			p.PaymentMethod = method
			return r.payments.Update(ctx, p)
		}

		now := r.now().UTC()
		p.Status = target
		if method != "" {
			p.PaymentMethod = method
		}
		if url := remote.ConfirmationURL(); url != "" {
			p.ConfirmationURL = url
		}
		var orderStatus models.OrderStatus
		switch target {
		case models.PaymentStatusSucceeded:
			setOnce(&p.PaidAt, now)
			orderStatus = models.OrderStatusCompleted
		case models.PaymentStatusCancelled:
			setOnce(&p.CancelledAt, now)
			orderStatus = models.OrderStatusCancelled
		case models.PaymentStatusRefunded:
			setOnce(&p.RefundedAt, now)
			orderStatus = models.OrderStatusRefunded
		}
		if err := r.payments.Update(ctx, p); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		res.Outcome = OutcomeApplied
		if orderStatus == "" {
			return nil
		}

		o, err := r.orders.GetByID(ctx, p.OrderID)
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}
		if err := r.orders.UpdateStatus(ctx, o.ID, orderStatus); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		o.Status = orderStatus
		res.Order = o

		if target == models.PaymentStatusSucceeded {
			created, err := r.granter.Grant(ctx, o.UserID, o.CourseIDs())
			if err != nil {
				return fmt.Errorf("grant enrollments: %w", err)
			}
			res.Enrollments = created
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.String("payment_id", res.Payment.ID.String()),
		zap.String("order_id", res.Payment.OrderID.String()),
		zap.String("remote_id", remote.ID),
		zap.String("remote_status", remote.Status),
		zap.String("outcome", string(res.Outcome)),
	}
	switch res.Outcome {
	case OutcomeApplied:
		r.logger.Info("payment reconciled", append(fields, zap.String("status", string(res.Payment.Status)))...)
	case OutcomeStale:
		r.logger.Warn("stale payment status ignored", append(fields, zap.String("status", string(res.Payment.Status)))...)
	default:
		r.logger.Debug("duplicate payment status", fields...)
	}

	if res.Outcome == OutcomeApplied && res.Payment.Status == models.PaymentStatusSucceeded && r.notifier != nil {
		if err := r.notifier.OrderCompleted(ctx, res.Order, res.Payment); err != nil {
			r.logger.Warn("order completion notification failed", append(fields, zap.Error(err))...)
		}
	}
	return &res, nil
}

func setOnce(dst **time.Time, t time.Time) {
	if *dst == nil {
		*dst = &t
	}
}
