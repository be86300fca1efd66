package refunds

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/coursehub/checkout/internal/gateway"
	"github.com/coursehub/checkout/internal/models"
)

// Store is the refunds persistence.
type Store interface {
	Create(ctx context.Context, rf *models.Refund) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Refund, error)
	GetByRemoteIDForUpdate(ctx context.Context, remoteID string) (*models.Refund, error)
	Update(ctx context.Context, rf *models.Refund) error
	SumSucceeded(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error)
	List(ctx context.Context, f models.RefundFilter, limit, offset int) ([]*models.Refund, int, error)
}

// PaymentStore is the payments persistence refunds need.
type PaymentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	Update(ctx context.Context, p *models.Payment) error
}

// OrderStore moves the order to REFUNDED once fully refunded.
type OrderStore interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) error
}

// Transactor runs fn in one database transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Gateway creates remote refunds.
type Gateway interface {
	CreateRefund(ctx context.Context, req gateway.CreateRefundRequest) (*gateway.Refund, error)
}

// CreateInput is an operator's refund request.
type CreateInput struct {
	PaymentID   uuid.UUID
	Amount      decimal.Decimal
	Reason      string
	Description string
}

// Result of reconciling one remote refund.
type Result struct {
	Refund *models.Refund
	// Changed is false for duplicate or out-of-order deliveries.
	Changed bool
	// FullyRefunded is true when this refund moved the payment to REFUNDED.
	FullyRefunded bool
}

// Service creates refunds and applies their gateway outcome.
type Service struct {
	refunds  Store
	payments PaymentStore
	orders   OrderStore
	tx       Transactor
	gw       Gateway
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a refund service.
func NewService(refunds Store, payments PaymentStore, orders OrderStore, tx Transactor, gw Gateway, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{refunds: refunds, payments: payments, orders: orders, tx: tx, gw: gw, logger: logger, now: time.Now}
}

// Create refunds part or all of a SUCCEEDED payment. The refund bound is checked
// before the gateway is called; an overrun creates nothing anywhere.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Refund, error) {
	if !in.Amount.GreaterThan(decimal.Zero) {
		return nil, models.ErrInvalidAmount
	}
	p, err := s.payments.GetByID(ctx, in.PaymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.PaymentStatusSucceeded || p.RemoteID == nil {
		return nil, models.ErrPaymentNotRefundable
	}
	refunded, err := s.refunds.SumSucceeded(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("sum refunds: %w", err)
	}
	if refunded.Add(in.Amount).GreaterThan(p.Amount) {
		return nil, models.ErrRefundExceedsPayment
	}

	remote, err := s.gw.CreateRefund(ctx, gateway.CreateRefundRequest{
		IdempotenceKey: uuid.NewString(),
		PaymentID:      *p.RemoteID,
		Amount:         gateway.NewAmount(in.Amount, p.Currency),
		Description:    in.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("create remote refund: %w", err)
	}

	rf := &models.Refund{
		PaymentID:   p.ID,
		RemoteID:    remote.ID,
		Amount:      in.Amount,
		Currency:    p.Currency,
		Status:      models.RefundStatusPending,
		Reason:      in.Reason,
		Description: in.Description,
	}
	if err := s.refunds.Create(ctx, rf); err != nil {
		s.logger.Error("local write after remote refund creation failed",
			zap.Error(err),
			zap.String("payment_id", p.ID.String()),
			zap.String("refund_remote_id", remote.ID))
		return nil, fmt.Errorf("store refund: %w", err)
	}
	s.logger.Info("refund created",
		zap.String("refund_id", rf.ID.String()),
		zap.String("payment_id", p.ID.String()),
		zap.String("amount", in.Amount.StringFixed(2)))

	if gateway.MapRefundStatus(remote.Status) != models.RefundStatusPending {
		res, err := s.ApplyRemote(ctx, remote)
		if err != nil {
			s.logger.Warn("immediate refund reconciliation failed", zap.Error(err), zap.String("refund_id", rf.ID.String()))
			return rf, nil
		}
		rf = res.Refund
	}
	return rf, nil
}

// ApplyRemote reconciles a remote refund snapshot. A refund leaves PENDING once.
// When succeeded refunds cover the payment amount, the payment and its order become
// REFUNDED in the same transaction.
func (s *Service) ApplyRemote(ctx context.Context, remote *gateway.Refund) (*Result, error) {
	target := gateway.MapRefundStatus(remote.Status)
	var res Result
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		res = Result{}
		rf, err := s.refunds.GetByRemoteIDForUpdate(ctx, remote.ID)
		if err != nil {
			return err
		}
		res.Refund = rf
		if rf.Status == target || rf.Status != models.RefundStatusPending {
			return nil
		}
		rf.Status = target
		if target != models.RefundStatusPending && rf.ProcessedAt == nil {
			now := s.now().UTC()
			rf.ProcessedAt = &now
		}
		if err := s.refunds.Update(ctx, rf); err != nil {
			return fmt.Errorf("update refund: %w", err)
		}
		res.Changed = true
		if target != models.RefundStatusSucceeded {
			return nil
		}

		p, err := s.payments.GetByIDForUpdate(ctx, rf.PaymentID)
		if err != nil {
			return fmt.Errorf("load payment: %w", err)
		}
		if p.Status != models.PaymentStatusSucceeded {
			return nil
		}
		total, err := s.refunds.SumSucceeded(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("sum refunds: %w", err)
		}
		if total.LessThan(p.Amount) {
			return nil
		}
		now := s.now().UTC()
		p.Status = models.PaymentStatusRefunded
		if p.RefundedAt == nil {
			p.RefundedAt = &now
		}
		if err := s.payments.Update(ctx, p); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		if err := s.orders.UpdateStatus(ctx, p.OrderID, models.OrderStatusRefunded); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		res.FullyRefunded = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("refund reconciled",
		zap.String("refund_id", res.Refund.ID.String()),
		zap.String("refund_remote_id", remote.ID),
		zap.String("status", string(res.Refund.Status)),
		zap.Bool("changed", res.Changed),
		zap.Bool("fully_refunded", res.FullyRefunded))
	return &res, nil
}

// Get returns a refund.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Refund, error) {
	return s.refunds.GetByID(ctx, id)
}

// List returns a filtered page of refunds.
func (s *Service) List(ctx context.Context, f models.RefundFilter, page, limit int) ([]*models.Refund, models.Pagination, error) {
	p := models.NewPagination(page, limit, 0)
	list, total, err := s.refunds.List(ctx, f, limit, p.Offset())
	if err != nil {
		return nil, p, err
	}
	return list, models.NewPagination(page, limit, total), nil
}
