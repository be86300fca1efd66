package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coursehub/checkout/internal/gateway"
	"github.com/coursehub/checkout/internal/models"
	"github.com/coursehub/checkout/internal/payments"
)

// StalePayments lists payments that have waited too long for a webhook.
type StalePayments interface {
	ListStale(ctx context.Context, statuses []models.PaymentStatus, updatedBefore time.Time, limit int) ([]*models.Payment, error)
	Touch(ctx context.Context, id uuid.UUID) error
}

// RemotePayments reads payment state from the gateway.
type RemotePayments interface {
	GetPayment(ctx context.Context, paymentID string) (*gateway.Payment, error)
}

// Reconciler applies a remote payment snapshot.
type Reconciler interface {
	ApplyRemote(ctx context.Context, remote *gateway.Payment) (*payments.Result, error)
}

// SweeperConfig controls the stale payment sweep.
type SweeperConfig struct {
	Interval   time.Duration
	StaleAfter time.Duration
	BatchSize  int
}

// PaymentSweeper polls the gateway for payments stuck in PENDING or PROCESSING,
// covering webhooks that never arrived.
type PaymentSweeper struct {
	payments   StalePayments
	gw         RemotePayments
	reconciler Reconciler
	cfg        SweeperConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewPaymentSweeper creates a sweeper. Zero config values get defaults.
func NewPaymentSweeper(ps StalePayments, gw RemotePayments, rec Reconciler, cfg SweeperConfig, logger *zap.Logger) *PaymentSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 15 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &PaymentSweeper{payments: ps, gw: gw, reconciler: rec, cfg: cfg, logger: logger, now: time.Now}
}

// Run sweeps every Interval until ctx is done.
func (s *PaymentSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("payment sweeper stopping")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep processes one batch and returns how many payments changed state.
func (s *PaymentSweeper) Sweep(ctx context.Context) int {
	cutoff := s.now().Add(-s.cfg.StaleAfter)
	stale, err := s.payments.ListStale(ctx,
		[]models.PaymentStatus{models.PaymentStatusPending, models.PaymentStatusProcessing},
		cutoff, s.cfg.BatchSize)
	if err != nil {
		s.logger.Error("list stale payments failed", zap.Error(err))
		return 0
	}
	changed := 0
	for _, p := range stale {
		if ctx.Err() != nil {
			break
		}
		fields := []zap.Field{zap.String("payment_id", p.ID.String()), zap.String("remote_id", p.RemoteIDString())}
		remote, err := s.gw.GetPayment(ctx, p.RemoteIDString())
		if err != nil {
			s.logger.Warn("sweep fetch failed", append(fields, zap.Error(err))...)
			continue
		}
		res, err := s.reconciler.ApplyRemote(ctx, remote)
		if err != nil {
			s.logger.Warn("sweep reconcile failed", append(fields, zap.Error(err))...)
			continue
		}
		if res.Outcome == payments.OutcomeApplied {
			changed++
			continue
		}
		// Still waiting remotely: push it to the back of the sweep order.
		if err := s.payments.Touch(ctx, p.ID); err != nil {
			s.logger.Warn("sweep touch failed", append(fields, zap.Error(err))...)
		}
	}
	if len(stale) > 0 {
		s.logger.Info("payment sweep done", zap.Int("checked", len(stale)), zap.Int("changed", changed))
	}
	return changed
}
