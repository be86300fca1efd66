package payments

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coursehub/checkout/internal/gateway"
	"github.com/coursehub/checkout/internal/models"
)

// PaymentStore is the payments persistence used by this package.
type PaymentStore interface {
	Create(ctx context.Context, p *models.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	GetByRemoteIDForUpdate(ctx context.Context, remoteID string) (*models.Payment, error)
	Update(ctx context.Context, p *models.Payment) error
}

// OrderStore is the orders persistence used by this package.
type OrderStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) error
}

// Transactor runs fn in one database transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Gateway is the subset of the payment gateway API used for payments.
type Gateway interface {
	CreatePayment(ctx context.Context, req gateway.CreatePaymentRequest) (*gateway.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*gateway.Payment, error)
	CancelPayment(ctx context.Context, paymentID, key string) (*gateway.Payment, error)
}

// InitiateResult is returned to the buyer, who must follow ConfirmationURL.
type InitiateResult struct {
	Payment         *models.Payment
	ConfirmationURL string
}

// Service starts, reads and cancels payments on behalf of buyers.
type Service struct {
	payments   PaymentStore
	orders     OrderStore
	tx         Transactor
	gw         Gateway
	reconciler *Reconciler
	returnURL  string
	logger     *zap.Logger
}

// NewService creates a payment service. defaultReturnURL is the storefront base URL
// used when the buyer does not send a return URL.
func NewService(payments PaymentStore, orders OrderStore, tx Transactor, gw Gateway, reconciler *Reconciler, defaultReturnURL string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		payments:   payments,
		orders:     orders,
		tx:         tx,
		gw:         gw,
		reconciler: reconciler,
		returnURL:  defaultReturnURL,
		logger:     logger,
	}
}

// Initiate creates a remote payment for the user's PENDING order, stores the local
// mirror and moves the order to PROCESSING.
//
// The gateway call and the local writes are not atomic. If the local transaction
// fails after the gateway accepted the payment, the remote payment is orphaned and
// logged with its remote id.
func (s *Service) Initiate(ctx context.Context, userID, orderID uuid.UUID, returnURL string) (*InitiateResult, error) {
	o, err := s.orders.GetByIDForUser(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	if o.Status != models.OrderStatusPending {
		return nil, models.ErrOrderAlreadyProcessed
	}
	if _, err := s.payments.GetByOrderID(ctx, o.ID); err == nil {
		return nil, models.ErrPaymentExists
	} else if !errors.Is(err, models.ErrPaymentNotFound) {
		return nil, fmt.Errorf("check existing payment: %w", err)
	}

	if returnURL == "" {
		returnURL = s.defaultReturnURL(o.ID)
	}
	courseIDs := make([]string, 0, len(o.Items))
	for _, id := range o.CourseIDs() {
		courseIDs = append(courseIDs, id.String())
	}
	req := gateway.CreatePaymentRequest{
		IdempotenceKey: uuid.NewString(),
		Amount:         gateway.NewAmount(o.TotalAmount, o.Currency),
		Capture:        true,
		Confirmation:   gateway.Confirmation{Type: "redirect", ReturnURL: returnURL},
		Description:    "Payment for order #" + o.ID.String(),
		Metadata: map[string]string{
			"order_id":   o.ID.String(),
			"user_id":    userID.String(),
			"course_ids": strings.Join(courseIDs, ","),
		},
	}

	remote, err := s.gw.CreatePayment(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create remote payment: %w", err)
	}

	status := gateway.MapStatus(remote.Status)
	if status.IsTerminal() {
		// The side effects of a terminal status belong to the reconciler.
		status = models.PaymentStatusPending
	}
	remoteID := remote.ID
	p := &models.Payment{
		OrderID:         o.ID,
		RemoteID:        &remoteID,
		Status:          status,
		Amount:          o.TotalAmount,
		Currency:        o.Currency,
		PaymentMethod:   remote.MethodType(),
		Description:     req.Description,
		ConfirmationURL: remote.ConfirmationURL(),
		Metadata:        req.Metadata,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.payments.Create(ctx, p); err != nil {
			return err
		}
		return s.orders.UpdateStatus(ctx, o.ID, models.OrderStatusProcessing)
	})
	if err != nil {
		s.logger.Error("local write after remote payment creation failed; remote payment orphaned",
			zap.Error(err),
			zap.String("order_id", o.ID.String()),
			zap.String("remote_id", remote.ID),
			zap.String("idempotence_key", req.IdempotenceKey))
		return nil, fmt.Errorf("store payment: %w", err)
	}
	s.logger.Info("payment initiated",
		zap.String("payment_id", p.ID.String()),
		zap.String("order_id", o.ID.String()),
		zap.String("remote_id", remote.ID),
		zap.String("status", string(p.Status)))

	if gateway.MapStatus(remote.Status).IsTerminal() {
		if res, err := s.reconciler.ApplyRemote(ctx, remote); err != nil {
			s.logger.Warn("immediate reconciliation failed", zap.Error(err), zap.String("remote_id", remote.ID))
		} else {
			p = res.Payment
		}
	}
	return &InitiateResult{Payment: p, ConfirmationURL: remote.ConfirmationURL()}, nil
}

// Get returns the user's payment. A payment still waiting on the gateway is
// refreshed from it first; a failed refresh returns the stored state.
func (s *Service) Get(ctx context.Context, userID, paymentID uuid.UUID) (*models.Payment, error) {
	p, err := s.owned(ctx, userID, paymentID)
	if err != nil {
		return nil, err
	}
	if p.RemoteID == nil || (p.Status != models.PaymentStatusPending && p.Status != models.PaymentStatusProcessing) {
		return p, nil
	}
	remote, err := s.gw.GetPayment(ctx, *p.RemoteID)
	if err != nil {
		s.logger.Warn("payment sync failed", zap.Error(err), zap.String("payment_id", p.ID.String()), zap.String("remote_id", *p.RemoteID))
		return p, nil
	}
	res, err := s.reconciler.ApplyRemote(ctx, remote)
	if err != nil {
		s.logger.Warn("payment sync reconcile failed", zap.Error(err), zap.String("payment_id", p.ID.String()), zap.String("remote_id", *p.RemoteID))
		return p, nil
	}
	return res.Payment, nil
}

// Cancel cancels the user's payment at the gateway and reconciles the result.
// Only PENDING and PROCESSING payments can be cancelled.
func (s *Service) Cancel(ctx context.Context, userID, paymentID uuid.UUID) (*models.Payment, error) {
	p, err := s.owned(ctx, userID, paymentID)
	if err != nil {
		return nil, err
	}
	if p.RemoteID == nil || (p.Status != models.PaymentStatusPending && p.Status != models.PaymentStatusProcessing) {
		return nil, models.ErrPaymentNotCancelable
	}
	remote, err := s.gw.CancelPayment(ctx, *p.RemoteID, uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("cancel remote payment: %w", err)
	}
	res, err := s.reconciler.ApplyRemote(ctx, remote)
	if err != nil {
		return nil, fmt.Errorf("reconcile cancelled payment: %w", err)
	}
	return res.Payment, nil
}

func (s *Service) owned(ctx context.Context, userID, paymentID uuid.UUID) (*models.Payment, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	o, err := s.orders.GetByID(ctx, p.OrderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if o.UserID != userID {
		return nil, models.ErrForbidden
	}
	return p, nil
}

func (s *Service) defaultReturnURL(orderID uuid.UUID) string {
	u, err := url.JoinPath(s.returnURL, "orders", orderID.String(), "success")
	if err != nil {
		return s.returnURL
	}
	return u
}
