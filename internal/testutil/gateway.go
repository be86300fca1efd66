package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coursehub/checkout/internal/gateway"
)

// Gateway is a scripted payment gateway. The zero value creates pending payments
// and pending refunds.
type Gateway struct {
	mu sync.Mutex

	// CreateStatus is the status returned by CreatePayment; "" means pending.
	CreateStatus string
	// RefundStatus is the status returned by CreateRefund; "" means pending.
	RefundStatus string

	CreatePaymentErr error
	GetPaymentErr    error
	CancelPaymentErr error
	CreateRefundErr  error

	Payments       map[string]*gateway.Payment
	PaymentReqs    []gateway.CreatePaymentRequest
	RefundReqs     []gateway.CreateRefundRequest
	CancelKeys     []string
	GetPaymentHits int
}

// PaymentURL is the confirmation URL the fake hands out.
func PaymentURL(remoteID string) string {
	return "https://gateway.test/checkout/" + remoteID
}

// SetStatus changes the remote status later returned by GetPayment.
func (g *Gateway) SetStatus(remoteID, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.Payments[remoteID]; ok {
		p.Status = status
		p.Paid = status == gateway.StatusSucceeded || status == gateway.StatusWaitingForCapture
	}
}

// CreatePayment records req and returns a new remote payment.
func (g *Gateway) CreatePayment(_ context.Context, req gateway.CreatePaymentRequest) (*gateway.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.PaymentReqs = append(g.PaymentReqs, req)
	if g.CreatePaymentErr != nil {
		return nil, g.CreatePaymentErr
	}
	status := g.CreateStatus
	if status == "" {
		status = gateway.StatusPending
	}
	id := "pay_" + uuid.NewString()
	p := &gateway.Payment{
		ID:           id,
		Status:       status,
		Amount:       req.Amount,
		Description:  req.Description,
		Confirmation: &gateway.Confirmation{Type: "redirect", ConfirmationURL: PaymentURL(id)},
		Metadata:     req.Metadata,
		CreatedAt:    time.Now().UTC(),
	}
	if g.Payments == nil {
		g.Payments = make(map[string]*gateway.Payment)
	}
	g.Payments[id] = p
	cp := *p
	return &cp, nil
}

// GetPayment returns the current remote payment.
func (g *Gateway) GetPayment(_ context.Context, paymentID string) (*gateway.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.GetPaymentHits++
	if g.GetPaymentErr != nil {
		return nil, g.GetPaymentErr
	}
	p, ok := g.Payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("%w: payment %s not found", gateway.ErrService, paymentID)
	}
	cp := *p
	return &cp, nil
}

// CancelPayment moves a remote payment to canceled.
func (g *Gateway) CancelPayment(_ context.Context, paymentID, key string) (*gateway.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.CancelKeys = append(g.CancelKeys, key)
	if g.CancelPaymentErr != nil {
		return nil, g.CancelPaymentErr
	}
	p, ok := g.Payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown payment %s", gateway.ErrValidation, paymentID)
	}
	p.Status = gateway.StatusCanceled
	cp := *p
	return &cp, nil
}

// CreateRefund records req and returns a new remote refund.
func (g *Gateway) CreateRefund(_ context.Context, req gateway.CreateRefundRequest) (*gateway.Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.RefundReqs = append(g.RefundReqs, req)
	if g.CreateRefundErr != nil {
		return nil, g.CreateRefundErr
	}
	status := g.RefundStatus
	if status == "" {
		status = gateway.StatusPending
	}
	return &gateway.Refund{
		ID:        "rf_" + uuid.NewString(),
		PaymentID: req.PaymentID,
		Status:    status,
		Amount:    req.Amount,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// RemotePayment builds a webhook-style payment snapshot.
func RemotePayment(remoteID, status, amount string) *gateway.Payment {
	return &gateway.Payment{
		ID:            remoteID,
		Status:        status,
		Paid:          status == gateway.StatusSucceeded,
		Amount:        gateway.Amount{Value: amount, Currency: "RUB"},
		PaymentMethod: &gateway.PaymentMethod{Type: "bank_card"},
	}
}
