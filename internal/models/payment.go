package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus is the internal payment vocabulary the gateway statuses map onto.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusSucceeded  PaymentStatus = "SUCCEEDED"
	PaymentStatusCancelled  PaymentStatus = "CANCELLED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
)

// IsTerminal reports whether no further webhook-driven transition is allowed.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusSucceeded, PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	}
	return false
}

// Payment is the local mirror of one remote gateway payment (1:1 with Order).
type Payment struct {
	ID              uuid.UUID         `json:"id"`
	OrderID         uuid.UUID         `json:"order_id"`
	RemoteID        *string           `json:"remote_id,omitempty"`
	Status          PaymentStatus     `json:"status"`
	Amount          decimal.Decimal   `json:"amount"`
	Currency        string            `json:"currency"`
	PaymentMethod   string            `json:"payment_method,omitempty"`
	Description     string            `json:"description,omitempty"`
	ConfirmationURL string            `json:"confirmation_url,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	PaidAt          *time.Time        `json:"paid_at,omitempty"`
	CancelledAt     *time.Time        `json:"cancelled_at,omitempty"`
	RefundedAt      *time.Time        `json:"refunded_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// RemoteIDString returns the remote id or "" when the gateway call has not succeeded yet.
func (p *Payment) RemoteIDString() string {
	if p.RemoteID == nil {
		return ""
	}
	return *p.RemoteID
}
