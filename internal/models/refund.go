package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RefundStatus for refunds.
type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "PENDING"
	RefundStatusSucceeded RefundStatus = "SUCCEEDED"
	RefundStatusCancelled RefundStatus = "CANCELLED"
	RefundStatusFailed    RefundStatus = "FAILED"
)

// Refund is a partial or full money-back against a payment.
type Refund struct {
	ID          uuid.UUID       `json:"id"`
	PaymentID   uuid.UUID       `json:"payment_id"`
	RemoteID    string          `json:"remote_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Status      RefundStatus    `json:"status"`
	Reason      string          `json:"reason,omitempty"`
	Description string          `json:"description,omitempty"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
