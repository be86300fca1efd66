package models

import "github.com/google/uuid"

// RefundFilter narrows refund listings. Zero values match everything.
type RefundFilter struct {
	PaymentID *uuid.UUID
	Status    RefundStatus
}

// WebhookEventFilter narrows ledger listings.
type WebhookEventFilter struct {
	Processed *bool
	EventType string
}
