package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WebhookEvent is an append-only ledger row for one inbound gateway notification.
type WebhookEvent struct {
	ID              uuid.UUID       `json:"id"`
	EventType       string          `json:"event_type"`
	ObjectID        string          `json:"object_id,omitempty"`
	Payload         json.RawMessage `json:"payload"`
	Processed       bool            `json:"processed"`
	ProcessingError string          `json:"processing_error,omitempty"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}
