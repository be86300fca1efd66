package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Course is the catalog projection checkout needs.
type Course struct {
	ID       uuid.UUID       `json:"id"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	IsActive bool            `json:"is_active"`
}
