package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusRefunded   OrderStatus = "REFUNDED"
)

// Order is a purchase intent for one or more courses.
// Customer fields are a snapshot taken at creation and never updated.
type Order struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	Status         OrderStatus     `json:"status"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Currency       string          `json:"currency"`
	CustomerName   string          `json:"customer_name"`
	CustomerEmail  string          `json:"customer_email"`
	CustomerPhone  string          `json:"customer_phone,omitempty"`
	BillingAddress string          `json:"billing_address,omitempty"`
	BillingCity    string          `json:"billing_city,omitempty"`
	BillingZip     string          `json:"billing_zip,omitempty"`
	Items          []OrderItem     `json:"items,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// OrderItem is one purchased course. Price is a point-in-time snapshot.
type OrderItem struct {
	ID        uuid.UUID       `json:"id"`
	OrderID   uuid.UUID       `json:"order_id"`
	CourseID  uuid.UUID       `json:"course_id"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
}

// ItemsTotal returns sum(price * quantity) over the order items.
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// CourseIDs returns the course ids of the order items in item order.
func (o *Order) CourseIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.CourseID)
	}
	return ids
}
