package gateway

import (
	"time"

	"github.com/shopspring/decimal"
)

// Amount is a money value in gateway wire format ("4500.00").
type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// NewAmount formats d with two decimal places.
func NewAmount(d decimal.Decimal, currency string) Amount {
	return Amount{Value: d.StringFixed(2), Currency: currency}
}

// Decimal parses the amount value.
func (a Amount) Decimal() (decimal.Decimal, error) {
	return decimal.NewFromString(a.Value)
}

// Confirmation describes how the customer confirms the payment.
type Confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

// PaymentMethod is the method the customer paid with.
type PaymentMethod struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type"`
}

// Payment is the gateway's record of a payment attempt.
type Payment struct {
	ID            string            `json:"id"`
	Status        string            `json:"status"`
	Paid          bool              `json:"paid"`
	Amount        Amount            `json:"amount"`
	Description   string            `json:"description,omitempty"`
	Confirmation  *Confirmation     `json:"confirmation,omitempty"`
	PaymentMethod *PaymentMethod    `json:"payment_method,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// ConfirmationURL returns the redirect URL, if the gateway sent one.
func (p *Payment) ConfirmationURL() string {
	if p.Confirmation == nil {
		return ""
	}
	return p.Confirmation.ConfirmationURL
}

// MethodType returns the payment method type or "".
func (p *Payment) MethodType() string {
	if p.PaymentMethod == nil {
		return ""
	}
	return p.PaymentMethod.Type
}

// CreatePaymentRequest is the body of POST /payments.
type CreatePaymentRequest struct {
	// IdempotenceKey identifies one logical attempt; reuse it only when retrying that attempt.
	IdempotenceKey string            `json:"-"`
	Amount         Amount            `json:"amount"`
	Capture        bool              `json:"capture"`
	Confirmation   Confirmation      `json:"confirmation"`
	Description    string            `json:"description,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Refund is the gateway's record of a refund.
type Refund struct {
	ID          string    `json:"id"`
	PaymentID   string    `json:"payment_id"`
	Status      string    `json:"status"`
	Amount      Amount    `json:"amount"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateRefundRequest is the body of POST /refunds.
type CreateRefundRequest struct {
	IdempotenceKey string `json:"-"`
	PaymentID      string `json:"payment_id"`
	Amount         Amount `json:"amount"`
	Description    string `json:"description,omitempty"`
}
