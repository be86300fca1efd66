package webhooks

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/coursehub/checkout/internal/gateway"
)

// Gateway notification event names.
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentCanceled  = "payment.canceled"
	EventRefundSucceeded  = "refund.succeeded"
)

// ErrMalformedEvent means the body is not a notification we can act on. Permanent.
var ErrMalformedEvent = errors.New("webhooks: malformed event")

// Event is one decoded gateway notification: PaymentSucceeded, PaymentCanceled,
// RefundSucceeded or Other.
type Event interface {
	Name() string
	ObjectID() string
	event()
}

// PaymentSucceeded carries the remote payment of a payment.succeeded notification.
type PaymentSucceeded struct{ Payment *gateway.Payment }

// PaymentCanceled carries the remote payment of a payment.canceled notification.
type PaymentCanceled struct{ Payment *gateway.Payment }

// RefundSucceeded carries the remote refund of a refund.succeeded notification.
type RefundSucceeded struct{ Refund *gateway.Refund }

// Other is any notification we acknowledge without acting on.
type Other struct {
	Event string
	ID    string
	Raw   json.RawMessage
}

func (e PaymentSucceeded) Name() string     { return EventPaymentSucceeded }
func (e PaymentSucceeded) ObjectID() string { return e.Payment.ID }
func (PaymentSucceeded) event()             {}

func (e PaymentCanceled) Name() string     { return EventPaymentCanceled }
func (e PaymentCanceled) ObjectID() string { return e.Payment.ID }
func (PaymentCanceled) event()             {}

func (e RefundSucceeded) Name() string     { return EventRefundSucceeded }
func (e RefundSucceeded) ObjectID() string { return e.Refund.ID }
func (RefundSucceeded) event()             {}

func (e Other) Name() string     { return e.Event }
func (e Other) ObjectID() string { return e.ID }
func (Other) event()             {}

type envelope struct {
	Type   string          `json:"type"`
	Event  string          `json:"event"`
	Object json.RawMessage `json:"object"`
}

// DecodeEvent parses a notification body. Payment and refund events must carry an
// object with an id; anything else is returned as Other.
func DecodeEvent(body []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("%w: missing event", ErrMalformedEvent)
	}

	switch env.Event {
	case EventPaymentSucceeded, EventPaymentCanceled:
		var p gateway.Payment
		if err := decodeObject(env.Object, &p); err != nil {
			return nil, err
		}
		if p.ID == "" {
			return nil, fmt.Errorf("%w: missing object.id", ErrMalformedEvent)
		}
		if env.Event == EventPaymentSucceeded {
			return PaymentSucceeded{Payment: &p}, nil
		}
		return PaymentCanceled{Payment: &p}, nil
	case EventRefundSucceeded:
		var r gateway.Refund
		if err := decodeObject(env.Object, &r); err != nil {
			return nil, err
		}
		if r.ID == "" {
			return nil, fmt.Errorf("%w: missing object.id", ErrMalformedEvent)
		}
		return RefundSucceeded{Refund: &r}, nil
	default:
		var obj struct {
			ID string `json:"id"`
		}
		// The id is informational for events we ignore.
		_ = json.Unmarshal(env.Object, &obj)
		return Other{Event: env.Event, ID: obj.ID, Raw: env.Object}, nil
	}
}

func decodeObject(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: missing object", ErrMalformedEvent)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: object: %v", ErrMalformedEvent, err)
	}
	return nil
}
