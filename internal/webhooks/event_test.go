package webhooks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	t.Run("payment succeeded", func(t *testing.T) {
		ev, err := DecodeEvent([]byte(`{"type":"notification","event":"payment.succeeded",
			"object":{"id":"pay_1","status":"succeeded","paid":true,"amount":{"value":"4500.00","currency":"RUB"},
			"payment_method":{"type":"bank_card"}}}`))
		require.NoError(t, err)
		e, ok := ev.(PaymentSucceeded)
		require.True(t, ok)
		assert.Equal(t, "pay_1", e.ObjectID())
		assert.Equal(t, "succeeded", e.Payment.Status)
		assert.Equal(t, "bank_card", e.Payment.MethodType())
	})

	t.Run("payment canceled", func(t *testing.T) {
		ev, err := DecodeEvent([]byte(`{"event":"payment.canceled","object":{"id":"pay_2","status":"canceled"}}`))
		require.NoError(t, err)
		assert.IsType(t, PaymentCanceled{}, ev)
		assert.Equal(t, EventPaymentCanceled, ev.Name())
	})

	t.Run("refund succeeded", func(t *testing.T) {
		ev, err := DecodeEvent([]byte(`{"event":"refund.succeeded","object":{"id":"rf_1","payment_id":"pay_1","status":"succeeded"}}`))
		require.NoError(t, err)
		e, ok := ev.(RefundSucceeded)
		require.True(t, ok)
		assert.Equal(t, "pay_1", e.Refund.PaymentID)
	})

	t.Run("other event", func(t *testing.T) {
		ev, err := DecodeEvent([]byte(`{"event":"payment.waiting_for_capture","object":{"id":"pay_3"}}`))
		require.NoError(t, err)
		e, ok := ev.(Other)
		require.True(t, ok)
		assert.Equal(t, "payment.waiting_for_capture", e.Name())
		assert.Equal(t, "pay_3", e.ObjectID())
	})
}

func TestDecodeEvent_Malformed(t *testing.T) {
	bodies := map[string]string{
		"not json":           `{"event":`,
		"missing event":      `{"object":{"id":"pay_1"}}`,
		"missing object":     `{"event":"payment.succeeded"}`,
		"null object":        `{"event":"payment.succeeded","object":null}`,
		"missing payment id": `{"event":"payment.succeeded","object":{"status":"succeeded"}}`,
		"missing refund id":  `{"event":"refund.succeeded","object":{"status":"succeeded"}}`,
		"object wrong type":  `{"event":"payment.canceled","object":"pay_1"}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeEvent([]byte(body))
			assert.ErrorIs(t, err, ErrMalformedEvent)
		})
	}
}
