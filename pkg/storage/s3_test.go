package storage

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestWebhookKey(t *testing.T) {
	id := uuid.MustParse("6f1c2a9e-1d5b-4c8e-9a53-0b9d2f7e4a11")
	at := time.Date(2026, 3, 9, 23, 30, 0, 0, time.FixedZone("MSK", 3*3600))

	assert.Equal(t, "webhooks/2026/03/09/payment.succeeded/"+id.String()+".json",
		WebhookKey(id, "payment.succeeded", at))
	assert.Equal(t, "webhooks/2026/03/09/unknown/"+id.String()+".json",
		WebhookKey(id, "", at))
	assert.Equal(t, "webhooks/2026/03/09/x/"+id.String()+".json",
		WebhookKey(id, "../../x", at), "event type cannot escape the prefix")
}
