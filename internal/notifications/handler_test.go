package notifications_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/checkout/internal/models"
	"github.com/coursehub/checkout/internal/notifications"
	"github.com/coursehub/checkout/internal/testutil"
)

func TestListByOrder(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := testutil.NewStore()
	logs := store.EmailLogStore()
	orderID, otherID := uuid.New(), uuid.New()
	for _, el := range []*models.EmailLog{
		{OrderID: &orderID, EmailType: models.EmailTypeOrderConfirmation, RecipientEmail: "a@example.com", Status: models.EmailLogStatusFailed},
		{OrderID: &orderID, EmailType: models.EmailTypeOrderConfirmation, RecipientEmail: "a@example.com", Status: models.EmailLogStatusSent},
		{OrderID: &otherID, EmailType: models.EmailTypeOrderConfirmation, RecipientEmail: "b@example.com", Status: models.EmailLogStatusSent},
	} {
		require.NoError(t, logs.Create(context.Background(), el))
	}

	r := gin.New()
	r.GET("/admin/orders/:id/emails", notifications.NewHandler(logs, nil).ListByOrder)
	get := func(id string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/orders/"+id+"/emails", nil))
		return w
	}

	w := get(orderID.String())
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data struct {
			Emails []models.EmailLog `json:"emails"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data.Emails, 2)
	assert.Equal(t, models.EmailLogStatusSent, body.Data.Emails[0].Status)
	assert.Equal(t, models.EmailLogStatusFailed, body.Data.Emails[1].Status)

	w = get(uuid.NewString())
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"emails":[]}}`, w.Body.String())

	assert.Equal(t, http.StatusBadRequest, get("nope").Code)
}
