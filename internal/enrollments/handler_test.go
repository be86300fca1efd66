package enrollments_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/checkout/internal/enrollments"
	"github.com/coursehub/checkout/internal/middleware"
	"github.com/coursehub/checkout/internal/models"
	"github.com/coursehub/checkout/internal/testutil"
)

func setup(t *testing.T, userID uuid.UUID) (*gin.Engine, *models.Enrollment) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := testutil.NewStore()
	created, err := store.Enrollments().CreateIfAbsent(context.Background(), userID, []uuid.UUID{uuid.New(), uuid.New()})
	require.NoError(t, err)

	h := enrollments.NewHandler(store.Enrollments(), nil)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
		c.Next()
	})
	r.GET("/enrollments", h.List)
	r.PUT("/enrollments/:id/progress", h.UpdateProgress)
	return r, created[0]
}

func putProgress(r *gin.Engine, id string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPut, "/enrollments/"+id+"/progress", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUpdateProgress(t *testing.T) {
	r, e := setup(t, uuid.New())

	w := putProgress(r, e.ID.String(), `{"progress":40}`)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data models.Enrollment `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 40, body.Data.Progress)
	assert.Equal(t, models.EnrollmentStatusActive, body.Data.Status)

	w = putProgress(r, e.ID.String(), `{"progress":100}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, models.EnrollmentStatusCompleted, body.Data.Status)
	assert.NotNil(t, body.Data.CompletedAt)
}

func TestUpdateProgress_Rejections(t *testing.T) {
	r, e := setup(t, uuid.New())
	tests := []struct {
		name string
		id   string
		body string
		code int
	}{
		{"below zero", e.ID.String(), `{"progress":-1}`, http.StatusBadRequest},
		{"above hundred", e.ID.String(), `{"progress":101}`, http.StatusBadRequest},
		{"missing progress", e.ID.String(), `{}`, http.StatusBadRequest},
		{"bad id", "nope", `{"progress":10}`, http.StatusBadRequest},
		{"unknown enrollment", uuid.NewString(), `{"progress":10}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, putProgress(r, tt.id, tt.body).Code)
		})
	}
}

func TestUpdateProgress_OtherUsersEnrollment(t *testing.T) {
	_, e := setup(t, uuid.New())
	r, _ := setup(t, uuid.New())

	assert.Equal(t, http.StatusNotFound, putProgress(r, e.ID.String(), `{"progress":10}`).Code)
}

func TestList(t *testing.T) {
	r, e := setup(t, uuid.New())
	require.Equal(t, http.StatusOK, putProgress(r, e.ID.String(), `{"progress":100}`).Code)

	get := func(query string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/enrollments"+query, nil))
		return w
	}
	type listBody struct {
		Data struct {
			Enrollments []models.Enrollment `json:"enrollments"`
			Pagination  models.Pagination   `json:"pagination"`
		} `json:"data"`
	}

	w := get("")
	require.Equal(t, http.StatusOK, w.Code)
	var all listBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all.Data.Enrollments, 2)
	assert.Equal(t, 2, all.Data.Pagination.Total)

	w = get("?status=COMPLETED")
	require.Equal(t, http.StatusOK, w.Code)
	var done listBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &done))
	require.Len(t, done.Data.Enrollments, 1)
	assert.Equal(t, e.ID, done.Data.Enrollments[0].ID)

	assert.Equal(t, http.StatusBadRequest, get("?status=BOGUS").Code)
}
