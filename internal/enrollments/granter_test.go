package enrollments_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/checkout/internal/enrollments"
	"github.com/coursehub/checkout/internal/testutil"
)

func TestGrant(t *testing.T) {
	store := testutil.NewStore()
	g := enrollments.NewGranter(store.Enrollments(), nil)
	userID := uuid.New()
	a, b := uuid.New(), uuid.New()

	created, err := g.Grant(context.Background(), userID, []uuid.UUID{a, b, a})
	require.NoError(t, err)
	assert.Len(t, created, 2)

	created, err = g.Grant(context.Background(), userID, []uuid.UUID{a, b})
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.Len(t, store.EnrollmentsFor(userID), 2)
}

func TestGrant_Empty(t *testing.T) {
	store := testutil.NewStore()
	g := enrollments.NewGranter(store.Enrollments(), nil)

	created, err := g.Grant(context.Background(), uuid.New(), nil)
	require.NoError(t, err)
	assert.Nil(t, created)
}
