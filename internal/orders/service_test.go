package orders_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/checkout/internal/models"
	"github.com/coursehub/checkout/internal/orders"
	"github.com/coursehub/checkout/internal/testutil"
)

func newService(store *testutil.Store) *orders.Service {
	return orders.NewService(store.Orders(), store, store, "", nil)
}

func validInput(ids ...uuid.UUID) orders.CreateInput {
	return orders.CreateInput{CourseIDs: ids, CustomerName: " Anna ", CustomerEmail: "anna@example.com"}
}

func TestCreate(t *testing.T) {
	store := testutil.NewStore()
	a := store.AddCourse("A", "1500.00")
	b := store.AddCourse("B", "3000.00")
	svc := newService(store)
	userID := uuid.New()

	o, err := svc.Create(context.Background(), userID, validInput(a.ID, b.ID, a.ID))
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, o.Status)
	assert.Equal(t, orders.DefaultCurrency, o.Currency)
	assert.Equal(t, "Anna", o.CustomerName)
	assert.True(t, o.TotalAmount.Equal(decimal.RequireFromString("4500")))
	require.Len(t, o.Items, 2)
	assert.Equal(t, a.ID, o.Items[0].CourseID)
	assert.Equal(t, 1, o.Items[0].Quantity)
	assert.True(t, o.Items[1].Price.Equal(b.Price))

	stored := store.Order(o.ID)
	require.NotNil(t, stored)
	assert.True(t, stored.TotalAmount.Equal(stored.ItemsTotal()))
}

func TestCreate_Rejections(t *testing.T) {
	store := testutil.NewStore()
	active := store.AddCourse("A", "1500.00")
	inactive := store.AddInactiveCourse("Old", "900.00")
	free := store.AddCourse("Intro", "0.00")
	svc := newService(store)

	tests := []struct {
		name string
		in   orders.CreateInput
		want error
	}{
		{"no courses", validInput(), models.ErrValidation},
		{"only nil ids", validInput(uuid.Nil), models.ErrValidation},
		{"missing name", orders.CreateInput{CourseIDs: []uuid.UUID{active.ID}, CustomerEmail: "a@b.c"}, models.ErrValidation},
		{"missing email", orders.CreateInput{CourseIDs: []uuid.UUID{active.ID}, CustomerName: "Anna"}, models.ErrValidation},
		{"inactive course", validInput(active.ID, inactive.ID), models.ErrCoursesUnavailable},
		{"unknown course", validInput(uuid.New()), models.ErrCoursesUnavailable},
		{"zero total", validInput(free.ID), models.ErrInvalidTotal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), uuid.New(), tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGetAndList(t *testing.T) {
	store := testutil.NewStore()
	course := store.AddCourse("A", "100.00")
	svc := newService(store)
	userID := uuid.New()

	first, err := svc.Create(context.Background(), userID, validInput(course.ID))
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), userID, validInput(course.ID))
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), uuid.New(), validInput(course.ID))
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), userID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	_, err = svc.Get(context.Background(), uuid.New(), first.ID)
	assert.ErrorIs(t, err, models.ErrOrderNotFound)

	list, p, err := svc.List(context.Background(), userID, 1, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, 2, p.Total)
	assert.Equal(t, 2, p.Pages)
}
