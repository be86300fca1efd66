package refunds_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/checkout/internal/gateway"
	"github.com/coursehub/checkout/internal/models"
	"github.com/coursehub/checkout/internal/refunds"
	"github.com/coursehub/checkout/internal/testutil"
)

type fixture struct {
	store *testutil.Store
	gw    *testutil.Gateway
	svc   *refunds.Service
	order *models.Order
	pay   *models.Payment
}

// newFixture returns a SUCCEEDED 4500.00 payment with a COMPLETED order.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewStore()
	course := store.AddCourse("A", "4500.00")
	order, pay := store.SeedCheckout(uuid.New(), "pay_1", course)

	ctx := context.Background()
	pay.Status = models.PaymentStatusSucceeded
	require.NoError(t, store.Payments().Update(ctx, pay))
	require.NoError(t, store.Orders().UpdateStatus(ctx, order.ID, models.OrderStatusCompleted))

	gw := &testutil.Gateway{}
	svc := refunds.NewService(store.Refunds(), store.Payments(), store.Orders(), store, gw, nil)
	return &fixture{store: store, gw: gw, svc: svc, order: order, pay: pay}
}

func (f *fixture) create(t *testing.T, amount string) *models.Refund {
	t.Helper()
	rf, err := f.svc.Create(context.Background(), refunds.CreateInput{
		PaymentID: f.pay.ID,
		Amount:    decimal.RequireFromString(amount),
		Reason:    "requested_by_customer",
	})
	require.NoError(t, err)
	return rf
}

func succeeded(rf *models.Refund) *gateway.Refund {
	return &gateway.Refund{ID: rf.RemoteID, Status: gateway.StatusSucceeded}
}

func TestCreate_Pending(t *testing.T) {
	f := newFixture(t)
	rf := f.create(t, "1000.00")

	assert.Equal(t, models.RefundStatusPending, rf.Status)
	assert.Nil(t, rf.ProcessedAt)
	require.Len(t, f.gw.RefundReqs, 1)
	req := f.gw.RefundReqs[0]
	assert.Equal(t, "pay_1", req.PaymentID)
	assert.Equal(t, "1000.00", req.Amount.Value)
	assert.NotEmpty(t, req.IdempotenceKey)
	assert.Equal(t, models.PaymentStatusSucceeded, f.store.Payment(f.pay.ID).Status)
}

func TestCreate_Rejections(t *testing.T) {
	t.Run("non-positive amount", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Create(context.Background(), refunds.CreateInput{PaymentID: f.pay.ID, Amount: decimal.Zero})
		assert.ErrorIs(t, err, models.ErrInvalidAmount)
	})

	t.Run("unknown payment", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Create(context.Background(), refunds.CreateInput{PaymentID: uuid.New(), Amount: decimal.NewFromInt(1)})
		assert.ErrorIs(t, err, models.ErrPaymentNotFound)
	})

	t.Run("payment not succeeded", func(t *testing.T) {
		store := testutil.NewStore()
		_, pay := store.SeedCheckout(uuid.New(), "pay_1", store.AddCourse("A", "100.00"))
		gw := &testutil.Gateway{}
		svc := refunds.NewService(store.Refunds(), store.Payments(), store.Orders(), store, gw, nil)

		_, err := svc.Create(context.Background(), refunds.CreateInput{PaymentID: pay.ID, Amount: decimal.NewFromInt(1)})
		assert.ErrorIs(t, err, models.ErrPaymentNotRefundable)
		assert.Empty(t, gw.RefundReqs)
	})

	t.Run("exceeds payment", func(t *testing.T) {
		f := newFixture(t)
		rf := f.create(t, "4000.00")
		_, err := f.svc.ApplyRemote(context.Background(), succeeded(rf))
		require.NoError(t, err)

		_, err = f.svc.Create(context.Background(), refunds.CreateInput{PaymentID: f.pay.ID, Amount: decimal.RequireFromString("500.01")})
		assert.ErrorIs(t, err, models.ErrRefundExceedsPayment)
		assert.Len(t, f.gw.RefundReqs, 1)
		assert.Equal(t, 1, f.store.RefundCount())
	})
}

func TestApplyRemote_PartialThenFull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.create(t, "1500.00")
	res, err := f.svc.ApplyRemote(ctx, succeeded(first))
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.False(t, res.FullyRefunded)
	assert.NotNil(t, res.Refund.ProcessedAt)
	assert.Equal(t, models.PaymentStatusSucceeded, f.store.Payment(f.pay.ID).Status)
	assert.Equal(t, models.OrderStatusCompleted, f.store.Order(f.order.ID).Status)

	second := f.create(t, "3000.00")
	res, err = f.svc.ApplyRemote(ctx, succeeded(second))
	require.NoError(t, err)
	assert.True(t, res.FullyRefunded)

	p := f.store.Payment(f.pay.ID)
	assert.Equal(t, models.PaymentStatusRefunded, p.Status)
	assert.NotNil(t, p.RefundedAt)
	assert.Equal(t, models.OrderStatusRefunded, f.store.Order(f.order.ID).Status)
}

func TestApplyRemote_Duplicate(t *testing.T) {
	f := newFixture(t)
	rf := f.create(t, "4500.00")

	res, err := f.svc.ApplyRemote(context.Background(), succeeded(rf))
	require.NoError(t, err)
	assert.True(t, res.Changed)
	processedAt := *res.Refund.ProcessedAt

	res, err = f.svc.ApplyRemote(context.Background(), succeeded(rf))
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.False(t, res.FullyRefunded)
	assert.Equal(t, processedAt, *res.Refund.ProcessedAt)
}

func TestApplyRemote_TerminalRefundIsFinal(t *testing.T) {
	f := newFixture(t)
	rf := f.create(t, "100.00")

	res, err := f.svc.ApplyRemote(context.Background(), &gateway.Refund{ID: rf.RemoteID, Status: gateway.StatusCanceled})
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusCancelled, res.Refund.Status)

	res, err = f.svc.ApplyRemote(context.Background(), succeeded(rf))
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, models.RefundStatusCancelled, res.Refund.Status)
}

func TestApplyRemote_UnknownRefund(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ApplyRemote(context.Background(), &gateway.Refund{ID: "rf_missing", Status: gateway.StatusSucceeded})
	assert.ErrorIs(t, err, models.ErrRefundNotFound)
}

func TestCreate_ImmediatelySucceeded(t *testing.T) {
	f := newFixture(t)
	f.gw.RefundStatus = gateway.StatusSucceeded

	rf := f.create(t, "4500.00")
	assert.Equal(t, models.RefundStatusSucceeded, rf.Status)
	assert.Equal(t, models.PaymentStatusRefunded, f.store.Payment(f.pay.ID).Status)
	assert.Equal(t, models.OrderStatusRefunded, f.store.Order(f.order.ID).Status)
}

func TestList(t *testing.T) {
	f := newFixture(t)
	first := f.create(t, "100.00")
	f.create(t, "200.00")
	_, err := f.svc.ApplyRemote(context.Background(), succeeded(first))
	require.NoError(t, err)

	list, p, err := f.svc.List(context.Background(), models.RefundFilter{Status: models.RefundStatusSucceeded}, 1, 20)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, 1, p.Total)

	pid := f.pay.ID
	_, p, err = f.svc.List(context.Background(), models.RefundFilter{PaymentID: &pid}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Total)
}
