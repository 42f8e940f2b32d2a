package service

import (
	"context"
	"testing"

	"crm-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedOrder creates an order with grand total 100.00 and returns its id.
func seedOrder(t *testing.T, f *fakeStore) int64 {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id()
	f.orders[id] = &models.Order{
		ID:            id,
		OrderNumber:   1000 + id,
		CustomerID:    3,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusUnpaid,
		GrandTotal:    dec("100.00"),
		Currency:      "USD",
	}
	return id
}

func newPaymentService(f *fakeStore) (*PaymentService, *fakeCache, *fakePublisher) {
	cache := newFakeCache()
	pub := &fakePublisher{}
	return NewPaymentService(f, cache, pub), cache, pub
}

func TestPaymentLifecycleDrivesStatus(t *testing.T) {
	f := newFakeStore()
	seedCustomerAndProducts(f)
	orderID := seedOrder(t, f)
	svc, _, pub := newPaymentService(f)
	ctx := context.Background()

	// 40 against 100 -> partial, balance 60.
	first, err := svc.RecordPayment(ctx, &RecordPaymentRequest{
		OrderID: orderID, CustomerID: 3, Amount: dec("40"),
	}, "alice")
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	order, err := f.GetOrderByID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPartial, order.PaymentStatus)

	summary, err := svc.OrderPaymentSummary(ctx, orderID)
	require.NoError(t, err)
	assert.True(t, summary.TotalPaid.Equal(dec("40")))
	assert.True(t, summary.Balance.Equal(dec("60")), "balance %s", summary.Balance)
	assert.Equal(t, 1, summary.PaymentCount)

	// Second 60 -> paid, balance 0.
	second, err := svc.RecordPayment(ctx, &RecordPaymentRequest{
		OrderID: orderID, CustomerID: 3, Amount: dec("60"),
	}, "alice")
	require.NoError(t, err)

	order, err = f.GetOrderByID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, order.PaymentStatus)

	summary, err = svc.OrderPaymentSummary(ctx, orderID)
	require.NoError(t, err)
	assert.True(t, summary.Balance.IsZero(), "balance %s", summary.Balance)

	// Deleting the 60 payment reverts to partial, balance 60.
	require.NoError(t, svc.DeletePayment(ctx, second.ID, "alice"))

	order, err = f.GetOrderByID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPartial, order.PaymentStatus)

	summary, err = svc.OrderPaymentSummary(ctx, orderID)
	require.NoError(t, err)
	assert.True(t, summary.Balance.Equal(dec("60")), "balance %s", summary.Balance)

	assert.True(t, pub.has(models.EventTypePaymentRecorded))
	assert.True(t, pub.has(models.EventTypePaymentDeleted))
	assert.True(t, pub.has(models.EventTypePaymentStatusChanged))
}

func TestRecordPaymentMissingOrderWritesNothing(t *testing.T) {
	f := newFakeStore()
	seedCustomerAndProducts(f)
	svc, _, _ := newPaymentService(f)

	_, err := svc.RecordPayment(context.Background(), &RecordPaymentRequest{
		OrderID: 404, CustomerID: 3, Amount: dec("40"),
	}, "")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Order", notFound.Resource)
	assert.Empty(t, f.payments)
}

func TestRecordPaymentMissingCustomer(t *testing.T) {
	f := newFakeStore()
	orderID := seedOrder(t, f)
	svc, _, _ := newPaymentService(f)

	_, err := svc.RecordPayment(context.Background(), &RecordPaymentRequest{
		OrderID: orderID, CustomerID: 42, Amount: dec("40"),
	}, "")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Customer", notFound.Resource)
	assert.Empty(t, f.payments)
}

func TestRecordPaymentRollbackLeavesLedgerUntouched(t *testing.T) {
	f := newFakeStore()
	seedCustomerAndProducts(f)
	orderID := seedOrder(t, f)
	svc, _, _ := newPaymentService(f)

	f.failStatusWrite = true
	_, err := svc.RecordPayment(context.Background(), &RecordPaymentRequest{
		OrderID: orderID, CustomerID: 3, Amount: dec("40"),
	}, "")
	require.Error(t, err)

	assert.Empty(t, f.payments)
	order, err := f.GetOrderByID(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusUnpaid, order.PaymentStatus)
}

func TestUpdatePaymentRejectsEmptyPatch(t *testing.T) {
	f := newFakeStore()
	svc, _, _ := newPaymentService(f)

	_, err := svc.UpdatePayment(context.Background(), 1, &UpdatePaymentRequest{}, "")
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, CodeInvalidUpdates, validation.Issues[0].Code)
}

func TestUpdatePaymentAmountReclassifies(t *testing.T) {
	f := newFakeStore()
	seedCustomerAndProducts(f)
	orderID := seedOrder(t, f)
	svc, _, _ := newPaymentService(f)
	ctx := context.Background()

	payment, err := svc.RecordPayment(ctx, &RecordPaymentRequest{
		OrderID: orderID, CustomerID: 3, Amount: dec("40"),
	}, "")
	require.NoError(t, err)

	amount := dec("100")
	updated, err := svc.UpdatePayment(ctx, payment.ID, &UpdatePaymentRequest{Amount: &amount}, "")
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(dec("100")))
	assert.Equal(t, orderID, updated.OrderID)

	order, err := f.GetOrderByID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, order.PaymentStatus)
}

func TestSummaryReadIsIdempotentAndCached(t *testing.T) {
	f := newFakeStore()
	seedCustomerAndProducts(f)
	orderID := seedOrder(t, f)
	svc, cache, _ := newPaymentService(f)
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, &RecordPaymentRequest{
		OrderID: orderID, CustomerID: 3, Amount: dec("40"),
	}, "")
	require.NoError(t, err)

	first, err := svc.OrderPaymentSummary(ctx, orderID)
	require.NoError(t, err)
	second, err := svc.OrderPaymentSummary(ctx, orderID)
	require.NoError(t, err)

	assert.Equal(t, first.OrderID, second.OrderID)
	assert.True(t, first.TotalPaid.Equal(second.TotalPaid))
	assert.True(t, first.Balance.Equal(second.Balance))
	assert.Equal(t, first.PaymentCount, second.PaymentCount)
	assert.Equal(t, 1, cache.sets, "second read should come from cache")
	assert.Equal(t, 1, cache.hits)
}

func TestSummaryCacheInvalidatedByLedgerChange(t *testing.T) {
	f := newFakeStore()
	seedCustomerAndProducts(f)
	orderID := seedOrder(t, f)
	svc, cache, _ := newPaymentService(f)
	ctx := context.Background()

	_, err := svc.OrderPaymentSummary(ctx, orderID)
	require.NoError(t, err)
	require.Equal(t, 1, cache.sets)

	_, err = svc.RecordPayment(ctx, &RecordPaymentRequest{
		OrderID: orderID, CustomerID: 3, Amount: dec("40"),
	}, "")
	require.NoError(t, err)

	summary, err := svc.OrderPaymentSummary(ctx, orderID)
	require.NoError(t, err)
	assert.True(t, summary.TotalPaid.Equal(dec("40")), "stale summary served: %s", summary.TotalPaid)
}

func TestListOrderPaymentsMissingOrder(t *testing.T) {
	f := newFakeStore()
	svc, _, _ := newPaymentService(f)

	_, err := svc.ListOrderPayments(context.Background(), 404)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestDeletePaymentMissing(t *testing.T) {
	f := newFakeStore()
	svc, _, _ := newPaymentService(f)

	err := svc.DeletePayment(context.Background(), 404, "")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}
