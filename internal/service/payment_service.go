package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crm-service/internal/models"
	"crm-service/internal/store"
	"crm-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentStore is the persistence surface the payment ledger depends on. The
// *Reconciling methods run the mutation and the status recompute in one
// transaction with the order row locked.
type PaymentStore interface {
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error)
	GetPaymentByID(ctx context.Context, id int64) (*models.Payment, error)
	GetPaymentsByOrderID(ctx context.Context, orderID int64) ([]models.Payment, error)
	GetOrderPaymentSummary(ctx context.Context, orderID int64) (*models.PaymentSummary, error)
	CreatePaymentReconciling(ctx context.Context, payment *models.Payment) (oldStatus, newStatus models.PaymentStatus, err error)
	UpdatePaymentReconciling(ctx context.Context, payment *models.Payment) (oldStatus, newStatus models.PaymentStatus, err error)
	DeletePaymentReconciling(ctx context.Context, paymentID, orderID int64) (oldStatus, newStatus models.PaymentStatus, err error)
}

// SummaryCache caches derived payment summaries. A nil summary with nil error
// means cache miss.
type SummaryCache interface {
	GetSummary(ctx context.Context, orderID int64) (*models.PaymentSummary, error)
	SetSummary(ctx context.Context, summary *models.PaymentSummary) error
	InvalidateSummary(ctx context.Context, orderID int64) error
}

// PaymentService records payments and keeps order payment status consistent
// with the ledger.
type PaymentService struct {
	store          PaymentStore
	cache          SummaryCache
	eventPublisher EventPublisher
	logger         *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(store PaymentStore, cache SummaryCache, eventPublisher EventPublisher) *PaymentService {
	return &PaymentService{
		store:          store,
		cache:          cache,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// RecordPaymentRequest represents a request to record a payment. Negative
// amounts are refund adjustments against the same ledger.
type RecordPaymentRequest struct {
	OrderID    int64           `json:"order_id" binding:"required"`
	CustomerID int64           `json:"customer_id" binding:"required"`
	Amount     decimal.Decimal `json:"amount" binding:"required"`
	Method     string          `json:"method"`
	Reference  string          `json:"reference"`
	PaidAt     *time.Time      `json:"paid_at"`
}

// UpdatePaymentRequest is a partial payment patch. The payment's order
// affiliation is immutable.
type UpdatePaymentRequest struct {
	Amount    *decimal.Decimal `json:"amount"`
	Method    *string          `json:"method"`
	Reference *string          `json:"reference"`
	PaidAt    *time.Time       `json:"paid_at"`
}

// IsEmpty reports whether the patch carries no changes.
func (r *UpdatePaymentRequest) IsEmpty() bool {
	return r.Amount == nil && r.Method == nil && r.Reference == nil && r.PaidAt == nil
}

// RecordPayment verifies the order and customer exist, then inserts the
// payment and re-derives the order's payment status in one transaction.
// No write happens when either existence check fails.
func (ps *PaymentService) RecordPayment(ctx context.Context, req *RecordPaymentRequest, performedBy string) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.RecordPayment")
	defer span.End()

	if _, err := ps.store.GetOrderByID(ctx, req.OrderID); err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			util.PaymentsFailedTotal.WithLabelValues("order_not_found").Inc()
			return nil, NotFound("Order", req.OrderID)
		}
		return nil, err
	}
	if _, err := ps.store.GetCustomerByID(ctx, req.CustomerID); err != nil {
		if errors.Is(err, store.ErrCustomerNotFound) {
			util.PaymentsFailedTotal.WithLabelValues("customer_not_found").Inc()
			return nil, NotFound("Customer", req.CustomerID)
		}
		return nil, err
	}

	paidAt := time.Now()
	if req.PaidAt != nil {
		paidAt = *req.PaidAt
	}

	payment := &models.Payment{
		OrderID:    req.OrderID,
		CustomerID: req.CustomerID,
		Amount:     req.Amount,
		Method:     req.Method,
		Reference:  req.Reference,
		PaidAt:     paidAt,
	}

	start := time.Now()
	oldStatus, newStatus, err := ps.store.CreatePaymentReconciling(ctx, payment)
	util.ReconciliationLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		util.PaymentsFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	util.PaymentsRecordedTotal.Inc()
	ps.logger.Info("Payment recorded",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("order_id", payment.OrderID),
		zap.String("amount", payment.Amount.String()),
		zap.String("payment_status", string(newStatus)))

	ps.afterLedgerChange(ctx, payment.OrderID, oldStatus, newStatus, performedBy)

	event := &models.PaymentRecordedEvent{
		BaseEvent:  newBaseEvent(models.EventTypePaymentRecorded, performedBy),
		PaymentID:  payment.ID,
		OrderID:    payment.OrderID,
		CustomerID: payment.CustomerID,
		Amount:     payment.Amount,
	}
	if err := ps.eventPublisher.PublishPaymentRecorded(ctx, event); err != nil {
		ps.logger.Error("Failed to publish PaymentRecorded event", zap.Error(err))
	}

	return payment, nil
}

// UpdatePayment amends a payment's amount or metadata and re-derives the
// order's payment status. An empty patch is rejected.
func (ps *PaymentService) UpdatePayment(ctx context.Context, paymentID int64, req *UpdatePaymentRequest, performedBy string) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.UpdatePayment")
	defer span.End()

	if req.IsEmpty() {
		return nil, Invalid(CodeInvalidUpdates, "", "update payload contains no payment fields")
	}

	payment, err := ps.store.GetPaymentByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, store.ErrPaymentNotFound) {
			return nil, NotFound("Payment", paymentID)
		}
		return nil, err
	}

	if req.Amount != nil {
		payment.Amount = *req.Amount
	}
	if req.Method != nil {
		payment.Method = *req.Method
	}
	if req.Reference != nil {
		payment.Reference = *req.Reference
	}
	if req.PaidAt != nil {
		payment.PaidAt = *req.PaidAt
	}

	start := time.Now()
	oldStatus, newStatus, err := ps.store.UpdatePaymentReconciling(ctx, payment)
	util.ReconciliationLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, store.ErrPaymentNotFound) {
			return nil, NotFound("Payment", paymentID)
		}
		util.PaymentsFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}

	util.PaymentsUpdatedTotal.Inc()
	ps.logger.Info("Payment updated",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("order_id", payment.OrderID),
		zap.String("payment_status", string(newStatus)))

	ps.afterLedgerChange(ctx, payment.OrderID, oldStatus, newStatus, performedBy)

	event := &models.PaymentUpdatedEvent{
		BaseEvent: newBaseEvent(models.EventTypePaymentUpdated, performedBy),
		PaymentID: payment.ID,
		OrderID:   payment.OrderID,
		Amount:    payment.Amount,
	}
	if err := ps.eventPublisher.PublishPaymentUpdated(ctx, event); err != nil {
		ps.logger.Error("Failed to publish PaymentUpdated event", zap.Error(err))
	}

	return payment, nil
}

// DeletePayment removes a payment and re-derives the order's payment status
// from the remaining ledger.
func (ps *PaymentService) DeletePayment(ctx context.Context, paymentID int64, performedBy string) error {
	ctx, span := util.StartSpan(ctx, "PaymentService.DeletePayment")
	defer span.End()

	payment, err := ps.store.GetPaymentByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, store.ErrPaymentNotFound) {
			return NotFound("Payment", paymentID)
		}
		return err
	}

	start := time.Now()
	oldStatus, newStatus, err := ps.store.DeletePaymentReconciling(ctx, paymentID, payment.OrderID)
	util.ReconciliationLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, store.ErrPaymentNotFound) {
			return NotFound("Payment", paymentID)
		}
		util.PaymentsFailedTotal.WithLabelValues("db_error").Inc()
		return fmt.Errorf("failed to delete payment: %w", err)
	}

	util.PaymentsDeletedTotal.Inc()
	ps.logger.Info("Payment deleted",
		zap.Int64("payment_id", paymentID),
		zap.Int64("order_id", payment.OrderID),
		zap.String("payment_status", string(newStatus)))

	ps.afterLedgerChange(ctx, payment.OrderID, oldStatus, newStatus, performedBy)

	event := &models.PaymentDeletedEvent{
		BaseEvent: newBaseEvent(models.EventTypePaymentDeleted, performedBy),
		PaymentID: paymentID,
		OrderID:   payment.OrderID,
	}
	if err := ps.eventPublisher.PublishPaymentDeleted(ctx, event); err != nil {
		ps.logger.Error("Failed to publish PaymentDeleted event", zap.Error(err))
	}

	return nil
}

// ListOrderPayments returns the ledger rows for an order.
func (ps *PaymentService) ListOrderPayments(ctx context.Context, orderID int64) ([]models.Payment, error) {
	if _, err := ps.store.GetOrderByID(ctx, orderID); err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			return nil, NotFound("Order", orderID)
		}
		return nil, err
	}
	return ps.store.GetPaymentsByOrderID(ctx, orderID)
}

// OrderPaymentSummary returns the derived ledger view, served from cache when
// fresh. Reads never mutate.
func (ps *PaymentService) OrderPaymentSummary(ctx context.Context, orderID int64) (*models.PaymentSummary, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.OrderPaymentSummary")
	defer span.End()

	if ps.cache != nil {
		cached, err := ps.cache.GetSummary(ctx, orderID)
		if err != nil {
			ps.logger.Warn("Summary cache read failed", zap.Error(err))
		} else if cached != nil {
			util.SummaryCacheHits.Inc()
			return cached, nil
		}
	}
	util.SummaryCacheMisses.Inc()

	summary, err := ps.store.GetOrderPaymentSummary(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			return nil, NotFound("Order", orderID)
		}
		return nil, err
	}

	if ps.cache != nil {
		if err := ps.cache.SetSummary(ctx, summary); err != nil {
			ps.logger.Warn("Summary cache write failed", zap.Error(err))
		}
	}
	return summary, nil
}

// afterLedgerChange drops the cached summary and reports status movement.
func (ps *PaymentService) afterLedgerChange(ctx context.Context, orderID int64, oldStatus, newStatus models.PaymentStatus, performedBy string) {
	if ps.cache != nil {
		if err := ps.cache.InvalidateSummary(ctx, orderID); err != nil {
			ps.logger.Warn("Summary cache invalidation failed",
				zap.Int64("order_id", orderID), zap.Error(err))
		}
	}

	if oldStatus == newStatus {
		return
	}
	util.PaymentStatusTransitions.WithLabelValues(string(oldStatus), string(newStatus)).Inc()

	event := &models.PaymentStatusChangedEvent{
		BaseEvent: newBaseEvent(models.EventTypePaymentStatusChanged, performedBy),
		OrderID:   orderID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	}
	if err := ps.eventPublisher.PublishPaymentStatusChanged(ctx, event); err != nil {
		ps.logger.Error("Failed to publish PaymentStatusChanged event", zap.Error(err))
	}
}
