package worker

import (
	"context"
	"fmt"

	"crm-service/internal/broker"
	"crm-service/internal/models"
	"crm-service/internal/util"

	"go.uber.org/zap"
)

// AuditStore is the persistence surface the audit worker needs.
type AuditStore interface {
	InsertAuditLog(ctx context.Context, entry *models.AuditLog) error
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// AuditWorker turns the domain event stream into audit_log rows. Consumption
// is idempotent: each event id is recorded in processed_events and replayed
// deliveries are skipped.
type AuditWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        AuditStore
	logger       *zap.Logger
}

// NewAuditWorker creates a new audit worker
func NewAuditWorker(consumer *broker.Consumer, store AuditStore) *AuditWorker {
	w := &AuditWorker{
		consumer: consumer,
		store:    store,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderCreated(w.handleOrderCreated)
	eventHandler.OnOrderUpdated(w.handleOrderUpdated)
	eventHandler.OnPaymentRecorded(w.handlePaymentRecorded)
	eventHandler.OnPaymentUpdated(w.handlePaymentUpdated)
	eventHandler.OnPaymentDeleted(w.handlePaymentDeleted)
	eventHandler.OnPaymentStatusChanged(w.handlePaymentStatusChanged)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *AuditWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting audit worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *AuditWorker) Stop() error {
	w.logger.Info("Stopping audit worker")
	return w.consumer.Close()
}

// record writes one audit row unless the event was already processed.
func (w *AuditWorker) record(ctx context.Context, base models.BaseEvent, entity string, entityID int64, action, detail string) error {
	processed, err := w.store.IsEventProcessed(ctx, base.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		w.logger.Debug("Event already processed", zap.String("event_id", base.EventID))
		return nil
	}

	entry := &models.AuditLog{
		Entity:   entity,
		EntityID: entityID,
		Action:   action,
		Actor:    base.PerformedBy,
		Detail:   detail,
	}
	if err := w.store.InsertAuditLog(ctx, entry); err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	util.AuditEntriesTotal.Inc()

	if err := w.store.MarkEventProcessed(ctx, base.EventID, base.EventType); err != nil {
		w.logger.Error("Failed to mark event processed",
			zap.String("event_id", base.EventID), zap.Error(err))
	}
	return nil
}

func (w *AuditWorker) handleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	detail := fmt.Sprintf("order #%d for customer %d, grand total %s %s, %d items",
		event.OrderNumber, event.CustomerID, event.GrandTotal, event.Currency, len(event.Items))
	return w.record(ctx, event.BaseEvent, "order", event.OrderID, "created", detail)
}

func (w *AuditWorker) handleOrderUpdated(ctx context.Context, event *models.OrderUpdatedEvent) error {
	detail := fmt.Sprintf("grand total %s, %d items changed", event.GrandTotal, event.ItemsChanged)
	return w.record(ctx, event.BaseEvent, "order", event.OrderID, "updated", detail)
}

func (w *AuditWorker) handlePaymentRecorded(ctx context.Context, event *models.PaymentRecordedEvent) error {
	detail := fmt.Sprintf("amount %s against order %d", event.Amount, event.OrderID)
	return w.record(ctx, event.BaseEvent, "payment", event.PaymentID, "recorded", detail)
}

func (w *AuditWorker) handlePaymentUpdated(ctx context.Context, event *models.PaymentUpdatedEvent) error {
	detail := fmt.Sprintf("amount %s against order %d", event.Amount, event.OrderID)
	return w.record(ctx, event.BaseEvent, "payment", event.PaymentID, "updated", detail)
}

func (w *AuditWorker) handlePaymentDeleted(ctx context.Context, event *models.PaymentDeletedEvent) error {
	detail := fmt.Sprintf("removed from order %d", event.OrderID)
	return w.record(ctx, event.BaseEvent, "payment", event.PaymentID, "deleted", detail)
}

func (w *AuditWorker) handlePaymentStatusChanged(ctx context.Context, event *models.PaymentStatusChangedEvent) error {
	detail := fmt.Sprintf("payment status %s -> %s", event.OldStatus, event.NewStatus)
	return w.record(ctx, event.BaseEvent, "order", event.OrderID, "payment_status_changed", detail)
}
