package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"crm-service/internal/models"
	"crm-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func orderKey(orderID int64) string {
	return fmt.Sprintf("order-%d", orderID)
}

// PublishOrderCreated publishes OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishOrderUpdated publishes OrderUpdated event
func (ep *EventPublisher) PublishOrderUpdated(ctx context.Context, event *models.OrderUpdatedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishPaymentRecorded publishes PaymentRecorded event
func (ep *EventPublisher) PublishPaymentRecorded(ctx context.Context, event *models.PaymentRecordedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishPaymentUpdated publishes PaymentUpdated event
func (ep *EventPublisher) PublishPaymentUpdated(ctx context.Context, event *models.PaymentUpdatedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishPaymentDeleted publishes PaymentDeleted event
func (ep *EventPublisher) PublishPaymentDeleted(ctx context.Context, event *models.PaymentDeletedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishPaymentStatusChanged publishes PaymentStatusChanged event
func (ep *EventPublisher) PublishPaymentStatusChanged(ctx context.Context, event *models.PaymentStatusChangedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// EventHandler routes consumed messages to per-type callbacks
type EventHandler struct {
	logger *zap.Logger

	onOrderCreated         func(context.Context, *models.OrderCreatedEvent) error
	onOrderUpdated         func(context.Context, *models.OrderUpdatedEvent) error
	onPaymentRecorded      func(context.Context, *models.PaymentRecordedEvent) error
	onPaymentUpdated       func(context.Context, *models.PaymentUpdatedEvent) error
	onPaymentDeleted       func(context.Context, *models.PaymentDeletedEvent) error
	onPaymentStatusChanged func(context.Context, *models.PaymentStatusChangedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnOrderCreated registers a handler for OrderCreated events
func (eh *EventHandler) OnOrderCreated(handler func(context.Context, *models.OrderCreatedEvent) error) {
	eh.onOrderCreated = handler
}

// OnOrderUpdated registers a handler for OrderUpdated events
func (eh *EventHandler) OnOrderUpdated(handler func(context.Context, *models.OrderUpdatedEvent) error) {
	eh.onOrderUpdated = handler
}

// OnPaymentRecorded registers a handler for PaymentRecorded events
func (eh *EventHandler) OnPaymentRecorded(handler func(context.Context, *models.PaymentRecordedEvent) error) {
	eh.onPaymentRecorded = handler
}

// OnPaymentUpdated registers a handler for PaymentUpdated events
func (eh *EventHandler) OnPaymentUpdated(handler func(context.Context, *models.PaymentUpdatedEvent) error) {
	eh.onPaymentUpdated = handler
}

// OnPaymentDeleted registers a handler for PaymentDeleted events
func (eh *EventHandler) OnPaymentDeleted(handler func(context.Context, *models.PaymentDeletedEvent) error) {
	eh.onPaymentDeleted = handler
}

// OnPaymentStatusChanged registers a handler for PaymentStatusChanged events
func (eh *EventHandler) OnPaymentStatusChanged(handler func(context.Context, *models.PaymentStatusChangedEvent) error) {
	eh.onPaymentStatusChanged = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeOrderCreated:
		if eh.onOrderCreated != nil {
			var event models.OrderCreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderCreated event: %w", err)
			}
			return eh.onOrderCreated(ctx, &event)
		}

	case models.EventTypeOrderUpdated:
		if eh.onOrderUpdated != nil {
			var event models.OrderUpdatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderUpdated event: %w", err)
			}
			return eh.onOrderUpdated(ctx, &event)
		}

	case models.EventTypePaymentRecorded:
		if eh.onPaymentRecorded != nil {
			var event models.PaymentRecordedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PaymentRecorded event: %w", err)
			}
			return eh.onPaymentRecorded(ctx, &event)
		}

	case models.EventTypePaymentUpdated:
		if eh.onPaymentUpdated != nil {
			var event models.PaymentUpdatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PaymentUpdated event: %w", err)
			}
			return eh.onPaymentUpdated(ctx, &event)
		}

	case models.EventTypePaymentDeleted:
		if eh.onPaymentDeleted != nil {
			var event models.PaymentDeletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PaymentDeleted event: %w", err)
			}
			return eh.onPaymentDeleted(ctx, &event)
		}

	case models.EventTypePaymentStatusChanged:
		if eh.onPaymentStatusChanged != nil {
			var event models.PaymentStatusChangedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PaymentStatusChanged event: %w", err)
			}
			return eh.onPaymentStatusChanged(ctx, &event)
		}

	default:
		eh.logger.Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
