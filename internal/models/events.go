package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderCreated         = "ORDER_CREATED"
	EventTypeOrderUpdated         = "ORDER_UPDATED"
	EventTypePaymentRecorded      = "PAYMENT_RECORDED"
	EventTypePaymentUpdated       = "PAYMENT_UPDATED"
	EventTypePaymentDeleted       = "PAYMENT_DELETED"
	EventTypePaymentStatusChanged = "PAYMENT_STATUS_CHANGED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	PerformedBy string    `json:"performed_by"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64           `json:"product_id"`
	SKU       string          `json:"sku"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
}

// OrderCreatedEvent published when an order and its items are persisted
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	OrderNumber int64           `json:"order_number"`
	CustomerID  int64           `json:"customer_id"`
	GrandTotal  decimal.Decimal `json:"grand_total"`
	Currency    string          `json:"currency"`
	Items       []OrderItemData `json:"items"`
}

// OrderUpdatedEvent published after an order/item patch lands
type OrderUpdatedEvent struct {
	BaseEvent
	OrderID      int64           `json:"order_id"`
	GrandTotal   decimal.Decimal `json:"grand_total"`
	ItemsChanged int             `json:"items_changed"`
}

// PaymentRecordedEvent published when a payment row is inserted
type PaymentRecordedEvent struct {
	BaseEvent
	PaymentID  int64           `json:"payment_id"`
	OrderID    int64           `json:"order_id"`
	CustomerID int64           `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// PaymentUpdatedEvent published when a payment row is amended
type PaymentUpdatedEvent struct {
	BaseEvent
	PaymentID int64           `json:"payment_id"`
	OrderID   int64           `json:"order_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// PaymentDeletedEvent published when a payment row is removed
type PaymentDeletedEvent struct {
	BaseEvent
	PaymentID int64 `json:"payment_id"`
	OrderID   int64 `json:"order_id"`
}

// PaymentStatusChangedEvent published when reconciliation moves the order's payment status
type PaymentStatusChangedEvent struct {
	BaseEvent
	OrderID   int64         `json:"order_id"`
	OldStatus PaymentStatus `json:"old_status"`
	NewStatus PaymentStatus `json:"new_status"`
}
