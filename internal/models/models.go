package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Customer is a read-only collaborator record; customer CRUD lives outside this service.
type Customer struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Company   string    `db:"company" json:"company,omitempty"`
	Email     string    `db:"email" json:"email,omitempty"`
	Phone     string    `db:"phone" json:"phone,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Product supplies the title/sku/price snapshot taken at order time.
type Product struct {
	ID        int64           `db:"id" json:"id"`
	SKU       string          `db:"sku" json:"sku"`
	Title     string          `db:"title" json:"title"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Order carries denormalized totals maintained by the writer:
// grand_total = items_total - discount_total + items_tax_total + shipping.
type Order struct {
	ID            int64           `db:"id" json:"id"`
	OrderNumber   int64           `db:"order_number" json:"order_number"`
	CustomerID    int64           `db:"customer_id" json:"customer_id"`
	Status        OrderStatus     `db:"status" json:"status"`
	PaymentStatus PaymentStatus   `db:"payment_status" json:"payment_status"`
	ItemsTotal    decimal.Decimal `db:"items_total" json:"items_total"`
	ItemsTaxTotal decimal.Decimal `db:"items_tax_total" json:"items_tax_total"`
	DiscountTotal decimal.Decimal `db:"discount_total" json:"discount_total"`
	Shipping      decimal.Decimal `db:"shipping" json:"shipping"`
	GrandTotal    decimal.Decimal `db:"grand_total" json:"grand_total"`
	Currency      string          `db:"currency" json:"currency"`
	Notes         string          `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderItem is one product line, snapshotting title/sku/price at order time.
// total = subtotal - discount_amount + tax_amount, subtotal = unit_price * quantity.
type OrderItem struct {
	ID                 int64           `db:"id" json:"id"`
	OrderID            int64           `db:"order_id" json:"order_id"`
	ProductID          int64           `db:"product_id" json:"product_id"`
	Title              string          `db:"title" json:"title"`
	SKU                string          `db:"sku" json:"sku"`
	UnitPrice          decimal.Decimal `db:"unit_price" json:"unit_price"`
	Quantity           int             `db:"quantity" json:"quantity"`
	DiscountPercentage decimal.Decimal `db:"discount_percentage" json:"discount_percentage"`
	TaxPercentage      decimal.Decimal `db:"tax_percentage" json:"tax_percentage"`
	Subtotal           decimal.Decimal `db:"subtotal" json:"subtotal"`
	DiscountAmount     decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	TaxAmount          decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	Total              decimal.Decimal `db:"total" json:"total"`
}

// Payment is one money receipt against an order. Its order affiliation never changes.
type Payment struct {
	ID         int64           `db:"id" json:"id"`
	OrderID    int64           `db:"order_id" json:"order_id"`
	CustomerID int64           `db:"customer_id" json:"customer_id"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	Method     string          `db:"method" json:"method,omitempty"`
	Reference  string          `db:"reference" json:"reference,omitempty"`
	PaidAt     time.Time       `db:"paid_at" json:"paid_at"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// PaymentSummary is the derived view of an order's ledger.
type PaymentSummary struct {
	OrderID      int64           `db:"order_id" json:"order_id"`
	TotalPaid    decimal.Decimal `db:"total_paid" json:"total_paid"`
	GrandTotal   decimal.Decimal `db:"grand_total" json:"grand_total"`
	Balance      decimal.Decimal `db:"balance" json:"balance"`
	PaymentCount int             `db:"payment_count" json:"payment_count"`
}

// AuditLog records who did what, written by the audit worker from the event stream.
type AuditLog struct {
	ID        int64     `db:"id" json:"id"`
	Entity    string    `db:"entity" json:"entity"`
	EntityID  int64     `db:"entity_id" json:"entity_id"`
	Action    string    `db:"action" json:"action"`
	Actor     string    `db:"actor" json:"actor"`
	Detail    string    `db:"detail" json:"detail,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}

// OrderStatus is the order lifecycle state. Unknown values are rejected at the edge.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusReturned   OrderStatus = "returned"
)

// ParseOrderStatus validates a raw status string.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusReturned:
		return OrderStatus(s), nil
	}
	return "", fmt.Errorf("unknown order status: %q", s)
}

// PaymentStatus is the derived classification of an order against its ledger.
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPartial  PaymentStatus = "partial"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// ParsePaymentStatus validates a raw status string.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch PaymentStatus(s) {
	case PaymentStatusUnpaid, PaymentStatusPartial, PaymentStatusPaid, PaymentStatusRefunded:
		return PaymentStatus(s), nil
	}
	return "", fmt.Errorf("unknown payment status: %q", s)
}

// DerivePaymentStatus classifies an order from its cumulative payments.
// A negative net (refund rows exceeding receipts) maps to refunded.
func DerivePaymentStatus(totalPaid, grandTotal decimal.Decimal) PaymentStatus {
	switch {
	case totalPaid.IsNegative():
		return PaymentStatusRefunded
	case totalPaid.IsZero():
		return PaymentStatusUnpaid
	case totalPaid.GreaterThanOrEqual(grandTotal):
		return PaymentStatusPaid
	default:
		return PaymentStatusPartial
	}
}
