package store

import (
	"context"
	"database/sql"
	"fmt"

	"crm-service/internal/models"
	"crm-service/internal/money"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// CreateOrderWithItems inserts an order plus its line items atomically. The
// order number comes from the order_number sequence default.
func (s *Store) CreateOrderWithItems(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	return s.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO orders (customer_id, status, payment_status, items_total, items_tax_total,
				discount_total, shipping, grand_total, currency, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id, order_number, created_at, updated_at`

		err := tx.GetContext(ctx, order, query,
			order.CustomerID, order.Status, order.PaymentStatus, order.ItemsTotal,
			order.ItemsTaxTotal, order.DiscountTotal, order.Shipping, order.GrandTotal,
			order.Currency, order.Notes)
		if err != nil {
			return translateErr(fmt.Errorf("failed to insert order: %w", err))
		}

		itemQuery := `
			INSERT INTO order_items (order_id, product_id, title, sku, unit_price, quantity,
				discount_percentage, tax_percentage, subtotal, discount_amount, tax_amount, total)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id`

		for i := range items {
			items[i].OrderID = order.ID
			item := &items[i]
			err := tx.GetContext(ctx, &item.ID, itemQuery,
				item.OrderID, item.ProductID, item.Title, item.SKU, item.UnitPrice,
				item.Quantity, item.DiscountPercentage, item.TaxPercentage,
				item.Subtotal, item.DiscountAmount, item.TaxAmount, item.Total)
			if err != nil {
				return translateErr(fmt.Errorf("failed to insert order item: %w", err))
			}
		}
		return nil
	})
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// GetOrdersByCustomerID retrieves orders for a customer
func (s *Store) GetOrdersByCustomerID(ctx context.Context, customerID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE customer_id = $1 ORDER BY created_at DESC", customerID)
	return orders, err
}

// UpdateOrderWithItems applies order-level field changes plus per-item updates
// in one transaction, then recomputes the order totals from the stored items
// and re-derives the payment status against the new grand total. Item updates
// are scoped to the owning order so an item id from another order is rejected.
func (s *Store) UpdateOrderWithItems(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	return s.WithTx(ctx, func(tx *sqlx.Tx) error {
		// Row lock serializes against concurrent payment reconciliation.
		var current models.Order
		err := tx.GetContext(ctx, &current,
			"SELECT * FROM orders WHERE id = $1 FOR UPDATE", order.ID)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: %d", ErrOrderNotFound, order.ID)
		}
		if err != nil {
			return err
		}

		itemQuery := `
			UPDATE order_items
			SET quantity = $1, unit_price = $2, discount_percentage = $3, tax_percentage = $4,
				subtotal = $5, discount_amount = $6, tax_amount = $7, total = $8
			WHERE id = $9 AND order_id = $10`

		for i := range items {
			item := &items[i]
			res, err := tx.ExecContext(ctx, itemQuery,
				item.Quantity, item.UnitPrice, item.DiscountPercentage, item.TaxPercentage,
				item.Subtotal, item.DiscountAmount, item.TaxAmount, item.Total,
				item.ID, order.ID)
			if err != nil {
				return fmt.Errorf("failed to update order item: %w", err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if affected == 0 {
				return &ItemNotFoundError{ID: item.ID}
			}
		}

		var totals struct {
			ItemsTotal    decimal.Decimal `db:"items_total"`
			DiscountTotal decimal.Decimal `db:"discount_total"`
			ItemsTaxTotal decimal.Decimal `db:"items_tax_total"`
		}
		err = tx.GetContext(ctx, &totals, `
			SELECT COALESCE(SUM(subtotal), 0) AS items_total,
				COALESCE(SUM(discount_amount), 0) AS discount_total,
				COALESCE(SUM(tax_amount), 0) AS items_tax_total
			FROM order_items WHERE order_id = $1`, order.ID)
		if err != nil {
			return fmt.Errorf("failed to recompute order totals: %w", err)
		}

		order.ItemsTotal = totals.ItemsTotal
		order.DiscountTotal = totals.DiscountTotal
		order.ItemsTaxTotal = totals.ItemsTaxTotal
		order.GrandTotal = money.GrandTotal(
			order.ItemsTotal, order.DiscountTotal, order.ItemsTaxTotal, order.Shipping)

		totalPaid, err := sumPaymentsTx(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		order.PaymentStatus = models.DerivePaymentStatus(totalPaid, order.GrandTotal)

		_, err = tx.ExecContext(ctx, `
			UPDATE orders
			SET status = $1, payment_status = $2, items_total = $3, items_tax_total = $4,
				discount_total = $5, shipping = $6, grand_total = $7, notes = $8,
				updated_at = NOW()
			WHERE id = $9`,
			order.Status, order.PaymentStatus, order.ItemsTotal, order.ItemsTaxTotal,
			order.DiscountTotal, order.Shipping, order.GrandTotal, order.Notes, order.ID)
		if err != nil {
			return fmt.Errorf("failed to update order: %w", err)
		}
		return nil
	})
}
