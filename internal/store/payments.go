package store

import (
	"context"
	"database/sql"
	"fmt"

	"crm-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// sumPaymentsTx sums the ledger for an order inside the caller's transaction.
// COALESCE turns an empty ledger into zero.
func sumPaymentsTx(ctx context.Context, tx *sqlx.Tx, orderID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := tx.GetContext(ctx, &total,
		"SELECT COALESCE(SUM(amount), 0) FROM payments WHERE order_id = $1", orderID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum payments: %w", err)
	}
	return total, nil
}

// lockOrderTx takes the order row lock that serializes concurrent payment
// writes against the same order, returning the current payment status and
// grand total.
func lockOrderTx(ctx context.Context, tx *sqlx.Tx, orderID int64) (models.PaymentStatus, decimal.Decimal, error) {
	var row struct {
		PaymentStatus models.PaymentStatus `db:"payment_status"`
		GrandTotal    decimal.Decimal      `db:"grand_total"`
	}
	err := tx.GetContext(ctx, &row,
		"SELECT payment_status, grand_total FROM orders WHERE id = $1 FOR UPDATE", orderID)
	if err == sql.ErrNoRows {
		return "", decimal.Zero, fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
	}
	if err != nil {
		return "", decimal.Zero, err
	}
	return row.PaymentStatus, row.GrandTotal, nil
}

// reconcileOrderTx recomputes the order's payment status from the ledger and
// writes it back. Must run after the mutation, inside the same transaction.
func reconcileOrderTx(ctx context.Context, tx *sqlx.Tx, orderID int64, grandTotal decimal.Decimal) (models.PaymentStatus, error) {
	totalPaid, err := sumPaymentsTx(ctx, tx, orderID)
	if err != nil {
		return "", err
	}

	status := models.DerivePaymentStatus(totalPaid, grandTotal)
	_, err = tx.ExecContext(ctx,
		"UPDATE orders SET payment_status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	if err != nil {
		return "", fmt.Errorf("failed to update order payment status: %w", err)
	}
	return status, nil
}

// CreatePaymentReconciling inserts a payment and synchronously re-derives the
// order's payment status in the same transaction. Returns the status before
// and after the insert.
func (s *Store) CreatePaymentReconciling(ctx context.Context, payment *models.Payment) (oldStatus, newStatus models.PaymentStatus, err error) {
	err = s.WithTx(ctx, func(tx *sqlx.Tx) error {
		old, grandTotal, err := lockOrderTx(ctx, tx, payment.OrderID)
		if err != nil {
			return err
		}
		oldStatus = old

		query := `
			INSERT INTO payments (order_id, customer_id, amount, method, reference, paid_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at, updated_at`

		err = tx.GetContext(ctx, payment, query,
			payment.OrderID, payment.CustomerID, payment.Amount,
			payment.Method, payment.Reference, payment.PaidAt)
		if err != nil {
			return translateErr(fmt.Errorf("failed to insert payment: %w", err))
		}

		newStatus, err = reconcileOrderTx(ctx, tx, payment.OrderID, grandTotal)
		return err
	})
	return oldStatus, newStatus, err
}

// UpdatePaymentReconciling amends a payment row (never its order affiliation)
// and re-derives the order's payment status in the same transaction.
func (s *Store) UpdatePaymentReconciling(ctx context.Context, payment *models.Payment) (oldStatus, newStatus models.PaymentStatus, err error) {
	err = s.WithTx(ctx, func(tx *sqlx.Tx) error {
		old, grandTotal, err := lockOrderTx(ctx, tx, payment.OrderID)
		if err != nil {
			return err
		}
		oldStatus = old

		res, err := tx.ExecContext(ctx, `
			UPDATE payments
			SET amount = $1, method = $2, reference = $3, paid_at = $4, updated_at = NOW()
			WHERE id = $5 AND order_id = $6`,
			payment.Amount, payment.Method, payment.Reference, payment.PaidAt,
			payment.ID, payment.OrderID)
		if err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("%w: %d", ErrPaymentNotFound, payment.ID)
		}

		newStatus, err = reconcileOrderTx(ctx, tx, payment.OrderID, grandTotal)
		return err
	})
	return oldStatus, newStatus, err
}

// DeletePaymentReconciling removes a payment row and re-derives the order's
// payment status from the remaining ledger. Status may fall back to partial
// or unpaid.
func (s *Store) DeletePaymentReconciling(ctx context.Context, paymentID, orderID int64) (oldStatus, newStatus models.PaymentStatus, err error) {
	err = s.WithTx(ctx, func(tx *sqlx.Tx) error {
		old, grandTotal, err := lockOrderTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		oldStatus = old

		res, err := tx.ExecContext(ctx, "DELETE FROM payments WHERE id = $1", paymentID)
		if err != nil {
			return fmt.Errorf("failed to delete payment: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("%w: %d", ErrPaymentNotFound, paymentID)
		}

		newStatus, err = reconcileOrderTx(ctx, tx, orderID, grandTotal)
		return err
	})
	return oldStatus, newStatus, err
}

// GetPaymentByID retrieves a payment by ID
func (s *Store) GetPaymentByID(ctx context.Context, id int64) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment, "SELECT * FROM payments WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrPaymentNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetPaymentsByOrderID retrieves the ledger rows for an order
func (s *Store) GetPaymentsByOrderID(ctx context.Context, orderID int64) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.SelectContext(ctx, &payments,
		"SELECT * FROM payments WHERE order_id = $1 ORDER BY paid_at, id", orderID)
	return payments, err
}

// GetOrderPaymentSummary returns the derived ledger view for an order.
// Pure read, no mutation.
func (s *Store) GetOrderPaymentSummary(ctx context.Context, orderID int64) (*models.PaymentSummary, error) {
	var summary models.PaymentSummary
	err := s.db.GetContext(ctx, &summary, `
		SELECT o.id AS order_id,
			o.grand_total AS grand_total,
			COALESCE(SUM(p.amount), 0) AS total_paid,
			COUNT(p.id) AS payment_count
		FROM orders o
		LEFT JOIN payments p ON p.order_id = o.id
		WHERE o.id = $1
		GROUP BY o.id, o.grand_total`, orderID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
	}
	if err != nil {
		return nil, err
	}
	summary.Balance = summary.GrandTotal.Sub(summary.TotalPaid)
	return &summary, nil
}
