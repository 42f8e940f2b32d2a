package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDerivePaymentStatus(t *testing.T) {
	grand := decimal.NewFromInt(100)

	tests := []struct {
		name      string
		totalPaid string
		want      PaymentStatus
	}{
		{"no payments", "0", PaymentStatusUnpaid},
		{"partial", "40", PaymentStatusPartial},
		{"just under", "99.99", PaymentStatusPartial},
		{"exact", "100", PaymentStatusPaid},
		{"overpaid", "150", PaymentStatusPaid},
		{"net refund", "-10", PaymentStatusRefunded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paid, err := decimal.NewFromString(tt.totalPaid)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, DerivePaymentStatus(paid, grand))
		})
	}
}

func TestDerivePaymentStatusZeroTotalOrder(t *testing.T) {
	// An order with no priced items owes nothing; with no payments it is
	// still unpaid, not paid.
	assert.Equal(t, PaymentStatusUnpaid, DerivePaymentStatus(decimal.Zero, decimal.Zero))
	assert.Equal(t, PaymentStatusPaid, DerivePaymentStatus(decimal.NewFromInt(1), decimal.Zero))
}

func TestParseOrderStatus(t *testing.T) {
	status, err := ParseOrderStatus("shipped")
	assert.NoError(t, err)
	assert.Equal(t, OrderStatusShipped, status)

	_, err = ParseOrderStatus("SHIPPED")
	assert.Error(t, err)

	_, err = ParseOrderStatus("teleported")
	assert.Error(t, err)
}

func TestParsePaymentStatus(t *testing.T) {
	status, err := ParsePaymentStatus("partial")
	assert.NoError(t, err)
	assert.Equal(t, PaymentStatusPartial, status)

	_, err = ParsePaymentStatus("")
	assert.Error(t, err)
}
