package money

import "github.com/shopspring/decimal"

// Monetary arithmetic for order lines and totals. All amounts are rounded to
// 2 decimal places (half away from zero) at every derivation step so that
// stored values never carry more precision than the currency supports.

var hundred = decimal.NewFromInt(100)

// Round2 rounds an amount to 2 decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// DiscountAmount derives the discount from a base amount and a percentage.
func DiscountAmount(base, pct decimal.Decimal) decimal.Decimal {
	return Round2(base.Mul(pct).Div(hundred))
}

// TaxAmount derives the tax from an already-discounted base and a percentage.
func TaxAmount(discountedBase, pct decimal.Decimal) decimal.Decimal {
	return Round2(discountedBase.Mul(pct).Div(hundred))
}

// LineTotal combines a base amount with its derived discount and tax.
func LineTotal(base, discount, tax decimal.Decimal) decimal.Decimal {
	return Round2(base.Sub(discount).Add(tax))
}

// GrandTotal combines order-level totals with shipping.
func GrandTotal(itemsTotal, discountTotal, taxTotal, shipping decimal.Decimal) decimal.Decimal {
	return Round2(itemsTotal.Sub(discountTotal).Add(taxTotal).Add(shipping))
}
