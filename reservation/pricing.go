package reservation

import "github.com/shopspring/decimal"

// =============================================================================
// PRICING - Linear day rate
// =============================================================================

// TotalPrice computes pricePerDay * days * quantity. Days are rounded up
// per Window.Days. Anything fancier (tiered rates, discounts) is out of
// scope for the engine.
func TotalPrice(pricePerDay decimal.Decimal, w Window, quantity int) decimal.Decimal {
	return pricePerDay.
		Mul(decimal.NewFromInt(int64(w.Days()))).
		Mul(decimal.NewFromInt(int64(quantity)))
}
