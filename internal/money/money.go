// Package money wraps github.com/shopspring/decimal for the engine's cash,
// commission, and PnL arithmetic, where float64 accumulation drift across a
// long equity curve is unacceptable. Bar/tick/book prices stay float64 per
// the data model; only the portfolio's running totals go through Decimal.
package money

import "github.com/shopspring/decimal"

// Decimal is an alias so callers don't need a second import for the common
// case.
type Decimal = decimal.Decimal

// Zero is the additive identity.
var Zero = decimal.Zero

// FromFloat converts a float64 price/quantity into a Decimal.
func FromFloat(f float64) Decimal {
	return decimal.NewFromFloat(f)
}
