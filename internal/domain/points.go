package domain

import (
	"github.com/shopspring/decimal"
)

// PointScale is the display precision of reward points.
// All stored values round to two decimal places to keep repeated
// aggregations stable.
const PointScale = 2

// RoundPoints normalizes a point value to the ledger precision.
func RoundPoints(d decimal.Decimal) decimal.Decimal {
	return d.Round(PointScale)
}

// ClampPoints floors negative balances to zero. A merchant that has been
// over-debited never offsets another merchant's positive balance.
func ClampPoints(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ParsePoints parses a decimal string point value, e.g. a cached snapshot.
func ParsePoints(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// FormatPoints renders a point value with fixed two-decimal precision.
func FormatPoints(d decimal.Decimal) string {
	return d.StringFixed(PointScale)
}
