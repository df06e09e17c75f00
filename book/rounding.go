package book

import "github.com/shopspring/decimal"

// round applies the configured decimal precision to v using round-half-
// away-from-zero, which is decimal.Decimal.Round's behavior for a
// non-negative number of places. It is called immediately after every
// subtraction or min comparison in the matching state machine, per
// spec.md's numeric semantics rule, so that repeated fills never
// accumulate drift.
func round(v decimal.Decimal, places int32) decimal.Decimal {
	return v.Round(places)
}

// minDecimal returns the smaller of two decimal values.
func minDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
