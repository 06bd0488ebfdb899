// Package money pins the rounding rules used at billing boundaries.
//
// Interval-level arithmetic stays in float64; rounding happens only when a
// value crosses into a persisted bill detail or bill total.
package money

import "github.com/shopspring/decimal"

const (
	// AmountScale is the scale for charged amounts and bill totals.
	AmountScale = 2
	// UnitPriceScale is the scale for persisted unit prices.
	UnitPriceScale = 4
)

// RoundAmount rounds a currency amount half-up to two decimals.
func RoundAmount(v float64) float64 {
	out, _ := decimal.NewFromFloat(v).Round(AmountScale).Float64()
	return out
}

// RoundUnitPrice rounds a unit price half-up to four decimals.
func RoundUnitPrice(v float64) float64 {
	out, _ := decimal.NewFromFloat(v).Round(UnitPriceScale).Float64()
	return out
}

// Sum adds amounts in decimal space and rounds the result to two decimals.
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	out, _ := total.Round(AmountScale).Float64()
	return out
}

// Equal reports whether two amounts agree within the given tolerance.
func Equal(a, b, tolerance float64) bool {
	diff := decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Abs()
	return diff.Cmp(decimal.NewFromFloat(tolerance)) <= 0
}
