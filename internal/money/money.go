// Package money holds the rounding and formatting rules used for every euro amount.
package money

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round2 rounds to cents, half away from zero.
func Round2(v float64) float64 {
	return Round(v, 2)
}

func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// Fixed formats v with exactly places decimals ("1234.50").
func Fixed(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

// Sanitize maps NaN, infinities and negatives to 0.
func Sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// Sum adds values using decimal arithmetic.
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total.InexactFloat64()
}
