// Package currency provides integer minor-unit (cent) arithmetic for a
// single-currency ledger. Formatting a cent count into a display string is a
// presentation concern and deliberately lives elsewhere.
package currency

import "math"

// RoundToEven rounds a fractional cent amount to the nearest whole cent
// using banker's rounding (round half to even). The split calculator relies
// on this exact mode: round-half-up breaks the exact-sum guarantee on
// boundary values.
func RoundToEven(v float64) int64 {
	return int64(math.RoundToEven(v))
}

// Sum returns the total of a set of cent amounts.
func Sum(values map[string]int64) int64 {
	var total int64
	for _, v := range values {
		total += v
	}
	return total
}
