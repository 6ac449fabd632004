// Package stats holds the robust statistics shared by the flagging rules.
package stats

import (
	"math"
	"sort"
)

// Median returns the median of values. Even-length input averages the two
// middle elements. ok is false for empty input.
func Median(values []float64) (median float64, ok bool) {
	n := len(values)
	if n == 0 {
		return 0, false
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2], true
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2, true
}

// MedianAndMAD returns the median of values and the median absolute
// deviation from it. ok is false for empty input.
func MedianAndMAD(values []float64) (median, mad float64, ok bool) {
	median, ok = Median(values)
	if !ok {
		return 0, 0, false
	}
	dev := make([]float64, len(values))
	for i, v := range values {
		dev[i] = math.Abs(v - median)
	}
	mad, _ = Median(dev)
	return median, mad, true
}

// Fraction returns num/den, or 0 when den is zero.
func Fraction(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
