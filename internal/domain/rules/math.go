package rules

import "math"

// Clamp bounds n to [lo, hi].
func Clamp(n, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, n))
}

// Round rounds to the given number of decimals.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Round2 is the precision every environment reading is stored at.
func Round2(v float64) float64 {
	return Round(v, 2)
}
