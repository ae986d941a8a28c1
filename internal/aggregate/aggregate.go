// Package aggregate combines quotes from several sources into one price.
package aggregate

import (
	"math"

	"github.com/montanaflynn/stats"
)

// Valid reports whether p is usable as a price.
func Valid(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}

// Filter keeps the valid prices of in, preserving order.
func Filter(in []float64) []float64 {
	out := make([]float64, 0, len(in))
	for _, p := range in {
		if Valid(p) {
			out = append(out, p)
		}
	}
	return out
}

// Median returns the median of the valid prices in quotes. Even-sized sets
// average the two middle values. ok is false when nothing is left.
func Median(quotes []float64) (median float64, ok bool) {
	in := Filter(quotes)
	if len(in) == 0 {
		return 0, false
	}
	m, err := stats.Median(in)
	if err != nil {
		return 0, false
	}
	return m, true
}
