package distribution

import (
	"gonum.org/v1/gonum/stat"
)

// WeightedMean returns the weighted average of values. Empty input or a zero
// total weight yields 0. Nil weights weight every value equally.
func WeightedMean(values, weights []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if weights != nil {
		var total float64
		for _, w := range weights {
			total += w
		}
		if total == 0 {
			return 0
		}
	}
	return stat.Mean(values, weights)
}
