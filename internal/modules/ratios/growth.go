package ratios

import (
	"math"

	"github.com/aristath/stocktinker/pkg/formulas"
)

// WeightedGrowth computes a recency-weighted average of a growth-rate
// series. Missing values are dropped while preserving chronological
// order; the remaining n observations are weighted ln(i + shift) for
// i in [0, n), normalized to sum to 1, so recent growth dominates
// without reducing to a noisy last-value estimate.
//
// Returns NaN when the series has no non-missing observations.
func WeightedGrowth(series []float64, shift float64) float64 {
	obs := make([]float64, 0, len(series))
	for _, v := range series {
		if !math.IsNaN(v) {
			obs = append(obs, v)
		}
	}
	if len(obs) == 0 {
		return math.NaN()
	}

	return formulas.WeightedMean(obs, formulas.LogWeights(len(obs), shift))
}
