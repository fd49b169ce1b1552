package formulas

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WeightedMean calculates the weighted arithmetic mean of a slice of float64
// values. Weights do not need to be normalized. Returns NaN for empty input
// or mismatched lengths. A weight vector summing to zero (ln(1) for a single
// observation with shift 1) carries no preference and reduces to the plain
// mean rather than dividing by zero.
func WeightedMean(data, weights []float64) float64 {
	if len(data) == 0 || len(data) != len(weights) {
		return math.NaN()
	}
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum == 0 {
		return stat.Mean(data, nil)
	}
	return stat.Mean(data, weights)
}

// LogWeights returns logarithmic weights ln(i + shift) for i in [0, n).
// Later indices receive larger weights, so when applied to a chronological
// series the most recent observations dominate.
func LogWeights(n int, shift float64) []float64 {
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = math.Log(float64(i) + shift)
	}
	return weights
}

// Median calculates the median of a slice of float64 values, averaging the
// two middle elements for even-length input. Returns NaN for empty input.
func Median(data []float64) float64 {
	n := len(data)
	if n == 0 {
		return math.NaN()
	}
	sorted := make([]float64, n)
	copy(sorted, data)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Quantile calculates the p-quantile of a slice of float64 values using
// linear interpolation between order statistics. Returns NaN for empty
// input or p outside [0, 1].
func Quantile(data []float64, p float64) float64 {
	n := len(data)
	if n == 0 || p < 0 || p > 1 {
		return math.NaN()
	}
	sorted := make([]float64, n)
	copy(sorted, data)
	sort.Float64s(sorted)
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	return sorted[lo] + (h-math.Floor(h))*(sorted[lo+1]-sorted[lo])
}

// FractionalChange converts a chronological series to period-over-period
// fractional changes: out[i] = (v[i] - v[i-1]) / v[i-1]. The first element
// has no predecessor and is NaN, as is any element whose numerator is NaN
// or whose denominator is NaN or zero.
func FractionalChange(values []float64) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		prev := values[i-1]
		if math.IsNaN(values[i]) || math.IsNaN(prev) || prev == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = (values[i] - prev) / prev
	}
	return out
}

// Round rounds a value to the given number of decimal places.
func Round(value float64, places int) float64 {
	if math.IsNaN(value) {
		return value
	}
	factor := math.Pow(10, float64(places))
	return math.Round(value*factor) / factor
}
