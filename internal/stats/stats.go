// Package stats provides the statistical primitives used by the baseline:
// population mean/standard deviation and the normal quantile function.
package stats

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// MeanStdDev returns the arithmetic mean and the population standard
// deviation (denominator n) of values. Returns (0, 0) for an empty slice.
func MeanStdDev(values []float64) (mean, stddev float64) {
	if len(values) == 0 {
		return 0, 0
	}

	mean, variance := stat.PopMeanVariance(values, nil)
	// Rounding can leave a tiny negative variance for constant input.
	if variance < 0 {
		variance = 0
	}

	return mean, math.Sqrt(variance)
}

// Quantile returns x such that P(X <= x) = p for X ~ Normal(mean, stddev).
//
// p = 0 yields -Inf and p = 1 yields +Inf. A zero stddev describes a point
// mass, so any p strictly between 0 and 1 yields the mean.
// p outside [0, 1] or NaN yields NaN.
func Quantile(p, mean, stddev float64) float64 {
	switch {
	case math.IsNaN(p) || p < 0 || p > 1:
		return math.NaN()
	case p == 0:
		return math.Inf(-1)
	case p == 1:
		return math.Inf(1)
	case stddev <= 0:
		return mean
	}

	return distuv.Normal{Mu: mean, Sigma: stddev}.Quantile(p)
}

// CDF returns P(X <= x) for X ~ Normal(mean, stddev). A zero stddev is
// treated as a point mass at mean.
func CDF(x, mean, stddev float64) float64 {
	if stddev <= 0 {
		if x < mean {
			return 0
		}

		return 1
	}

	return distuv.Normal{Mu: mean, Sigma: stddev}.CDF(x)
}

// PDF returns the normal probability density at x. Returns 0 when stddev is
// not positive.
func PDF(x, mean, stddev float64) float64 {
	if stddev <= 0 {
		return 0
	}

	return distuv.Normal{Mu: mean, Sigma: stddev}.Prob(x)
}

// MinMax returns the n smallest values in ascending order and the n largest
// values in ascending order. n is clamped to len(values).
func MinMax(values []float64, n int) (mins, maxs []float64) {
	if n <= 0 || len(values) == 0 {
		return nil, nil
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	n = min(n, len(sorted))

	return sorted[:n], sorted[len(sorted)-n:]
}
