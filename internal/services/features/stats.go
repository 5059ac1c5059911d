package features

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Mean returns the arithmetic mean, or 0 for an empty series.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// MeanStdDev returns the mean and the unbiased sample standard deviation.
// A series shorter than two points has zero spread.
func MeanStdDev(xs []float64) (float64, float64) {
	switch len(xs) {
	case 0:
		return 0, 0
	case 1:
		return xs[0], 0
	}
	m, sd := stat.MeanStdDev(xs, nil)
	if math.IsNaN(sd) {
		sd = 0
	}
	return m, sd
}

// PopStdDev returns the population standard deviation around mean.
func PopStdDev(xs []float64, mean float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum2 := 0.0
	for _, x := range xs {
		d := x - mean
		sum2 += d * d
	}
	return math.Sqrt(sum2 / float64(len(xs)))
}

// Percentile returns the empirical p-quantile (p in [0,1]) of xs. xs is not modified.
func Percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// ZScore measures how far the mean of a segment of n samples sits from baseline,
// in standard errors. sd is floored at minSD so a flat baseline still yields a finite score.
func ZScore(current, baseline, sd float64, n int, minSD float64) float64 {
	if n <= 0 {
		return 0
	}
	if sd < minSD {
		sd = minSD
	}
	if sd == 0 {
		return 0
	}
	return (current - baseline) / (sd / math.Sqrt(float64(n)))
}

// OutsideBand reports whether v lies outside mean ± k·sd.
func OutsideBand(v, mean, sd, k float64) bool {
	return v < mean-k*sd || v > mean+k*sd
}
