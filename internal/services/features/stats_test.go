package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeanStdDev(t *testing.T) {
	m, sd := MeanStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5.0, m, 1e-9)
	assert.InDelta(t, 2.138, sd, 1e-3)

	m, sd = MeanStdDev([]float64{3})
	assert.Equal(t, 3.0, m)
	assert.Equal(t, 0.0, sd)

	m, sd = MeanStdDev(nil)
	assert.Equal(t, 0.0, m)
	assert.Equal(t, 0.0, sd)
}

func TestPopStdDev(t *testing.T) {
	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 2.0, PopStdDev(xs, Mean(xs)), 1e-9)
}

func TestPercentileDoesNotMutate(t *testing.T) {
	xs := []float64{5, 1, 4, 2, 3}
	assert.Equal(t, 3.0, Percentile(xs, 0.5))
	assert.Equal(t, 5.0, Percentile(xs, 1))
	assert.Equal(t, 1.0, Percentile(xs, 0))
	assert.Equal(t, []float64{5, 1, 4, 2, 3}, xs)
	assert.Equal(t, 0.0, Percentile(nil, 0.9))
}

func TestZScoreFloorsDeviation(t *testing.T) {
	z := ZScore(0.5, 0, 0, 20, 0.05)
	assert.InDelta(t, 0.5/(0.05/math.Sqrt(20)), z, 1e-9)
	assert.Equal(t, 0.0, ZScore(1, 0, 1, 0, 0.05))
}

func TestOutsideBand(t *testing.T) {
	assert.False(t, OutsideBand(0.3, 0, 0.1, 3))
	assert.True(t, OutsideBand(0.31, 0, 0.1, 3))
	assert.True(t, OutsideBand(-0.31, 0, 0.1, 3))
}
