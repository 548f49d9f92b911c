package statx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeanStdDevEmpty(t *testing.T) {
	mean, stddev := MeanStdDev(nil)
	assert.Zero(t, mean)
	assert.Zero(t, stddev)
}

func TestDispersionZeroMean(t *testing.T) {
	assert.Zero(t, Dispersion([]float64{0, 0, 0}))
}

func TestDispersionKnownValues(t *testing.T) {
	// deltas {1000,1000,1000,1000} concentrated 4-0-0-0 across 4 pCPUs
	current := []float64{4000, 0, 0, 0}
	assert.InDelta(t, 1.732, Dispersion(current), 0.01)

	predicted := []float64{1000, 1000, 1000, 1000}
	assert.Zero(t, Dispersion(predicted))
}
