// Package statx wraps the mean/standard-deviation primitive spec.md treats
// as a library function, plus the dispersion (coefficient of variation)
// it's used to compute.
package statx

import "gonum.org/v1/gonum/stat"

// MeanStdDev returns the population mean and standard deviation of values.
// Returns (0, 0) for an empty slice.
func MeanStdDev(values []float64) (mean, stddev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	return stat.PopMeanStdDev(values, nil)
}

// Dispersion is the coefficient of variation (stddev/mean), 0 if mean is 0,
// per the GLOSSARY definition and spec.md §4.4 Phase C.
func Dispersion(values []float64) float64 {
	mean, stddev := MeanStdDev(values)
	if mean == 0 {
		return 0
	}
	return stddev / mean
}
