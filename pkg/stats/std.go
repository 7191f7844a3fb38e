// Package stats has small statistics helpers for sample windows
package stats

import (
	"math"

	"golang.org/x/exp/constraints"
)

type Number interface {
	constraints.Float | constraints.Integer
}

// Returns (mean, variance) of the given samples. Both are zero for an empty slice.
func MeanVar[T Number](samples []T) (float64, float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	mean := Mean(samples)
	return mean, Variance(samples, mean)
}

func Mean[T Number](samples []T) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range samples {
		sum += float64(v)
	}
	return sum / float64(len(samples))
}

// Population variance around mean
func Variance[T Number](samples []T, mean float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range samples {
		diff := float64(v) - mean
		sum += diff * diff
	}
	return sum / float64(len(samples))
}

func StdDev[T Number](samples []T) float64 {
	_, v := MeanVar(samples)
	return math.Sqrt(v)
}
