// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package evaluation

import (
	"math"
	"slices"
)

// Stats summarizes a sample.
type Stats struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	P25   float64 `json:"25%"`
	P50   float64 `json:"50%"`
	P75   float64 `json:"75%"`
	Max   float64 `json:"max"`
}

// Describe returns the count, mean, sample standard deviation, extremes and
// quartiles of values. NaN values are dropped. Quartiles interpolate linearly
// between the closest ranks. Fields that are undefined for the remaining sample
// (every field of an empty sample, Std of a single value) are zero.
func Describe(values []float64) Stats {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return Stats{}
	}
	slices.Sort(clean)

	n := float64(len(clean))
	var sum float64
	for _, v := range clean {
		sum += v
	}
	mean := sum / n

	var std float64
	if len(clean) > 1 {
		var sq float64
		for _, v := range clean {
			sq += (v - mean) * (v - mean)
		}
		std = math.Sqrt(sq / (n - 1))
	}

	return Stats{
		Count: len(clean),
		Mean:  mean,
		Std:   std,
		Min:   clean[0],
		P25:   quantile(clean, 0.25),
		P50:   quantile(clean, 0.50),
		P75:   quantile(clean, 0.75),
		Max:   clean[len(clean)-1],
	}
}

// quantile returns the q-quantile of the sorted values.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	frac := pos - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*frac
}
