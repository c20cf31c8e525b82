// Package metrics implements the combine rules used to aggregate
// per-instance named metrics into one value per (stressor, metric id),
// and the derived bogo-op rate (spec §4.H).
package metrics

import (
	"golang.org/x/exp/constraints"

	"github.com/stressgo/stressgo/internal/arena"
)

// Combine applies rule across values, skipping nothing for SUM/MIN/MAX,
// but skipping zeros for HARMONIC_MEAN per spec §4.H.
func Combine(rule arena.Combine, values []float64) float64 {
	switch rule {
	case arena.CombineSum:
		return sum(values)
	case arena.CombineArithmeticMean:
		if len(values) == 0 {
			return 0
		}
		return sum(values) / float64(len(values))
	case arena.CombineHarmonicMean:
		return harmonicMean(values)
	case arena.CombineMin:
		return minOf(values)
	case arena.CombineMax:
		return maxOf(values)
	default:
		return sum(values)
	}
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

func harmonicMean(values []float64) float64 {
	var reciprocalSum float64
	var n int
	for _, v := range values {
		if v == 0 {
			continue
		}
		reciprocalSum += 1 / v
		n++
	}
	if n == 0 || reciprocalSum == 0 {
		return 0
	}
	return float64(n) / reciprocalSum
}

// minOf/maxOf are generic over constraints.Ordered, the same generic
// numeric bound catrate's ring buffer uses, even though this package only
// instantiates them at float64; it keeps the reduction reusable if a
// future combine rule needs it over another ordered type.
func minOf[T constraints.Ordered](values []T) T {
	var zero T
	if len(values) == 0 {
		return zero
	}
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf[T constraints.Ordered](values []T) T {
	var zero T
	if len(values) == 0 {
		return zero
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// Rate computes the derived bogo-op rate: bogoSum / elapsedSeconds. Always
// computed per spec §4.H, returning 0 for a non-positive elapsed time
// rather than dividing by zero.
func Rate(bogoSum uint64, elapsedSeconds float64) float64 {
	if elapsedSeconds <= 0 {
		return 0
	}
	return float64(bogoSum) / elapsedSeconds
}
