// package flo provides small helpers for working with floating point samples
// and control values.
package flo

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Clamp limits x to [lo, hi]. NaN is passed through unchanged, callers that
// care should check with Finite first.
func Clamp[T constraints.Float](x, lo, hi T) T {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Wrap returns the fractional part of p, always in [0, 1), including for
// negative inputs.
func Wrap[T constraints.Float](p T) T {
	w := p - T(math.Floor(float64(p)))
	// p = -1e-20 gives exactly 1 after rounding.
	if w >= 1 {
		return 0
	}
	return w
}

// Finite reports whether x is neither NaN nor an infinity.
func Finite[T constraints.Float](x T) bool {
	f := float64(x)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
