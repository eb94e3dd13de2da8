// package interp provides interpolation helpers.
package interp

import "golang.org/x/exp/constraints"

// L does linear interpolation:
//
//	L(a, b, c) = (1-c)*a + c*b
//
// The top form is used rather than a + c*(b-a) so that L(a, b, 1) is exactly
// b, which matters at segment joins.
func L[T constraints.Float](a, b, c T) T {
	return (1-c)*a + c*b
}

// Segment interpolates between a at x0 and b at x1 for x in [x0, x1].
func Segment[T constraints.Float](x, x0, x1, a, b T) T {
	return L(a, b, (x-x0)/(x1-x0))
}
