package safemath

import (
	"errors"
	"math/bits"
)

// ErrOverflow is returned whenever a checked operation cannot represent its
// result in the target width. Callers treat it as fatal for the whole
// operation.
var ErrOverflow = errors.New("arithmetic_overflow")

// AddU64 returns a+b or ErrOverflow.
func AddU64(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

// AddU32 returns a+b or ErrOverflow.
func AddU32(a, b uint32) (uint32, error) {
	sum := uint64(a) + uint64(b)
	if sum > uint64(^uint32(0)) {
		return 0, ErrOverflow
	}
	return uint32(sum), nil
}

// MulU64 returns a*b, computed with a 128-bit intermediate and narrowed back,
// or ErrOverflow when the product does not fit in 64 bits.
func MulU64(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}

// MulDivU64 returns floor(a*b/den) using a 128-bit intermediate product.
// ErrOverflow when den is zero or the quotient does not fit in 64 bits.
func MulDivU64(a, b, den uint64) (uint64, error) {
	if den == 0 {
		return 0, ErrOverflow
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= den {
		// bits.Div64 panics in this case, the quotient needs more than 64 bits.
		return 0, ErrOverflow
	}
	quo, _ := bits.Div64(hi, lo, den)
	return quo, nil
}

// SubU64 returns a-b or ErrOverflow when b > a.
func SubU64(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrOverflow
	}
	return diff, nil
}
