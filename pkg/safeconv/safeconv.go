// Package safeconv provides checked numeric conversions. The Must variants
// panic on overflow and are meant for conversions whose bounds are guaranteed
// by construction; the error-returning variants handle caller input.
package safeconv

import (
	"errors"
	"math"
)

// MaxUint32 is the maximum value for uint32 type.
const MaxUint32 = uint32(math.MaxUint32)

// int64Bound is 2^63, the first float64 that no longer fits an int64.
const int64Bound = float64(1 << 63)

// Conversion errors.
var (
	ErrNotFinite  = errors.New("value is NaN or infinite")
	ErrOutOfRange = errors.New("value out of int64 range")
)

// MustIntToUint32 converts int to uint32, panics on bounds violation.
// Use only when bounds violations are logically impossible.
func MustIntToUint32(v int) uint32 {
	if v < 0 || v > int(MaxUint32) {
		panic("safeconv: int to uint32 out of bounds")
	}

	return uint32(v)
}

// FloorDiv returns floor(v / step) as an int64. Non-finite inputs and
// quotients that do not fit an int64 are reported as errors.
func FloorDiv(v, step float64) (int64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || math.IsNaN(step) || math.IsInf(step, 0) {
		return 0, ErrNotFinite
	}

	q := math.Floor(v / step)
	if q < -int64Bound || q >= int64Bound {
		return 0, ErrOutOfRange
	}

	return int64(q), nil
}

// Int64ToFloat converts a quantized coordinate back to float64 scaled by step.
func Int64ToFloat(q int64, step float64) float64 {
	return float64(q) * step
}
