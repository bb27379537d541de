package core

import (
	"math"

	approx "github.com/meko-christian/algo-approx"
)

// dbvFloor is the level reported for silence; log of zero is undefined.
const dbvFloor = -160.0

// Clamp limits value to the inclusive range [min, max].
func Clamp(value, min, max float64) float64 {
	if min > max {
		min, max = max, min
	}

	if value < min {
		return min
	}

	if value > max {
		return max
	}

	return value
}

// Clamp32 is Clamp for float32 samples. NaN maps to zero so that a single
// corrupt device sample cannot poison filter state.
func Clamp32(value, min, max float32) float32 {
	if value != value {
		return 0
	}

	if value < min {
		return min
	}

	if value > max {
		return max
	}

	return value
}

// FlushDenormals converts tiny denormal-like values to exact zero.
func FlushDenormals(x float64) float64 {
	const epsilon = 1e-30
	if x > -epsilon && x < epsilon {
		return 0
	}

	return x
}

// SoftClip bounds x to [-1, 1] with a rational tanh approximation.
// Inputs beyond ±3 saturate at exactly ±1.
func SoftClip(x float64) float64 {
	if x < -3 {
		return -1
	}

	if x > 3 {
		return 1
	}

	x2 := x * x

	return x * (27 + x2) / (27 + 9*x2)
}

// DBV converts a linear amplitude to dB re 1.0 using a fast logarithm.
// Non-positive input returns a fixed floor instead of -Inf.
func DBV(linear float64) float64 {
	if linear <= 0 || math.IsNaN(linear) {
		return dbvFloor
	}

	db := 20 * approx.FastLog(linear) / math.Ln10
	if db < dbvFloor {
		return dbvFloor
	}

	return db
}
