package core

import (
	"math"
	"math/cmplx"
)

const defaultEpsilon = 1e-12

// DBFloor is the lower bound applied to power values before log conversion.
// It guards against log10(0) on silent bins.
const DBFloor = -150.0

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

// NearlyEqual reports whether a and b are equal within eps.
func NearlyEqual(a, b, eps float64) bool {
	if eps <= 0 {
		eps = defaultEpsilon
	}

	diff := math.Abs(a - b)
	if diff <= eps {
		return true
	}

	largest := math.Max(math.Abs(a), math.Abs(b))
	if largest == 0 {
		return diff <= eps
	}

	return diff/largest <= eps
}

// LinearPowerToDB converts linear power to dB (10*log10 convention),
// clamped at [DBFloor] so silent bins stay finite.
func LinearPowerToDB(power float64) float64 {
	if power <= 0 {
		return DBFloor
	}

	db := 10 * math.Log10(power)
	if db < DBFloor {
		return DBFloor
	}

	return db
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// HasNonFinite reports whether buf contains a NaN or Inf value.
func HasNonFinite(buf []float64) bool {
	for _, v := range buf {
		if !IsFinite(v) {
			return true
		}
	}

	return false
}

// HasNonFiniteComplex reports whether buf contains a NaN or Inf component.
func HasNonFiniteComplex(buf []complex128) bool {
	for _, v := range buf {
		if cmplx.IsNaN(v) || cmplx.IsInf(v) {
			return true
		}
	}

	return false
}

// RMS returns the root-mean-square magnitude of a complex block.
func RMS(buf []complex128) float64 {
	if len(buf) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range buf {
		re := real(v)
		im := imag(v)
		sum += re*re + im*im
	}

	return math.Sqrt(sum / float64(len(buf)))
}

// RMSReal returns the root-mean-square of a real block.
func RMSReal(buf []float64) float64 {
	if len(buf) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range buf {
		sum += v * v
	}

	return math.Sqrt(sum / float64(len(buf)))
}
