// Package window generates FFT analysis windows and reports their spectral
// properties.
//
// The set of window types is the one the spectrum engine exposes to
// operators: rectangular for raw bin amplitude, Hann/Hamming for general
// observation, Blackman and 4-term Blackman-Harris for high dynamic range,
// and flat-top for amplitude-accurate carrier measurement.
package window

import "math"

// Type identifies a window function.
type Type int

const (
	TypeRectangular Type = iota
	TypeHann
	TypeHamming
	TypeBlackman
	TypeBlackmanHarris
	TypeFlatTop
)

// Metadata holds spectral properties of a window type.
//
// ENBW is the equivalent noise bandwidth in bins. ScallopLossDB is the
// worst-case amplitude error (dB) for a tone landing halfway between bins.
// CoherentGain is sum(w)/N, the DC response used for amplitude
// normalization.
type Metadata struct {
	Name            string
	ENBW            float64
	CoherentGain    float64
	ScallopLossDB   float64
	HighestSidelobe float64
}

// cosine-sum coefficients, w(x) = sum c[k]*cos(k*2*pi*x) over x in [0,1].
var (
	hannCoeffs           = []float64{0.5, -0.5}
	hammingCoeffs        = []float64{0.54, -0.46}
	blackmanCoeffs       = []float64{0.42, -0.5, 0.08}
	blackmanHarrisCoeffs = []float64{0.35875, -0.48829, 0.14128, -0.01168}
	flatTopCoeffs        = []float64{0.21557895, -0.41663158, 0.277263158, -0.083578947, 0.006947368}
)

var metadataByType = map[Type]Metadata{
	TypeRectangular:    {Name: "rectangular", ENBW: 1.0, CoherentGain: 1.0, ScallopLossDB: 3.92, HighestSidelobe: -13.3},
	TypeHann:           {Name: "hann", ENBW: 1.5, CoherentGain: 0.5, ScallopLossDB: 1.42, HighestSidelobe: -31.5},
	TypeHamming:        {Name: "hamming", ENBW: 1.3628, CoherentGain: 0.54, ScallopLossDB: 1.78, HighestSidelobe: -42.7},
	TypeBlackman:       {Name: "blackman", ENBW: 1.7268, CoherentGain: 0.42, ScallopLossDB: 1.10, HighestSidelobe: -58.1},
	TypeBlackmanHarris: {Name: "blackman-harris", ENBW: 2.0044, CoherentGain: 0.35875, ScallopLossDB: 0.83, HighestSidelobe: -92.0},
	TypeFlatTop:        {Name: "flat-top", ENBW: 3.7702, CoherentGain: 0.21557895, ScallopLossDB: 0.01, HighestSidelobe: -93.6},
}

// String returns the canonical lower-case name of the window type.
func (t Type) String() string {
	if m, ok := metadataByType[t]; ok {
		return m.Name
	}

	return "unknown"
}

// Parse resolves a window name (as used in configuration files) to its Type.
func Parse(name string) (Type, error) {
	for t, m := range metadataByType {
		if m.Name == name {
			return t, nil
		}
	}

	return TypeRectangular, errUnknownType(name)
}

// Info returns static metadata for a window type.
func Info(t Type) Metadata {
	if m, ok := metadataByType[t]; ok {
		return m
	}

	return Metadata{}
}

// Generate returns periodic window coefficients of the given length.
//
// The periodic (DFT-even) form is used since the coefficients feed FFT
// framing, not filter design.
func Generate(t Type, length int) []float64 {
	if length <= 0 {
		return nil
	}

	out := make([]float64, length)
	for i := range out {
		x := float64(i) / float64(length)
		out[i] = eval(t, x)
	}

	return out
}

// ApplyComplex multiplies a complex block in-place by real coefficients.
// The lengths must match.
func ApplyComplex(buf []complex128, coeffs []float64) error {
	if len(buf) != len(coeffs) {
		return errMismatchedLength
	}

	for i := range buf {
		buf[i] *= complex(coeffs[i], 0)
	}

	return nil
}

// EquivalentNoiseBandwidth returns the ENBW in bins for concrete coefficients.
func EquivalentNoiseBandwidth(coeffs []float64) (float64, error) {
	if len(coeffs) == 0 {
		return 0, errEmptyCoeffs
	}

	sum := 0.0
	sumSquares := 0.0

	for _, c := range coeffs {
		sum += c
		sumSquares += c * c
	}

	if sum == 0 {
		return 0, errZeroCoherentGain
	}

	return float64(len(coeffs)) * sumSquares / (sum * sum), nil
}

// CoherentGain returns sum(coeffs)/N for concrete coefficients.
func CoherentGain(coeffs []float64) (float64, error) {
	if len(coeffs) == 0 {
		return 0, errEmptyCoeffs
	}

	sum := 0.0
	for _, c := range coeffs {
		sum += c
	}

	return sum / float64(len(coeffs)), nil
}

func eval(t Type, x float64) float64 {
	switch t {
	case TypeRectangular:
		return 1
	case TypeHann:
		return cosineSum(x, hannCoeffs)
	case TypeHamming:
		return cosineSum(x, hammingCoeffs)
	case TypeBlackman:
		return cosineSum(x, blackmanCoeffs)
	case TypeBlackmanHarris:
		return cosineSum(x, blackmanHarrisCoeffs)
	case TypeFlatTop:
		return cosineSum(x, flatTopCoeffs)
	default:
		return 1
	}
}

func cosineSum(x float64, coeffs []float64) float64 {
	phase := 2 * math.Pi * x

	sum := 0.0
	for k, c := range coeffs {
		sum += c * math.Cos(float64(k)*phase)
	}

	return sum
}
