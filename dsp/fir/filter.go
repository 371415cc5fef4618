// Package fir provides direct-form FIR filtering for complex baseband
// streams and windowed-sinc low-pass design for channel selection.
package fir

import (
	"errors"

	"github.com/radiowizard/radiowizard/dsp/core"
)

// Errors returned by filter construction and design.
var (
	ErrEmptyCoeffs        = errors.New("fir: empty coefficient slice")
	ErrInvalidCutoff      = errors.New("fir: cutoff must be in (0, 0.5)")
	ErrInvalidTapCount    = errors.New("fir: tap count must be > 0")
	ErrInvalidAttenuation = errors.New("fir: stopband attenuation must be > 0 dB")
)

// Filter implements a direct-form complex FIR filter using a circular-buffer
// delay line. Coefficients are real (symmetric low-pass), samples complex.
//
// The delay line persists across blocks so a stream can be filtered in
// arbitrary chunk sizes. Reset clears it after a discontinuity.
type Filter struct {
	coeffs []float64
	delay  []complex128
	pos    int
}

// New creates a FIR filter from the given coefficient slice.
// The coefficients are copied. The filter order is len(coeffs)-1.
func New(coeffs []float64) (*Filter, error) {
	if len(coeffs) == 0 {
		return nil, ErrEmptyCoeffs
	}

	c := make([]float64, len(coeffs))
	copy(c, coeffs)

	return &Filter{
		coeffs: c,
		delay:  make([]complex128, len(coeffs)),
	}, nil
}

// ProcessSample filters one input sample using direct convolution
// with a circular delay line.
//
//	y[n] = sum_{k=0}^{N-1} h[k] * x[n-k]
func (f *Filter) ProcessSample(x complex128) complex128 {
	f.delay[f.pos] = x

	var y complex128
	n := len(f.coeffs)
	p := f.pos

	for k := range n {
		y += complex(f.coeffs[k], 0) * f.delay[p]
		p--
		if p < 0 {
			p = n - 1
		}
	}

	f.pos++
	if f.pos >= n {
		f.pos = 0
	}

	return y
}

// ProcessBlock filters a block of samples in-place.
func (f *Filter) ProcessBlock(buf []complex128) {
	for i, x := range buf {
		buf[i] = f.ProcessSample(x)
	}
}

// ProcessDecimate filters src and keeps every factor-th output sample,
// appending results to dst. The full input still passes through the delay
// line, so the anti-alias response is identical to filter-then-downsample.
// Returns the extended dst slice.
func (f *Filter) ProcessDecimate(dst []complex128, src []complex128, factor int, phase *int) []complex128 {
	if factor <= 1 {
		for _, x := range src {
			dst = append(dst, f.ProcessSample(x))
		}
		return dst
	}

	p := *phase
	for _, x := range src {
		y := f.ProcessSample(x)
		if p == 0 {
			dst = append(dst, y)
		}
		p++
		if p >= factor {
			p = 0
		}
	}
	*phase = p

	return dst
}

// Reset clears the delay line to zero.
func (f *Filter) Reset() {
	core.ZeroComplex(f.delay)
	f.pos = 0
}

// Order returns the filter order (len(coeffs) - 1).
func (f *Filter) Order() int {
	return len(f.coeffs) - 1
}

// Coefficients returns a copy of the filter coefficients.
func (f *Filter) Coefficients() []float64 {
	c := make([]float64, len(f.coeffs))
	copy(c, f.coeffs)
	return c
}
