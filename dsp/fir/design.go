package fir

import "math"

// Lowpass designs a unity-DC-gain windowed-sinc low-pass filter.
//
// cutoff is the normalized cutoff frequency in cycles per sample, in
// (0, 0.5). taps is the filter length; beta the Kaiser window shape
// parameter (0 yields a rectangular window).
func Lowpass(cutoff float64, taps int, beta float64) ([]float64, error) {
	if cutoff <= 0 || cutoff >= 0.5 {
		return nil, ErrInvalidCutoff
	}

	if taps <= 0 {
		return nil, ErrInvalidTapCount
	}

	h := make([]float64, taps)
	center := 0.5 * float64(taps-1)

	for n := range taps {
		t := float64(n) - center
		h[n] = 2 * cutoff * sinc(2*cutoff*t) * kaiserAt(n, taps, beta)
	}

	// Normalize to unity gain at DC.
	var sum float64
	for _, v := range h {
		sum += v
	}

	if sum != 0 {
		inv := 1 / sum
		for i := range h {
			h[i] *= inv
		}
	}

	return h, nil
}

// KaiserOrder estimates the tap count needed for a given stopband
// attenuation (dB) and normalized transition width (cycles per sample),
// using Kaiser's empirical formula. The result is forced odd so the
// filter has a well-defined group delay of (N-1)/2 samples.
func KaiserOrder(attenDB, transition float64) (taps int, beta float64, err error) {
	if attenDB <= 0 {
		return 0, 0, ErrInvalidAttenuation
	}

	if transition <= 0 || transition >= 0.5 {
		return 0, 0, ErrInvalidCutoff
	}

	switch {
	case attenDB > 50:
		beta = 0.1102 * (attenDB - 8.7)
	case attenDB >= 21:
		beta = 0.5842*math.Pow(attenDB-21, 0.4) + 0.07886*(attenDB-21)
	default:
		beta = 0
	}

	n := int(math.Ceil((attenDB - 8) / (2.285 * 2 * math.Pi * transition)))
	if n < 3 {
		n = 3
	}

	if n%2 == 0 {
		n++
	}

	return n, beta, nil
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}

	px := math.Pi * x

	return math.Sin(px) / px
}

func kaiserAt(n, size int, beta float64) float64 {
	if beta <= 0 || size <= 1 {
		return 1
	}

	r := 2*float64(n)/float64(size-1) - 1
	term := math.Sqrt(math.Max(0, 1-r*r))

	return besselI0(beta*term) / besselI0(beta)
}

// besselI0 returns a numerical approximation of the modified Bessel function I0.
func besselI0(x float64) float64 {
	ax := math.Abs(x)
	if ax < 3.75 {
		y := x / 3.75
		y *= y

		return 1.0 + y*(3.5156229+y*(3.0899424+y*(1.2067492+y*(0.2659732+y*(0.0360768+y*0.0045813)))))
	}

	y := 3.75 / ax

	return (math.Exp(ax) / math.Sqrt(ax)) *
		(0.39894228 + y*(0.01328592+y*(0.00225319+y*(-0.00157565+y*(0.00916281+y*(-0.02057706+y*(0.02635537+y*(-0.01647633+y*0.00392377))))))))
}
