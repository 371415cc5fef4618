package demod

import "math"

// processFM runs a quadrature discriminator followed by optional
// de-emphasis.
//
// The instantaneous frequency is the phase step between consecutive
// samples, recovered as arg(conj(prev) * cur). discGain scales
// +/-deviation to +/-1.0 full scale.
func (d *Demodulator) processFM(block []complex128) []float64 {
	out := make([]float64, len(block))

	prev := d.prev
	for i, cur := range block {
		out[i] = discriminate(prev, cur) * d.discGain
		prev = cur
	}
	d.prev = prev

	if d.useDeemph {
		// Single-pole low-pass, the broadcast de-emphasis network.
		y := d.deemph
		a := d.deemphA
		for i, x := range out {
			y += a * (x - y)
			out[i] = y
		}
		d.deemph = y
	}

	return out
}

func discriminate(prev, cur complex128) float64 {
	p := prev
	c := cur

	re := real(p)*real(c) + imag(p)*imag(c)
	im := real(p)*imag(c) - imag(p)*real(c)

	return math.Atan2(im, re)
}
