package demod

import "math"

// processAM runs envelope detection followed by a DC block.
//
// The envelope of a complex baseband AM signal is plain magnitude; the
// one-pole tracker removes the carrier's DC component so only the message
// remains.
func (d *Demodulator) processAM(block []complex128) []float64 {
	out := make([]float64, len(block))

	dc := d.dcTracker
	a := d.dcAlpha
	for i, v := range block {
		env := math.Hypot(real(v), imag(v))
		dc += a * (env - dc)
		out[i] = env - dc
	}
	d.dcTracker = dc

	return out
}
