package demod

import "math"

// processSSB runs a product detector: mix with the beat-frequency
// oscillator to move the wanted sideband into the audio band, then take the
// real part. The oscillator phase persists across blocks so chunk
// boundaries stay continuous.
func (d *Demodulator) processSSB(block []complex128) []float64 {
	out := make([]float64, len(block))

	phase := d.bfoPhase
	for i, v := range block {
		osc := complex(math.Cos(phase), math.Sin(phase))
		out[i] = real(v * osc)
		phase += d.bfoStep
	}
	d.bfoPhase = math.Mod(phase, 2*math.Pi)

	return out
}
