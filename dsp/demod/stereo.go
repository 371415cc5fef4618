package demod

import (
	"fmt"
	"math"

	"github.com/radiowizard/radiowizard/dsp/core"
	"github.com/radiowizard/radiowizard/dsp/fir"
)

// FM broadcast multiplex constants. The composite carries mono (L+R)
// audio to 15 kHz, the pilot at 19 kHz, and the L-R difference channel
// as DSB around 38 kHz, so the composite extends to 53 kHz.
const (
	pilotHz          = 19000.0
	stereoAudioMaxHz = 15000.0
	minStereoRateHz  = 106000.0

	// pilotLockThreshold is the recovered pilot amplitude below which the
	// decoder folds back to mono. Broadcast pilots run at 8-10 percent of
	// the composite.
	pilotLockThreshold = 0.02
)

// stereoDecoder recovers L/R audio from a demodulated FM composite.
//
// A second-order PLL tracks the 19 kHz pilot; doubling the locked
// oscillator regenerates the 38 kHz subcarrier that demodulates L-R. The
// sum channel rides the real plane and the difference channel the
// imaginary plane of one complex low-pass, so a single filter aligns
// their group delay before the matrix.
type stereoDecoder struct {
	phase   float64 // pilot oscillator phase, radians
	freq    float64 // pilot oscillator frequency, radians per sample
	nominal float64
	g1      float64 // proportional loop gain
	g2      float64 // integral loop gain

	level      float64 // recovered pilot amplitude estimate
	levelAlpha float64

	matrix *fir.Filter

	deemphA float64
	deemphL float64
	deemphR float64
}

func newStereoDecoder(rate, deemphA float64) (*stereoDecoder, error) {
	// 200 Hz loop bandwidth, critically damped: wide enough to pull in
	// from a cold start within a few blocks, narrow enough to ignore
	// program audio.
	wn := 2 * math.Pi * 200 / rate

	// Transition from the audio band edge to the pilot keeps 19 kHz out
	// of the matrixed output.
	transition := (pilotHz - stereoAudioMaxHz) / rate
	taps, beta, err := fir.KaiserOrder(60, transition)
	if err != nil {
		return nil, fmt.Errorf("demod: stereo matrix filter: %w", err)
	}
	coeffs, err := fir.Lowpass(stereoAudioMaxHz/rate, taps, beta)
	if err != nil {
		return nil, fmt.Errorf("demod: stereo matrix filter: %w", err)
	}
	matrix, err := fir.New(coeffs)
	if err != nil {
		return nil, fmt.Errorf("demod: stereo matrix filter: %w", err)
	}

	nominal := 2 * math.Pi * pilotHz / rate

	return &stereoDecoder{
		freq:       nominal,
		nominal:    nominal,
		g1:         2 * 0.707 * wn,
		g2:         wn * wn,
		levelAlpha: 1 - math.Exp(-2*math.Pi*20/rate),
		matrix:     matrix,
		deemphA:    deemphA,
	}, nil
}

// process decodes one composite block into interleaved L/R samples.
func (sd *stereoDecoder) process(comp []float64) []float64 {
	out := make([]float64, 0, 2*len(comp))

	// Fold back to mono for the whole block when the pilot is absent, so
	// a noise-driven subcarrier never leaks into the difference channel.
	stereoOn := sd.level >= pilotLockThreshold

	for _, x := range comp {
		sin := math.Sin(sd.phase)
		cos := math.Cos(sd.phase)

		// Phase detector and loop filter. The integrator is clamped to a
		// 2 percent pull-in range around the nominal pilot frequency.
		pd := x * cos
		sd.freq = core.Clamp(sd.freq+sd.g2*pd, sd.nominal*0.98, sd.nominal*1.02)
		sd.phase += sd.freq + sd.g1*pd
		if sd.phase > 2*math.Pi {
			sd.phase -= 2 * math.Pi
		}

		// In-phase pilot correlation, averaged with a 20 Hz corner.
		sd.level += sd.levelAlpha * (2*x*sin - sd.level)

		// sin(2*phase) is the regenerated 38 kHz subcarrier; the factor 2
		// undoes the mixing loss so L-R comes out at full scale.
		diff := x * 2 * (2 * sin * cos)

		f := sd.matrix.ProcessSample(complex(x, diff))
		m := real(f)
		s := imag(f)
		if !stereoOn {
			s = 0
		}

		l := m + s
		r := m - s
		if sd.deemphA > 0 {
			sd.deemphL += sd.deemphA * (l - sd.deemphL)
			sd.deemphR += sd.deemphA * (r - sd.deemphR)
			l = sd.deemphL
			r = sd.deemphR
		}

		out = append(out, l, r)
	}

	return out
}

func (sd *stereoDecoder) reset() {
	sd.phase = 0
	sd.freq = sd.nominal
	sd.level = 0
	sd.matrix.Reset()
	sd.deemphL = 0
	sd.deemphR = 0
}

// processFMStereo recovers the composite with the discriminator and hands
// it to the stereo decoder. De-emphasis happens per channel after the
// matrix, not on the composite, so the pilot and subcarrier reach the
// decoder unattenuated.
func (d *Demodulator) processFMStereo(block []complex128) []float64 {
	comp := make([]float64, len(block))

	prev := d.prev
	for i, cur := range block {
		comp[i] = discriminate(prev, cur) * d.discGain
		prev = cur
	}
	d.prev = prev

	return d.stereo.process(comp)
}
