// Package spectrum computes power spectral density frames from complex
// baseband blocks.
//
// Output values are in dBFS power: 10*log10(|X[k]|^2 / ref^2) with
// ref = N * coherentGain(window), so a unit-amplitude complex exponential
// centered on a bin reads 0 dBFS regardless of FFT size or window choice.
// Bins are fftshifted (DC in the center, negative frequencies left). This
// convention holds for the lifetime of a Processor; changing it requires a
// new configuration epoch.
package spectrum

import (
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"

	"github.com/radiowizard/radiowizard/dsp/core"
	"github.com/radiowizard/radiowizard/dsp/window"
)

// Config holds the spectral estimation parameters for one configuration epoch.
type Config struct {
	// FFTSize is the transform length N. Must be a power of two.
	FFTSize int

	// Window selects the analysis window applied before the transform.
	Window window.Type

	// AverageAlpha is the exponential averaging coefficient in [0, 1):
	//   avg[n] = alpha*avg[n-1] + (1-alpha)*new[n]
	// computed on linear power before dB conversion. 0 disables averaging.
	AverageAlpha float64

	// RemoveDCSpike subtracts the block's complex mean before windowing and
	// interpolates the DC bin, suppressing local-oscillator leakage.
	RemoveDCSpike bool
}

// Validate reports the first invalid field, if any.
func (c Config) Validate() error {
	if c.FFTSize <= 0 || c.FFTSize&(c.FFTSize-1) != 0 {
		return fmt.Errorf("spectrum: fft size must be a power of two: %d", c.FFTSize)
	}

	if c.AverageAlpha < 0 || c.AverageAlpha >= 1 {
		return fmt.Errorf("spectrum: average alpha must be in [0, 1): %g", c.AverageAlpha)
	}

	return nil
}

// Processor computes dBFS power spectra from sample blocks.
//
// A Processor is bound to one configuration epoch; reconfiguration means
// building a new Processor at a block boundary. Not safe for concurrent use.
type Processor struct {
	cfg    Config
	plan   *algofft.Plan[complex128]
	coeffs []float64

	// invRefSq = 1 / (N*coherentGain)^2, the 0 dBFS power reference.
	invRefSq float64

	input  []complex128
	re     []float64
	im     []float64
	power  []float64
	avg    []float64
	primed bool
}

// New creates a Processor for the given configuration.
func New(cfg Config) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	plan, err := algofft.NewPlan64(cfg.FFTSize)
	if err != nil {
		return nil, fmt.Errorf("spectrum: fft plan: %w", err)
	}

	coeffs := window.Generate(cfg.Window, cfg.FFTSize)

	cg, err := window.CoherentGain(coeffs)
	if err != nil {
		return nil, fmt.Errorf("spectrum: window gain: %w", err)
	}

	ref := float64(cfg.FFTSize) * cg

	return &Processor{
		cfg:      cfg,
		plan:     plan,
		coeffs:   coeffs,
		invRefSq: 1 / (ref * ref),
		input:    make([]complex128, cfg.FFTSize),
		re:       make([]float64, cfg.FFTSize),
		im:       make([]float64, cfg.FFTSize),
		power:    make([]float64, cfg.FFTSize),
		avg:      make([]float64, cfg.FFTSize),
	}, nil
}

// Config returns the configuration the Processor was built with.
func (p *Processor) Config() Config {
	return p.cfg
}

// Process computes one dBFS power spectrum from a sample block.
//
// Shorter blocks are zero-padded to the FFT size; longer blocks are
// truncated. The returned slice is freshly allocated (length N, fftshifted)
// and safe to hand off.
func (p *Processor) Process(samples []complex128) ([]float64, error) {
	n := p.cfg.FFTSize

	m := copy(p.input, samples)
	for i := m; i < n; i++ {
		p.input[i] = 0
	}

	if p.cfg.RemoveDCSpike && m > 0 {
		var mean complex128
		for _, v := range p.input[:m] {
			mean += v
		}
		mean /= complex(float64(m), 0)
		for i := range p.input[:m] {
			p.input[i] -= mean
		}
	}

	if err := window.ApplyComplex(p.input, p.coeffs); err != nil {
		return nil, fmt.Errorf("spectrum: window: %w", err)
	}

	if err := p.plan.Forward(p.input, p.input); err != nil {
		return nil, fmt.Errorf("spectrum: forward fft: %w", err)
	}

	for i, c := range p.input {
		p.re[i] = real(c)
		p.im[i] = imag(c)
	}

	vecmath.Power(p.power, p.re, p.im)

	for i := range p.power {
		p.power[i] *= p.invRefSq
	}

	cur := p.power
	if p.cfg.AverageAlpha > 0 {
		alpha := p.cfg.AverageAlpha
		if !p.primed {
			copy(p.avg, p.power)
			p.primed = true
		} else {
			for i := range p.avg {
				p.avg[i] = alpha*p.avg[i] + (1-alpha)*p.power[i]
			}
		}
		cur = p.avg
	}

	// fftshift while converting to dB: move DC to the center bin.
	out := make([]float64, n)
	half := n / 2
	for i := range out {
		out[i] = core.LinearPowerToDB(cur[(i+half)%n])
	}

	if p.cfg.RemoveDCSpike && n >= 3 {
		out[half] = 0.5 * (out[half-1] + out[half+1])
	}

	return out, nil
}

// Reset clears the averaging state, e.g. after a source discontinuity.
func (p *Processor) Reset() {
	p.primed = false
	core.Zero(p.avg)
}

// BinSpacing returns the frequency resolution in Hz for a source sample rate.
func (p *Processor) BinSpacing(sampleRate float64) float64 {
	return sampleRate / float64(p.cfg.FFTSize)
}
