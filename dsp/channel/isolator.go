// Package channel isolates a narrowband sub-channel from a wideband complex
// baseband stream: frequency translation, anti-alias low-pass filtering, and
// integer decimation.
package channel

import (
	"fmt"
	"math"

	"github.com/radiowizard/radiowizard/dsp/core"
	"github.com/radiowizard/radiowizard/dsp/fir"
)

// Defaults applied when optional Config fields are zero.
const (
	DefaultStopbandDB      = 60.0
	defaultTransitionRatio = 0.25
)

// ValidationError describes a rejected channel configuration. The pipeline
// keeps running under its previous configuration when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("channel config: %s: %s", e.Field, e.Reason)
}

// Config selects the sub-channel to extract.
type Config struct {
	// CenterOffsetHz is the channel center relative to the wideband center.
	// Positive = above center.
	CenterOffsetHz float64

	// BandwidthHz is the two-sided channel bandwidth.
	BandwidthHz float64

	// Decimation is the integer output-rate divisor. Output rate is
	// inputRate / Decimation.
	Decimation int

	// TransitionHz is the filter transition width. 0 selects a quarter of
	// the bandwidth.
	TransitionHz float64

	// StopbandDB is the anti-alias stopband attenuation. 0 selects
	// [DefaultStopbandDB].
	StopbandDB float64
}

// Validate checks the configuration against an input sample rate. Aliasing
// configurations are rejected, never silently clamped.
func (c Config) Validate(inputRate float64) error {
	if inputRate <= 0 {
		return &ValidationError{Field: "inputRate", Reason: fmt.Sprintf("must be > 0, got %g", inputRate)}
	}

	if c.BandwidthHz <= 0 {
		return &ValidationError{Field: "bandwidth", Reason: fmt.Sprintf("must be > 0, got %g", c.BandwidthHz)}
	}

	if c.Decimation < 1 {
		return &ValidationError{Field: "decimation", Reason: fmt.Sprintf("must be >= 1, got %d", c.Decimation)}
	}

	if c.BandwidthHz > inputRate/2 {
		return &ValidationError{
			Field:  "bandwidth",
			Reason: fmt.Sprintf("%g Hz exceeds Nyquist %g Hz for input rate %g Hz", c.BandwidthHz, inputRate/2, inputRate),
		}
	}

	outputRate := inputRate / float64(c.Decimation)
	if c.BandwidthHz > outputRate/2 {
		return &ValidationError{
			Field:  "bandwidth",
			Reason: fmt.Sprintf("%g Hz exceeds %g Hz for decimation factor %d (half the %g Hz output rate)", c.BandwidthHz, outputRate/2, c.Decimation, outputRate),
		}
	}

	if math.Abs(c.CenterOffsetHz)+c.BandwidthHz/2 > inputRate/2 {
		return &ValidationError{
			Field:  "centerOffset",
			Reason: fmt.Sprintf("channel edge at %g Hz falls outside the captured span ±%g Hz", math.Abs(c.CenterOffsetHz)+c.BandwidthHz/2, inputRate/2),
		}
	}

	return nil
}

// Isolator extracts one narrowband channel from a wideband stream.
//
// The oscillator phase, filter delay line, and decimation phase persist
// across blocks within one configuration epoch so chunk boundaries are
// seamless. Reset clears all three after a discontinuity. Not safe for
// concurrent use.
type Isolator struct {
	cfg        Config
	inputRate  float64
	outputRate float64

	phase     float64 // oscillator phase, radians
	phaseStep float64 // radians per sample, negative of the offset

	filt     *fir.Filter
	decPhase int

	mixed []complex128
}

// New creates an Isolator for the given configuration and input rate.
func New(cfg Config, inputRate float64) (*Isolator, error) {
	if err := cfg.Validate(inputRate); err != nil {
		return nil, err
	}

	stopband := cfg.StopbandDB
	if stopband <= 0 {
		stopband = DefaultStopbandDB
	}

	transition := cfg.TransitionHz
	if transition <= 0 {
		transition = cfg.BandwidthHz * defaultTransitionRatio
	}

	taps, beta, err := fir.KaiserOrder(stopband, transition/inputRate)
	if err != nil {
		return nil, fmt.Errorf("channel: filter order: %w", err)
	}

	cutoff := (cfg.BandwidthHz / 2) / inputRate
	coeffs, err := fir.Lowpass(cutoff, taps, beta)
	if err != nil {
		return nil, fmt.Errorf("channel: filter design: %w", err)
	}

	filt, err := fir.New(coeffs)
	if err != nil {
		return nil, fmt.Errorf("channel: filter: %w", err)
	}

	return &Isolator{
		cfg:        cfg,
		inputRate:  inputRate,
		outputRate: inputRate / float64(cfg.Decimation),
		phaseStep:  -2 * math.Pi * cfg.CenterOffsetHz / inputRate,
		filt:       filt,
	}, nil
}

// Process frequency-shifts, filters, and decimates one wideband block.
// The returned slice is freshly allocated and safe to hand off.
func (iso *Isolator) Process(block []complex128) []complex128 {
	iso.mixed = core.EnsureLenComplex(iso.mixed, len(block))
	mixed := iso.mixed

	for i, v := range block {
		osc := complex(math.Cos(iso.phase), math.Sin(iso.phase))
		mixed[i] = v * osc
		iso.phase += iso.phaseStep
	}

	// Keep the accumulator bounded so precision holds over long runs.
	iso.phase = math.Mod(iso.phase, 2*math.Pi)

	out := make([]complex128, 0, len(block)/iso.cfg.Decimation+1)

	return iso.filt.ProcessDecimate(out, mixed, iso.cfg.Decimation, &iso.decPhase)
}

// Reset clears oscillator, filter, and decimation state after a
// discontinuity or before a new configuration epoch.
func (iso *Isolator) Reset() {
	iso.phase = 0
	iso.decPhase = 0
	iso.filt.Reset()
}

// Config returns the configuration the Isolator was built with.
func (iso *Isolator) Config() Config {
	return iso.cfg
}

// OutputRate returns the decimated output sample rate in Hz.
func (iso *Isolator) OutputRate() float64 {
	return iso.outputRate
}
