// Package demod converts narrowband complex baseband streams into audio or
// symbol streams.
//
// The mode set is closed: amplitude, frequency, single-sideband, and digital
// (binary FSK). Dispatch is an explicit switch over the mode tag; each mode
// carries its own parameters and its own lock metric, and the set is
// exhaustively testable.
package demod

import (
	"fmt"
	"math"

	"github.com/radiowizard/radiowizard/dsp/core"
	"github.com/radiowizard/radiowizard/dsp/resample"
)

// Mode identifies a demodulation mode.
type Mode int

const (
	ModeAM Mode = iota
	ModeFM
	ModeSSB
	ModeDigital
)

var modeNames = map[Mode]string{
	ModeAM:      "am",
	ModeFM:      "fm",
	ModeSSB:     "ssb",
	ModeDigital: "digital",
}

// String returns the canonical lower-case mode name.
func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}

	return "unknown"
}

// ParseMode resolves a mode name (as used in configuration files).
func ParseMode(name string) (Mode, error) {
	for m, s := range modeNames {
		if s == name {
			return m, nil
		}
	}

	return ModeAM, fmt.Errorf("demod: unknown mode: %q", name)
}

// Sideband selects which sideband an SSB demodulator recovers.
type Sideband int

const (
	SidebandUpper Sideband = iota
	SidebandLower
)

// Default parameter values applied when optional Config fields are zero.
const (
	DefaultSquelchDB    = -60.0
	DefaultDeviationHz  = 5000.0
	DefaultDeemphasisUS = 75.0
	DefaultDwellBlocks  = 3
	DefaultHoldBlocks   = 5
)

// Config selects a demodulation mode and its parameters.
type Config struct {
	Mode Mode

	// SquelchDB is the block-power threshold (dBFS) below which output is
	// zero-filled. 0 selects [DefaultSquelchDB].
	SquelchDB float64

	// DwellBlocks is the number of consecutive above-threshold blocks
	// required for Searching -> Locked. 0 selects [DefaultDwellBlocks].
	DwellBlocks int

	// HoldBlocks is the number of consecutive below-threshold blocks
	// tolerated before Locked -> Searching. 0 selects [DefaultHoldBlocks].
	HoldBlocks int

	// DeviationHz is the FM peak deviation (FM and Digital modes).
	// 0 selects [DefaultDeviationHz].
	DeviationHz float64

	// DeemphasisUS is the FM de-emphasis time constant in microseconds.
	// 0 selects [DefaultDeemphasisUS]; negative disables de-emphasis.
	DeemphasisUS float64

	// SSBSideband selects upper or lower sideband (SSB mode).
	SSBSideband Sideband

	// SymbolRateHz is the symbol rate for Digital mode. Required there,
	// ignored elsewhere.
	SymbolRateHz float64

	// OutputRateHz resamples demodulated audio to a fixed rate so consumers
	// never renegotiate playback when the channel configuration changes.
	// 0 emits at the channel rate unchanged. Audio modes only.
	OutputRateHz float64

	// Stereo enables FM broadcast stereo decoding: a PLL on the 19 kHz
	// pilot regenerates the 38 kHz subcarrier carrying the L-R channel.
	// FM mode only; the channel rate must carry the full composite.
	Stereo bool
}

// OutputRate returns the output sample rate for a given channel rate: the
// symbol rate in Digital mode, the resampled rate when one is configured,
// the channel rate otherwise.
func (c Config) OutputRate(inputRate float64) float64 {
	if c.Mode == ModeDigital {
		return c.SymbolRateHz
	}
	if c.OutputRateHz > 0 {
		return c.OutputRateHz
	}
	return inputRate
}

// Channels returns the number of interleaved channels in output frames:
// 2 for FM stereo, 1 otherwise.
func (c Config) Channels() int {
	if c.Mode == ModeFM && c.Stereo {
		return 2
	}
	return 1
}

func (c Config) withDefaults() Config {
	if c.SquelchDB == 0 {
		c.SquelchDB = DefaultSquelchDB
	}
	if c.DwellBlocks <= 0 {
		c.DwellBlocks = DefaultDwellBlocks
	}
	if c.HoldBlocks <= 0 {
		c.HoldBlocks = DefaultHoldBlocks
	}
	if c.DeviationHz <= 0 {
		c.DeviationHz = DefaultDeviationHz
	}
	if c.DeemphasisUS == 0 {
		c.DeemphasisUS = DefaultDeemphasisUS
	}
	return c
}

// Validate checks the configuration against the narrowband input rate.
func (c Config) Validate(inputRate float64) error {
	if inputRate <= 0 {
		return fmt.Errorf("demod: input rate must be > 0: %g", inputRate)
	}

	if _, ok := modeNames[c.Mode]; !ok {
		return fmt.Errorf("demod: unknown mode: %d", int(c.Mode))
	}

	if c.Mode == ModeDigital {
		if c.SymbolRateHz <= 0 {
			return fmt.Errorf("demod: digital mode requires symbol rate > 0: %g", c.SymbolRateHz)
		}
		if c.SymbolRateHz > inputRate/2 {
			return fmt.Errorf("demod: symbol rate %g exceeds half the channel rate %g", c.SymbolRateHz, inputRate)
		}
		if c.OutputRateHz != 0 {
			return fmt.Errorf("demod: digital mode emits symbols at the symbol rate, output rate %g is not applicable", c.OutputRateHz)
		}
	}

	if c.OutputRateHz < 0 {
		return fmt.Errorf("demod: output rate must be >= 0: %g", c.OutputRateHz)
	}

	if c.Stereo {
		if c.Mode != ModeFM {
			return fmt.Errorf("demod: stereo requires fm mode, got %s", c.Mode)
		}
		if inputRate < minStereoRateHz {
			return fmt.Errorf("demod: stereo requires a channel rate of at least %g Hz for the 53 kHz composite, got %g", minStereoRateHz, inputRate)
		}
	}

	return nil
}

// Demodulator is a mode-selectable state machine converting narrowband
// complex blocks into real output frames.
//
// Mode state (discriminator history, de-emphasis, DC tracker, symbol timing)
// persists across blocks within one configuration epoch. Reset returns the
// machine to Idle and clears it all. Not safe for concurrent use.
type Demodulator struct {
	cfg  Config
	rate float64

	lock lockState

	// FM / Digital discriminator.
	prev      complex128
	discGain  float64
	deemph    float64
	deemphA   float64
	useDeemph bool

	// AM DC tracker.
	dcTracker float64
	dcAlpha   float64

	// SSB beat oscillator.
	bfoPhase float64
	bfoStep  float64

	// Digital symbol timing (integrate and dump).
	samplesPerSym float64
	symAcc        float64
	symCount      float64

	// FM broadcast stereo decoder, nil when mono.
	stereo *stereoDecoder

	// Output resamplers, one per channel. Nil when emitting at the
	// channel rate.
	resamp [2]*resample.Resampler
}

// New creates a Demodulator for the given configuration and channel rate.
func New(cfg Config, inputRate float64) (*Demodulator, error) {
	if err := cfg.Validate(inputRate); err != nil {
		return nil, err
	}

	cfg = cfg.withDefaults()

	d := &Demodulator{
		cfg:  cfg,
		rate: inputRate,
		lock: newLockState(cfg.Mode, cfg.SquelchDB, cfg.DwellBlocks, cfg.HoldBlocks),
	}

	// Discriminator gain maps +/-deviation to +/-1.0 output.
	d.discGain = inputRate / (2 * math.Pi * cfg.DeviationHz)

	if cfg.DeemphasisUS > 0 {
		tau := cfg.DeemphasisUS * 1e-6
		dt := 1 / inputRate
		d.deemphA = dt / (tau + dt)
		d.useDeemph = true
	}

	// AM DC block: one-pole tracker with ~50 Hz corner.
	d.dcAlpha = 1 - math.Exp(-2*math.Pi*50/inputRate)

	// SSB: beat oscillator re-centers the sideband onto the audio band.
	bfo := 2 * math.Pi * (d.rate / 4) / d.rate
	if cfg.SSBSideband == SidebandUpper {
		d.bfoStep = -bfo
	} else {
		d.bfoStep = bfo
	}

	if cfg.Mode == ModeDigital {
		d.samplesPerSym = inputRate / cfg.SymbolRateHz
	}

	if cfg.Stereo && cfg.Mode == ModeFM {
		deemphA := 0.0
		if d.useDeemph {
			deemphA = d.deemphA
		}
		sd, err := newStereoDecoder(inputRate, deemphA)
		if err != nil {
			return nil, err
		}
		d.stereo = sd
	}

	if cfg.OutputRateHz > 0 && cfg.Mode != ModeDigital {
		for i := range cfg.Channels() {
			r, err := resample.ForRates(inputRate, cfg.OutputRateHz)
			if err != nil {
				return nil, fmt.Errorf("demod: output resampler: %w", err)
			}
			d.resamp[i] = r
		}
	}

	return d, nil
}

// Config returns the configuration (with defaults resolved).
func (d *Demodulator) Config() Config {
	return d.cfg
}

// State returns the current lock state.
func (d *Demodulator) State() State {
	return d.lock.state
}

// LockTransitions returns the number of Searching<->Locked transitions since
// construction or the last Reset.
func (d *Demodulator) LockTransitions() uint64 {
	return d.lock.transitions
}

// Process demodulates one narrowband block.
//
// The returned slice is freshly allocated. locked reports whether the block
// produced live output; when false the frame is zero-filled (silence while
// searching or below squelch).
func (d *Demodulator) Process(block []complex128) (out []float64, locked bool) {
	if len(block) == 0 {
		return nil, d.lock.open()
	}

	powerDB := core.LinearPowerToDB(blockPower(block))
	open := d.lock.update(powerDB)

	if !open {
		// Keep mode state warm only while Locked; a closed squelch means
		// the signal is gone, so output is plain silence.
		return d.silence(len(block)), false
	}

	switch d.cfg.Mode {
	case ModeAM:
		out = d.processAM(block)
	case ModeFM:
		if d.stereo != nil {
			out = d.processFMStereo(block)
		} else {
			out = d.processFM(block)
		}
	case ModeSSB:
		out = d.processSSB(block)
	case ModeDigital:
		out = d.processDigital(block)
	}

	return d.resampleOut(out), true
}

// resampleOut converts demodulated audio to the configured output rate.
// Stereo channels are deinterleaved, converted independently, and
// reinterleaved; the two resamplers stay in step because they always see
// the same input lengths.
func (d *Demodulator) resampleOut(audio []float64) []float64 {
	if d.resamp[0] == nil {
		return audio
	}

	if d.stereo == nil {
		return d.resamp[0].Process(audio)
	}

	n := len(audio) / 2
	left := make([]float64, n)
	right := make([]float64, n)
	for i := range n {
		left[i] = audio[2*i]
		right[i] = audio[2*i+1]
	}

	lo := d.resamp[0].Process(left)
	ro := d.resamp[1].Process(right)

	out := make([]float64, 0, 2*len(lo))
	for i := range lo {
		out = append(out, lo[i], ro[i])
	}
	return out
}

// silence produces a zero-filled frame of the right shape for a closed
// squelch. Zeros still pass through the resamplers so the output cadence
// and filter phase stay continuous across squelch transitions.
func (d *Demodulator) silence(blockLen int) []float64 {
	if d.cfg.Mode == ModeDigital {
		return make([]float64, d.outputLen(blockLen))
	}
	zero := make([]float64, blockLen*d.cfg.Channels())
	return d.resampleOut(zero)
}

// Reset discards all internal state and re-enters Idle, e.g. after a source
// discontinuity or a mode switch.
func (d *Demodulator) Reset() {
	d.lock.reset()
	d.prev = 0
	d.deemph = 0
	d.dcTracker = 0
	d.bfoPhase = 0
	d.symAcc = 0
	d.symCount = 0
	if d.stereo != nil {
		d.stereo.reset()
	}
	for _, r := range d.resamp {
		if r != nil {
			r.Reset()
		}
	}
}

func (d *Demodulator) outputLen(blockLen int) int {
	if d.cfg.Mode == ModeDigital {
		return int(float64(blockLen) / d.samplesPerSym)
	}
	return blockLen
}

func blockPower(block []complex128) float64 {
	sum := 0.0
	for _, v := range block {
		re := real(v)
		im := imag(v)
		sum += re*re + im*im
	}
	return sum / float64(len(block))
}
