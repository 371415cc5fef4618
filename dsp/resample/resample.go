// Package resample converts real-valued streams between sample rates using
// a polyphase FIR interpolator.
//
// The demodulator uses it to deliver audio at a fixed output rate
// regardless of the channel's decimated rate, so a consumer never has to
// renegotiate its playback rate when the channel configuration changes.
package resample

import (
	"errors"
	"fmt"

	"github.com/radiowizard/radiowizard/dsp/core"
	"github.com/radiowizard/radiowizard/dsp/fir"
)

var (
	// ErrInvalidRatio indicates a non-positive up/down conversion ratio.
	ErrInvalidRatio = errors.New("resample: ratio factors must be > 0")
	// ErrInvalidRate indicates a non-positive or non-finite sample rate.
	ErrInvalidRate = errors.New("resample: sample rate must be > 0 and finite")
)

// Prototype filter parameters. The cutoff sits slightly below the
// theoretical anti-alias bound to keep the transition band inside the
// passband margin.
const (
	tapsPerPhase = 32
	cutoffScale  = 0.92
	kaiserBeta   = 7.5

	// maxDenominator caps the rational approximation of an arbitrary rate
	// ratio. 4096 resolves every common audio rate pair exactly.
	maxDenominator = 4096
)

// Resampler performs rational rate conversion with a polyphase FIR.
//
// Filter state and the fractional output phase persist across blocks so a
// stream can be converted in arbitrary chunk sizes. Reset clears both after
// a discontinuity. Not safe for concurrent use.
type Resampler struct {
	up   int
	down int

	phases   [][]float64
	phaseLen int

	// phase is the polyphase branch for the next output sample; pos is the
	// input index that sample is anchored to, relative to the start of the
	// next Process call. The tap loop reaches back into history from there.
	phase   int
	pos     int
	history []float64
	work    []float64
}

// New creates a Resampler for the exact ratio up/down. The ratio is reduced
// before the filter is designed.
func New(up, down int) (*Resampler, error) {
	if up <= 0 || down <= 0 {
		return nil, ErrInvalidRatio
	}

	g := gcd(up, down)
	up /= g
	down /= g

	phases, phaseLen, err := designPolyphase(up, down)
	if err != nil {
		return nil, err
	}

	return &Resampler{
		up:       up,
		down:     down,
		phases:   phases,
		phaseLen: phaseLen,
	}, nil
}

// ForRates creates a Resampler converting inRate to outRate, approximating
// the ratio as a reduced fraction.
func ForRates(inRate, outRate float64) (*Resampler, error) {
	if !(inRate > 0) || !(outRate > 0) || !core.IsFinite(inRate) || !core.IsFinite(outRate) {
		return nil, ErrInvalidRate
	}

	up, down := approximateRatio(outRate / inRate)

	return New(up, down)
}

// Ratio returns the reduced up/down conversion factors.
func (r *Resampler) Ratio() (up, down int) {
	return r.up, r.down
}

// Process converts one input block. The returned slice is freshly allocated
// and safe to hand off.
func (r *Resampler) Process(in []float64) []float64 {
	if len(in) == 0 {
		return nil
	}

	hist := len(r.history)
	r.work = core.EnsureLen(r.work, hist+len(in))
	copy(r.work, r.history)
	copy(r.work[hist:], in)

	out := make([]float64, 0, r.Predict(len(in)))

	for r.pos < len(in) {
		taps := r.phases[r.phase]

		var y float64
		for k, c := range taps {
			idx := r.pos - k + hist
			if idx < 0 {
				// Before the start of the stream; treat as silence.
				break
			}
			y += c * r.work[idx]
		}
		out = append(out, y)

		r.phase += r.down
		r.pos += r.phase / r.up
		r.phase %= r.up
	}

	// Rebase pos onto the next call and keep the filter memory.
	r.pos -= len(in)

	keep := min(r.phaseLen-1, hist+len(in))
	r.history = append(r.history[:0], r.work[hist+len(in)-keep:]...)

	return out
}

// Predict returns the number of output samples the next Process call will
// produce for an input of the given length.
func (r *Resampler) Predict(inputLen int) int {
	if inputLen <= 0 {
		return 0
	}

	pos, phase := r.pos, r.phase

	count := 0
	for pos < inputLen {
		count++
		phase += r.down
		pos += phase / r.up
		phase %= r.up
	}

	return count
}

// Reset clears the filter memory and output phase.
func (r *Resampler) Reset() {
	r.phase = 0
	r.pos = 0
	r.history = r.history[:0]
}

// designPolyphase builds the polyphase decomposition of an anti-alias
// low-pass prototype. The prototype has gain up at DC so interpolation
// preserves signal amplitude.
func designPolyphase(up, down int) ([][]float64, int, error) {
	nTaps := tapsPerPhase * up
	cutoff := 0.5 / float64(max(up, down)) * cutoffScale

	proto, err := fir.Lowpass(cutoff, nTaps, kaiserBeta)
	if err != nil {
		return nil, 0, fmt.Errorf("resample: prototype design: %w", err)
	}

	scale := float64(up)
	for i := range proto {
		proto[i] *= scale
	}

	phases := make([][]float64, up)
	phaseLen := 0
	for p := range up {
		branch := make([]float64, 0, (nTaps-p+up-1)/up)
		for i := p; i < nTaps; i += up {
			branch = append(branch, proto[i])
		}
		phases[p] = branch
		phaseLen = max(phaseLen, len(branch))
	}

	return phases, phaseLen, nil
}

// approximateRatio expands v as a continued fraction, stopping before the
// denominator exceeds maxDenominator.
func approximateRatio(v float64) (up, down int) {
	p0, q0 := 1, 0
	p1, q1 := int(v), 1
	x := v - float64(int(v))

	for x != 0 {
		x = 1 / x
		a := int(x)

		p2 := a*p1 + p0
		q2 := a*q1 + q0
		if q2 > maxDenominator {
			break
		}

		p0, q0 = p1, q1
		p1, q1 = p2, q2
		x -= float64(a)
	}

	if p1 <= 0 || q1 <= 0 {
		return 1, 1
	}

	g := gcd(p1, q1)

	return p1 / g, q1 / g
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	if a <= 0 {
		return 1
	}
	return a
}
