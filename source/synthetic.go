// Package source provides sample sources feeding the pipeline.
package source

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/radiowizard/radiowizard/pipeline"
)

// Tone is an unmodulated complex carrier at a fixed offset from center.
type Tone struct {
	FreqHz    float64
	Amplitude float64
}

// FMCarrier is a frequency-modulated carrier with a sinusoidal message,
// useful for exercising the full demodulation path without hardware.
type FMCarrier struct {
	OffsetHz    float64
	AudioHz     float64
	DeviationHz float64
	Amplitude   float64
}

// SyntheticConfig describes a generated sample stream.
type SyntheticConfig struct {
	SampleRateHz float64
	ChunkLen     int

	Tones []Tone
	FM    *FMCarrier

	// NoiseAmplitude adds uniform white noise; zero disables it.
	NoiseAmplitude float64
	NoiseSeed      int64

	// Throttle paces Read to real time. Off, the source produces as fast
	// as the consumer can take, which is what tests want.
	Throttle bool
}

// Synthetic generates a deterministic baseband stream. Phase is continuous
// across chunks, so the output is indistinguishable from a contiguous
// capture. Not safe for concurrent use; the supervisor reads it from a
// single goroutine.
type Synthetic struct {
	cfg   SyntheticConfig
	rng   *rand.Rand
	start time.Time

	tonePhase []float64
	fmPhase   float64
	emitted   uint64
}

// NewSynthetic validates the configuration and builds a source.
func NewSynthetic(cfg SyntheticConfig) (*Synthetic, error) {
	if cfg.SampleRateHz <= 0 {
		return nil, fmt.Errorf("source: sample rate %v Hz must be positive", cfg.SampleRateHz)
	}
	if cfg.ChunkLen <= 0 {
		return nil, fmt.Errorf("source: chunk length %d must be positive", cfg.ChunkLen)
	}
	nyq := cfg.SampleRateHz / 2
	for _, t := range cfg.Tones {
		if math.Abs(t.FreqHz) > nyq {
			return nil, fmt.Errorf("source: tone at %v Hz outside +/-%v Hz span", t.FreqHz, nyq)
		}
	}
	if cfg.FM != nil && math.Abs(cfg.FM.OffsetHz) > nyq {
		return nil, fmt.Errorf("source: fm carrier at %v Hz outside +/-%v Hz span", cfg.FM.OffsetHz, nyq)
	}
	return &Synthetic{
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(cfg.NoiseSeed)),
		start:     time.Now(),
		tonePhase: make([]float64, len(cfg.Tones)),
	}, nil
}

// SampleRate returns the configured sample rate.
func (s *Synthetic) SampleRate() float64 { return s.cfg.SampleRateHz }

// Read generates the next chunk. With throttling enabled it sleeps until
// the chunk's nominal wall-clock time, honoring ctx.
func (s *Synthetic) Read(ctx context.Context) (pipeline.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.Chunk{}, err
	}

	elapsed := time.Duration(float64(s.emitted) / s.cfg.SampleRateHz * float64(time.Second))
	ts := s.start.Add(elapsed)
	if s.cfg.Throttle {
		if wait := time.Until(ts); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return pipeline.Chunk{}, ctx.Err()
			case <-timer.C:
			}
		}
	}

	out := make([]complex128, s.cfg.ChunkLen)
	for ti, tone := range s.cfg.Tones {
		step := 2 * math.Pi * tone.FreqHz / s.cfg.SampleRateHz
		ph := s.tonePhase[ti]
		for i := range out {
			out[i] += complex(tone.Amplitude*math.Cos(ph), tone.Amplitude*math.Sin(ph))
			ph += step
		}
		s.tonePhase[ti] = math.Mod(ph, 2*math.Pi)
	}
	if fm := s.cfg.FM; fm != nil {
		carrier := 2 * math.Pi * fm.OffsetHz / s.cfg.SampleRateHz
		ph := s.fmPhase
		base := float64(s.emitted)
		for i := range out {
			msg := math.Sin(2 * math.Pi * fm.AudioHz * (base + float64(i)) / s.cfg.SampleRateHz)
			ph += carrier + 2*math.Pi*fm.DeviationHz*msg/s.cfg.SampleRateHz
			out[i] += complex(fm.Amplitude*math.Cos(ph), fm.Amplitude*math.Sin(ph))
		}
		s.fmPhase = math.Mod(ph, 2*math.Pi)
	}
	if a := s.cfg.NoiseAmplitude; a > 0 {
		for i := range out {
			out[i] += complex((s.rng.Float64()*2-1)*a, (s.rng.Float64()*2-1)*a)
		}
	}

	s.emitted += uint64(s.cfg.ChunkLen)
	return pipeline.Chunk{Samples: out, Timestamp: ts}, nil
}

// Replay wraps a finite set of chunks, then reports a closed source. Handy
// for offline runs over canned data.
type Replay struct {
	chunks []pipeline.Chunk
	i      int
}

// NewReplay builds a source that delivers the given chunks in order.
func NewReplay(chunks []pipeline.Chunk) *Replay {
	return &Replay{chunks: chunks}
}

func (r *Replay) Read(ctx context.Context) (pipeline.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.Chunk{}, err
	}
	if r.i >= len(r.chunks) {
		return pipeline.Chunk{}, pipeline.ErrSourceClosed
	}
	c := r.chunks[r.i]
	r.i++
	return c, nil
}

var _ pipeline.Source = (*Synthetic)(nil)
var _ pipeline.Source = (*Replay)(nil)
