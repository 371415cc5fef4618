package pipeline

import (
	"fmt"

	"github.com/radiowizard/radiowizard/dsp/channel"
	"github.com/radiowizard/radiowizard/dsp/demod"
	"github.com/radiowizard/radiowizard/dsp/spectrum"
)

// Status reports the supervisor's operational condition.
type Status int

const (
	StatusStopped Status = iota
	StatusRunning
	StatusFaulted
)

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusRunning:
		return "running"
	case StatusFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// SourceConfig describes the sample stream feeding the pipeline.
type SourceConfig struct {
	SampleRateHz float64
	CenterFreqHz float64
}

// MaxOverlap bounds the assembler overlap fraction. Beyond 0.75 each
// sample is reprocessed four-plus times, which buys no spectral resolution
// worth the cost.
const MaxOverlap = 0.75

// AssemblerConfig describes frame assembly.
type AssemblerConfig struct {
	// BlockLen is the emitted block length in samples.
	BlockLen int

	// Overlap is the fraction of each block shared with its predecessor,
	// in [0, MaxOverlap].
	Overlap float64

	// QueueDepth bounds the assembled-block queue. Zero selects
	// DefaultQueueDepth.
	QueueDepth int
}

// DefaultQueueDepth is the bound applied to inter-stage queues when a
// configuration leaves the depth unset.
const DefaultQueueDepth = 8

func (c AssemblerConfig) queueDepth() int {
	if c.QueueDepth <= 0 {
		return DefaultQueueDepth
	}
	return c.QueueDepth
}

// State is the complete pipeline configuration for one epoch.
//
// A State is immutable once published to the pipeline. Reconfiguration
// builds a new State, validates it as a whole, and applies it atomically
// at a block boundary; no partially-updated configuration is ever
// observable.
type State struct {
	Epoch     uint64
	Source    SourceConfig
	Assembler AssemblerConfig
	Spectrum  spectrum.Config
	Channel   channel.Config
	Demod     demod.Config
}

// Validate checks the whole configuration, including the cross-stage
// couplings a per-stage check cannot see: the channel passband against the
// source rate, and the demodulator symbol rate against the decimated
// channel rate.
func (s State) Validate() error {
	if s.Source.SampleRateHz <= 0 {
		return fmt.Errorf("source: sample rate %v Hz must be positive", s.Source.SampleRateHz)
	}
	if s.Assembler.BlockLen <= 0 {
		return fmt.Errorf("assembler: block length %d must be positive", s.Assembler.BlockLen)
	}
	if s.Assembler.Overlap < 0 || s.Assembler.Overlap > MaxOverlap {
		return fmt.Errorf("assembler: overlap %v outside [0, %v]", s.Assembler.Overlap, MaxOverlap)
	}
	if err := s.Spectrum.Validate(); err != nil {
		return fmt.Errorf("spectrum: %w", err)
	}
	if err := s.Channel.Validate(s.Source.SampleRateHz); err != nil {
		return fmt.Errorf("channel: %w", err)
	}
	channelRate := s.Source.SampleRateHz / float64(s.Channel.Decimation)
	if err := s.Demod.Validate(channelRate); err != nil {
		return fmt.Errorf("demod: %w", err)
	}
	return nil
}

// EqualConfig reports whether two states carry the same configuration,
// ignoring the epoch counter. Applying an equal configuration is a no-op.
func (s State) EqualConfig(o State) bool {
	return s.Source == o.Source &&
		s.Assembler == o.Assembler &&
		s.Spectrum == o.Spectrum &&
		s.Channel == o.Channel &&
		s.Demod == o.Demod
}
