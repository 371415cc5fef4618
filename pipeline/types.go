// Package pipeline wires the radio processing stages (frame assembly,
// spectral estimation, channel isolation, demodulation) into a supervised
// graph with bounded queues, atomic configuration epochs, and
// drop-and-count backpressure.
package pipeline

import "time"

// SampleBlock is a fixed-length chunk of complex baseband samples.
//
// Ownership transfers with the block: the producing stage never touches a
// block again after hand-off, and consumers treat Samples as read-only.
// State points at the immutable configuration snapshot that was current
// when the block was assembled, so every stage processes a block under the
// epoch that produced it.
type SampleBlock struct {
	Samples    []complex128
	Seq        uint64
	Timestamp  time.Time
	SampleRate float64
	State      *State

	// Discontinuity marks the first block after a source gap. Stateful
	// stages reset before processing it.
	Discontinuity bool
}

// SpectralFrame is one power-spectral-density snapshot.
//
// BinsDB values are dBFS power (10*log10 of normalized magnitude-squared),
// fftshifted with DC in the center bin. The bin count is constant for the
// lifetime of a configuration epoch.
type SpectralFrame struct {
	BinsDB       []float64
	CenterFreqHz float64
	BinSpacingHz float64
	Window       string
	Seq          uint64
	Epoch        uint64
	Timestamp    time.Time
}

// OutputFrame is one block of demodulated output (audio samples or symbol
// values) at the demodulator output rate. Channels is 1 for mono and
// symbol streams, 2 for interleaved stereo audio.
type OutputFrame struct {
	Samples   []float64
	Rate      float64
	Channels  int
	Seq       uint64
	Epoch     uint64
	Timestamp time.Time
	Locked    bool
}

// StatusFrame is the periodic operational report published on the status
// topic.
type StatusFrame struct {
	Status    Status
	Epoch     uint64
	Counters  TelemetrySnapshot
	Timestamp time.Time
}

// Bus is the distribution boundary the pipeline publishes into.
//
// Implementations must not block: a full outbound queue is reported as an
// error and the pipeline drops that single frame. Delivery is best-effort;
// the pipeline consumes no acknowledgments.
type Bus interface {
	PublishSpectrum(*SpectralFrame) error
	PublishAudio(*OutputFrame) error
	PublishStatus(*StatusFrame) error
}

// NopBus discards every frame. Useful for tests and headless operation.
type NopBus struct{}

func (NopBus) PublishSpectrum(*SpectralFrame) error { return nil }
func (NopBus) PublishAudio(*OutputFrame) error      { return nil }
func (NopBus) PublishStatus(*StatusFrame) error     { return nil }
