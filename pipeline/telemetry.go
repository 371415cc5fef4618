package pipeline

import "sync/atomic"

// Stage identifies a supervised processing stage for restart accounting.
type Stage int

const (
	StageSpectrum Stage = iota
	StageChannel
	stageCount
)

func (s Stage) String() string {
	switch s {
	case StageSpectrum:
		return "spectrum"
	case StageChannel:
		return "channel"
	default:
		return "unknown"
	}
}

// Telemetry holds the pipeline's operational counters. All fields are
// updated lock-free from the stage goroutines; Snapshot gives a consistent
// enough view for reporting (counters may be mid-increment relative to
// each other, which is fine for monitoring).
type Telemetry struct {
	BlocksAssembled atomic.Uint64
	BlocksProcessed atomic.Uint64
	OverloadDrops   atomic.Uint64
	DropoutResets   atomic.Uint64
	LockTransitions atomic.Uint64
	SpectrumFrames  atomic.Uint64
	OutputFrames    atomic.Uint64
	SpectrumDrops   atomic.Uint64
	AudioDrops      atomic.Uint64
	StatusDrops     atomic.Uint64

	StageRestarts [stageCount]atomic.Uint64
}

// TelemetrySnapshot is a plain-value copy of the counters.
type TelemetrySnapshot struct {
	BlocksAssembled uint64
	BlocksProcessed uint64
	OverloadDrops   uint64
	DropoutResets   uint64
	LockTransitions uint64
	SpectrumFrames  uint64
	OutputFrames    uint64
	SpectrumDrops   uint64
	AudioDrops      uint64
	StatusDrops     uint64
	StageRestarts   map[string]uint64
}

// Snapshot copies the current counter values.
func (t *Telemetry) Snapshot() TelemetrySnapshot {
	restarts := make(map[string]uint64, int(stageCount))
	for i := Stage(0); i < stageCount; i++ {
		restarts[i.String()] = t.StageRestarts[i].Load()
	}
	return TelemetrySnapshot{
		BlocksAssembled: t.BlocksAssembled.Load(),
		BlocksProcessed: t.BlocksProcessed.Load(),
		OverloadDrops:   t.OverloadDrops.Load(),
		DropoutResets:   t.DropoutResets.Load(),
		LockTransitions: t.LockTransitions.Load(),
		SpectrumFrames:  t.SpectrumFrames.Load(),
		OutputFrames:    t.OutputFrames.Load(),
		SpectrumDrops:   t.SpectrumDrops.Load(),
		AudioDrops:      t.AudioDrops.Load(),
		StatusDrops:     t.StatusDrops.Load(),
		StageRestarts:   restarts,
	}
}
