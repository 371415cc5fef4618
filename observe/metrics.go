package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/radiowizard/radiowizard/pipeline"
)

// meterName is the instrumentation scope name for all radiowizard metrics.
const meterName = "github.com/radiowizard/radiowizard"

// RegisterPipeline registers observable counters that report the
// pipeline's telemetry snapshot on every collection. Unregister the
// returned registration when the supervisor it observes is gone.
func RegisterPipeline(mp metric.MeterProvider, snapshot func() pipeline.TelemetrySnapshot) (metric.Registration, error) {
	m := mp.Meter(meterName)

	blocksAssembled, err := m.Int64ObservableCounter("radiowizard.pipeline.blocks_assembled",
		metric.WithDescription("Sample blocks assembled from the source stream."))
	if err != nil {
		return nil, err
	}
	blocksProcessed, err := m.Int64ObservableCounter("radiowizard.pipeline.blocks_processed",
		metric.WithDescription("Sample blocks fully processed by the channel path."))
	if err != nil {
		return nil, err
	}
	overloadDrops, err := m.Int64ObservableCounter("radiowizard.pipeline.overload_drops",
		metric.WithDescription("Blocks dropped because a stage queue was full."))
	if err != nil {
		return nil, err
	}
	dropoutResets, err := m.Int64ObservableCounter("radiowizard.pipeline.dropout_resets",
		metric.WithDescription("Stage resets caused by source discontinuities."))
	if err != nil {
		return nil, err
	}
	lockTransitions, err := m.Int64ObservableCounter("radiowizard.demod.lock_transitions",
		metric.WithDescription("Demodulator lock state transitions."))
	if err != nil {
		return nil, err
	}
	frames, err := m.Int64ObservableCounter("radiowizard.publish.frames",
		metric.WithDescription("Frames published, by topic."))
	if err != nil {
		return nil, err
	}
	publishDrops, err := m.Int64ObservableCounter("radiowizard.publish.drops",
		metric.WithDescription("Frames dropped at the distribution boundary, by topic."))
	if err != nil {
		return nil, err
	}
	stageRestarts, err := m.Int64ObservableCounter("radiowizard.pipeline.stage_restarts",
		metric.WithDescription("Stage restarts after numeric faults, by stage."))
	if err != nil {
		return nil, err
	}

	return m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := snapshot()
		o.ObserveInt64(blocksAssembled, int64(s.BlocksAssembled))
		o.ObserveInt64(blocksProcessed, int64(s.BlocksProcessed))
		o.ObserveInt64(overloadDrops, int64(s.OverloadDrops))
		o.ObserveInt64(dropoutResets, int64(s.DropoutResets))
		o.ObserveInt64(lockTransitions, int64(s.LockTransitions))

		o.ObserveInt64(frames, int64(s.SpectrumFrames),
			metric.WithAttributes(attribute.String("topic", "spectrum")))
		o.ObserveInt64(frames, int64(s.OutputFrames),
			metric.WithAttributes(attribute.String("topic", "audio")))
		o.ObserveInt64(publishDrops, int64(s.SpectrumDrops),
			metric.WithAttributes(attribute.String("topic", "spectrum")))
		o.ObserveInt64(publishDrops, int64(s.AudioDrops),
			metric.WithAttributes(attribute.String("topic", "audio")))
		o.ObserveInt64(publishDrops, int64(s.StatusDrops),
			metric.WithAttributes(attribute.String("topic", "status")))

		for stage, n := range s.StageRestarts {
			o.ObserveInt64(stageRestarts, int64(n),
				metric.WithAttributes(attribute.String("stage", stage)))
		}
		return nil
	}, blocksAssembled, blocksProcessed, overloadDrops, dropoutResets,
		lockTransitions, frames, publishDrops, stageRestarts)
}
