package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/radiowizard/radiowizard/dsp/channel"
	"github.com/radiowizard/radiowizard/dsp/core"
	"github.com/radiowizard/radiowizard/dsp/demod"
	"github.com/radiowizard/radiowizard/dsp/spectrum"
)

const (
	// A stage that restarts this many times within restartWindow takes the
	// whole pipeline to StatusFaulted.
	restartLimit  = 3
	restartWindow = 10 * time.Second

	statusInterval = time.Second
)

var (
	// ErrSourceClosed is returned by a Source whose stream has ended.
	// The supervisor treats it as a clean shutdown.
	ErrSourceClosed = errors.New("pipeline: source closed")

	// ErrNotRunning is returned by ApplyConfig when Run is not active.
	ErrNotRunning = errors.New("pipeline: not running")
)

// Chunk is a slice of contiguous samples delivered by a Source.
type Chunk struct {
	Samples   []complex128
	Timestamp time.Time

	// Discontinuity marks a gap before this chunk (hardware overrun,
	// retune). Downstream stage state is reset rather than smeared
	// across the gap.
	Discontinuity bool
}

// Source delivers timestamped baseband samples at a fixed rate.
type Source interface {
	Read(ctx context.Context) (Chunk, error)
}

type applyRequest struct {
	next State
	done chan error
}

// blockQueue is a bounded hand-off between stages. When the consumer
// falls behind, the oldest queued block is dropped so the stream stays
// current; drops are counted, never silent.
type blockQueue struct {
	ch    chan *SampleBlock
	drops *atomic.Uint64
}

func newBlockQueue(depth int, drops *atomic.Uint64) *blockQueue {
	return &blockQueue{ch: make(chan *SampleBlock, depth), drops: drops}
}

func (q *blockQueue) put(b *SampleBlock) {
	for {
		select {
		case q.ch <- b:
			return
		default:
		}
		select {
		case <-q.ch:
			q.drops.Add(1)
		default:
		}
	}
}

// Supervisor owns the stage goroutines and the configuration lifecycle.
//
// The data path never takes a lock: blocks flow through bounded channels,
// counters are atomics, and the active State is an immutable snapshot
// swapped atomically at a block boundary.
type Supervisor struct {
	src  Source
	bus  Bus
	log  *slog.Logger
	tele *Telemetry

	applyMu sync.Mutex
	cfgCh   chan applyRequest

	cur     atomic.Pointer[State]
	status  atomic.Int32
	running atomic.Bool

	specQ *blockQueue
	chanQ *blockQueue

	restartMu sync.Mutex
	restarts  [stageCount][]time.Time
}

// NewSupervisor validates the initial configuration and builds a stopped
// supervisor. Run starts the stages.
func NewSupervisor(st State, src Source, bus Bus, log *slog.Logger) (*Supervisor, error) {
	if src == nil {
		return nil, errors.New("pipeline: nil source")
	}
	if err := st.Validate(); err != nil {
		return nil, err
	}
	if bus == nil {
		bus = NopBus{}
	}
	if log == nil {
		log = slog.Default()
	}
	st.Epoch = 1
	s := &Supervisor{
		src:   src,
		bus:   bus,
		log:   log,
		tele:  &Telemetry{},
		cfgCh: make(chan applyRequest),
	}
	s.cur.Store(&st)
	depth := st.Assembler.queueDepth()
	s.specQ = newBlockQueue(depth, &s.tele.OverloadDrops)
	s.chanQ = newBlockQueue(depth, &s.tele.OverloadDrops)
	s.status.Store(int32(StatusStopped))
	return s, nil
}

// Run drives the pipeline until ctx is cancelled or the source closes.
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("pipeline: already running")
	}
	defer s.running.Store(false)
	s.status.Store(int32(StatusRunning))
	defer s.status.Store(int32(StatusStopped))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.ingest(ctx) })
	g.Go(func() error { return s.spectrumStage(ctx) })
	g.Go(func() error { return s.channelStage(ctx) })
	g.Go(func() error { return s.statusLoop(ctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrSourceClosed) {
		return nil
	}
	return err
}

// Status reports the supervisor's operational condition.
func (s *Supervisor) Status() Status { return Status(s.status.Load()) }

// StateSnapshot returns a copy of the active configuration.
func (s *Supervisor) StateSnapshot() State { return *s.cur.Load() }

// Telemetry returns a copy of the operational counters.
func (s *Supervisor) Telemetry() TelemetrySnapshot { return s.tele.Snapshot() }

// ApplyConfig validates next as a whole and applies it atomically at the
// next block boundary. Applying a configuration equal to the active one is
// a no-op and does not advance the epoch. A valid configuration also
// clears a fault and resumes sample consumption.
func (s *Supervisor) ApplyConfig(ctx context.Context, next State) error {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	if err := next.Validate(); err != nil {
		return err
	}
	if !s.running.Load() {
		return ErrNotRunning
	}
	req := applyRequest{next: next, done: make(chan error, 1)}
	select {
	case s.cfgCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ingest reads the source, assembles blocks, and fans them out to the
// consumer queues. Configuration changes are picked up between chunks so
// they land on block boundaries.
func (s *Supervisor) ingest(ctx context.Context) error {
	asm := NewAssembler(s.cur.Load())
	for {
		select {
		case req := <-s.cfgCh:
			req.done <- s.apply(asm, req.next)
			continue
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if s.Status() == StatusFaulted {
			// Stop consuming. Only a fresh configuration resumes the
			// pipeline.
			select {
			case req := <-s.cfgCh:
				req.done <- s.apply(asm, req.next)
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		chunk, err := s.src.Read(ctx)
		if err != nil {
			switch {
			case errors.Is(err, ErrSourceClosed):
				// Propagate so the group cancels the other stages; Run
				// reports a closed source as a clean stop.
				return err
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return ctx.Err()
			default:
				return fmt.Errorf("pipeline: source read: %w", err)
			}
		}
		if chunk.Discontinuity {
			asm.MarkDiscontinuity()
			s.tele.DropoutResets.Add(1)
			s.log.Warn("source discontinuity, resetting stage state")
		}
		for _, blk := range asm.Push(chunk.Samples, chunk.Timestamp) {
			s.tele.BlocksAssembled.Add(1)
			s.specQ.put(blk)
			s.chanQ.put(blk)
		}
	}
}

// apply installs a validated configuration. Runs on the ingest goroutine,
// so no block is in flight between the old and new epoch.
func (s *Supervisor) apply(asm *Assembler, next State) error {
	cur := s.cur.Load()
	if cur.EqualConfig(next) && s.Status() != StatusFaulted {
		return nil
	}
	next.Epoch = cur.Epoch + 1
	st := &next
	s.cur.Store(st)
	asm.Reconfigure(st)
	s.clearFault()
	s.log.Info("configuration applied",
		"epoch", st.Epoch,
		"center_freq_hz", st.Source.CenterFreqHz,
		"mode", st.Demod.Mode.String())
	return nil
}

func (s *Supervisor) clearFault() {
	s.restartMu.Lock()
	for i := range s.restarts {
		s.restarts[i] = nil
	}
	s.restartMu.Unlock()
	s.status.Store(int32(StatusRunning))
}

// stageFault records a stage restart. It returns false when the stage has
// restarted too many times within the window, in which case the pipeline is
// faulted and sample consumption halts.
func (s *Supervisor) stageFault(stage Stage, cause error) bool {
	s.tele.StageRestarts[stage].Add(1)

	s.restartMu.Lock()
	now := time.Now()
	hist := s.restarts[stage][:0]
	for _, t := range s.restarts[stage] {
		if now.Sub(t) < restartWindow {
			hist = append(hist, t)
		}
	}
	hist = append(hist, now)
	s.restarts[stage] = hist
	exhausted := len(hist) >= restartLimit
	s.restartMu.Unlock()

	if exhausted {
		s.status.Store(int32(StatusFaulted))
		s.log.Error("stage fault limit reached, pipeline faulted",
			"stage", stage.String(), "err", cause)
		return false
	}
	s.log.Warn("stage restarting", "stage", stage.String(), "err", cause)
	return true
}

// spectrumStage turns sample blocks into spectral frames.
func (s *Supervisor) spectrumStage(ctx context.Context) error {
	var (
		proc  *spectrum.Processor
		epoch uint64
	)
	for {
		var blk *SampleBlock
		select {
		case <-ctx.Done():
			return ctx.Err()
		case blk = <-s.specQ.ch:
		}

		if proc == nil || blk.State.Epoch != epoch {
			p, err := spectrum.New(blk.State.Spectrum)
			if err != nil {
				return fmt.Errorf("pipeline: spectrum stage: %w", err)
			}
			proc = p
			epoch = blk.State.Epoch
		}
		if blk.Discontinuity {
			proc.Reset()
		}

		bins, err := proc.Process(blk.Samples)
		if err != nil || core.HasNonFinite(bins) {
			if err == nil {
				err = errors.New("non-finite spectral output")
			}
			if s.stageFault(StageSpectrum, err) {
				proc = nil
			}
			continue
		}

		frame := &SpectralFrame{
			BinsDB:       bins,
			CenterFreqHz: blk.State.Source.CenterFreqHz,
			BinSpacingHz: proc.BinSpacing(blk.SampleRate),
			Window:       blk.State.Spectrum.Window.String(),
			Seq:          blk.Seq,
			Epoch:        blk.State.Epoch,
			Timestamp:    blk.Timestamp,
		}
		if err := s.bus.PublishSpectrum(frame); err != nil {
			s.tele.SpectrumDrops.Add(1)
		} else {
			s.tele.SpectrumFrames.Add(1)
		}
	}
}

// channelStage isolates the configured channel and demodulates it.
// The isolator is rebuilt before the demodulator on an epoch change, so
// the demodulator always sees its producer's output rate.
func (s *Supervisor) channelStage(ctx context.Context) error {
	var (
		iso   *channel.Isolator
		dem   *demod.Demodulator
		epoch uint64
	)
	for {
		var blk *SampleBlock
		select {
		case <-ctx.Done():
			return ctx.Err()
		case blk = <-s.chanQ.ch:
		}

		if iso == nil || blk.State.Epoch != epoch {
			var err error
			iso, err = channel.New(blk.State.Channel, blk.State.Source.SampleRateHz)
			if err != nil {
				return fmt.Errorf("pipeline: channel stage: %w", err)
			}
			dem, err = demod.New(blk.State.Demod, iso.OutputRate())
			if err != nil {
				return fmt.Errorf("pipeline: demod stage: %w", err)
			}
			epoch = blk.State.Epoch
		}
		if blk.Discontinuity {
			iso.Reset()
			dem.Reset()
		}

		before := dem.LockTransitions()
		narrow := iso.Process(blk.Samples)
		audio, locked := dem.Process(narrow)
		if d := dem.LockTransitions() - before; d > 0 {
			s.tele.LockTransitions.Add(d)
		}
		if core.HasNonFinite(audio) || core.HasNonFiniteComplex(narrow) {
			if s.stageFault(StageChannel, errors.New("non-finite channel output")) {
				iso = nil
			}
			continue
		}
		s.tele.BlocksProcessed.Add(1)

		frame := &OutputFrame{
			Samples:   audio,
			Rate:      dem.Config().OutputRate(iso.OutputRate()),
			Channels:  dem.Config().Channels(),
			Seq:       blk.Seq,
			Epoch:     blk.State.Epoch,
			Timestamp: blk.Timestamp,
			Locked:    locked,
		}
		if err := s.bus.PublishAudio(frame); err != nil {
			s.tele.AudioDrops.Add(1)
		} else {
			s.tele.OutputFrames.Add(1)
		}
	}
}

// statusLoop publishes a periodic operational report.
func (s *Supervisor) statusLoop(ctx context.Context) error {
	tick := time.NewTicker(statusInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-tick.C:
			frame := &StatusFrame{
				Status:    s.Status(),
				Epoch:     s.cur.Load().Epoch,
				Counters:  s.tele.Snapshot(),
				Timestamp: now,
			}
			if err := s.bus.PublishStatus(frame); err != nil {
				s.tele.StatusDrops.Add(1)
			}
		}
	}
}
