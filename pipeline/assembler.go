package pipeline

import "time"

// Assembler buffers incoming sample chunks and re-frames them into
// fixed-length blocks, optionally overlapping consecutive blocks.
//
// The assembler is not safe for concurrent use; the supervisor drives it
// from a single goroutine.
type Assembler struct {
	blockLen int
	step     int
	rate     float64
	state    *State

	buf     []complex128
	bufTime time.Time
	seq     uint64

	pendingReset bool
}

// NewAssembler builds an assembler for the given configuration snapshot.
func NewAssembler(st *State) *Assembler {
	a := &Assembler{}
	a.Reconfigure(st)
	return a
}

// Reconfigure adopts a new configuration snapshot. Any partially
// accumulated block is discarded; a block never mixes samples from two
// epochs.
func (a *Assembler) Reconfigure(st *State) {
	a.blockLen = st.Assembler.BlockLen
	a.step = int(float64(st.Assembler.BlockLen) * (1 - st.Assembler.Overlap))
	if a.step < 1 {
		a.step = 1
	}
	a.rate = st.Source.SampleRateHz
	a.state = st
	a.buf = a.buf[:0]
}

// MarkDiscontinuity discards the partial buffer and flags the next emitted
// block, so stateful consumers reset instead of smearing the gap.
func (a *Assembler) MarkDiscontinuity() {
	a.buf = a.buf[:0]
	a.pendingReset = true
}

// Push appends a chunk of samples and returns the blocks completed by it.
// Returned blocks own their sample storage; overlapping blocks do not
// share backing arrays.
func (a *Assembler) Push(samples []complex128, ts time.Time) []*SampleBlock {
	if len(a.buf) == 0 {
		a.bufTime = ts
	}
	a.buf = append(a.buf, samples...)

	var out []*SampleBlock
	for len(a.buf) >= a.blockLen {
		blk := &SampleBlock{
			Samples:       append([]complex128(nil), a.buf[:a.blockLen]...),
			Seq:           a.seq,
			Timestamp:     a.bufTime,
			SampleRate:    a.rate,
			State:         a.state,
			Discontinuity: a.pendingReset,
		}
		a.seq++
		a.pendingReset = false
		out = append(out, blk)

		a.buf = a.buf[:copy(a.buf, a.buf[a.step:])]
		a.bufTime = a.bufTime.Add(time.Duration(float64(a.step) / a.rate * float64(time.Second)))
	}
	return out
}

// Pending reports how many samples are buffered awaiting a full block.
func (a *Assembler) Pending() int { return len(a.buf) }
