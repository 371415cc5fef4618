package demod

// State is the demodulator lock state.
//
// Frequency-locked modes (FM, Digital) move Idle -> Searching -> Locked with
// dwell/hold hysteresis on the block-power metric. Amplitude modes (AM, SSB)
// have only Idle -> Active, with squelch gating the output directly.
type State int

const (
	StateIdle State = iota
	StateSearching
	StateLocked
	StateActive
)

var stateNames = map[State]string{
	StateIdle:      "idle",
	StateSearching: "searching",
	StateLocked:    "locked",
	StateActive:    "active",
}

// String returns the lower-case state name.
func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}

	return "unknown"
}

// lockState implements the dwell/hold hysteresis. The dwell requirement
// prevents a single noise burst from declaring lock; the hold requirement
// prevents chatter when the metric dithers around the threshold.
type lockState struct {
	needsLock   bool
	thresholdDB float64
	dwell       int
	hold        int

	state       State
	aboveCount  int
	belowCount  int
	transitions uint64
}

func newLockState(mode Mode, thresholdDB float64, dwell, hold int) lockState {
	return lockState{
		needsLock:   mode == ModeFM || mode == ModeDigital,
		thresholdDB: thresholdDB,
		dwell:       dwell,
		hold:        hold,
		state:       StateIdle,
	}
}

// update advances the state machine with one block-power measurement and
// reports whether the demodulator should produce live output.
func (l *lockState) update(powerDB float64) bool {
	above := powerDB >= l.thresholdDB

	if !l.needsLock {
		if l.state == StateIdle {
			l.state = StateActive
		}
		return above
	}

	if l.state == StateIdle {
		l.state = StateSearching
	}

	if above {
		l.aboveCount++
		l.belowCount = 0
	} else {
		l.belowCount++
		l.aboveCount = 0
	}

	switch l.state {
	case StateSearching:
		if l.aboveCount >= l.dwell {
			l.state = StateLocked
			l.transitions++
		}
	case StateLocked:
		if l.belowCount >= l.hold {
			l.state = StateSearching
			l.transitions++
		}
	}

	return l.state == StateLocked
}

// open reports whether the machine currently passes output, without
// advancing it.
func (l *lockState) open() bool {
	if !l.needsLock {
		return l.state == StateActive
	}
	return l.state == StateLocked
}

func (l *lockState) reset() {
	l.state = StateIdle
	l.aboveCount = 0
	l.belowCount = 0
	l.transitions = 0
}
