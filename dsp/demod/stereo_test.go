package demod

import (
	"math"
	"testing"

	"github.com/radiowizard/radiowizard/dsp/core"
	"github.com/radiowizard/radiowizard/internal/testutil"
)

const stereoRate = 192000.0

// fmStereoSignal modulates a broadcast-style composite carrying a left-only
// tone: mono sum, 19 kHz pilot at 10 percent, and the L-R difference
// channel on the 38 kHz subcarrier phase-locked to the pilot.
func fmStereoSignal(audioHz, deviationHz, rate float64, length int) []complex128 {
	out := make([]complex128, length)
	phase := 0.0
	for i := range out {
		ts := float64(i) / rate
		l := 0.8 * math.Sin(2*math.Pi*audioHz*ts)
		pilotPhase := 2 * math.Pi * pilotHz * ts
		comp := l/2 + 0.1*math.Sin(pilotPhase) + l/2*math.Sin(2*pilotPhase)
		phase += 2 * math.Pi * deviationHz * comp / rate
		out[i] = complex(math.Cos(phase), math.Sin(phase))
	}
	return out
}

func deinterleave(t *testing.T, frame []float64) (left, right []float64) {
	t.Helper()
	if len(frame)%2 != 0 {
		t.Fatalf("stereo frame length %d is odd", len(frame))
	}
	n := len(frame) / 2
	left = make([]float64, n)
	right = make([]float64, n)
	for i := range n {
		left[i] = frame[2*i]
		right[i] = frame[2*i+1]
	}
	return left, right
}

func TestFMStereoSeparatesChannels(t *testing.T) {
	d, err := New(Config{Mode: ModeFM, Stereo: true, DeviationHz: 75000, DeemphasisUS: -1}, stereoRate)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	if got := d.Config().Channels(); got != 2 {
		t.Fatalf("Channels=%d, want 2", got)
	}

	sig := fmStereoSignal(1000, 75000, stereoRate, 8*8192)
	last, locked := feedBlocks(t, d, sig, 8192)
	if !locked {
		t.Fatalf("demodulator never locked on the stereo carrier")
	}

	testutil.RequireFinite(t, last)
	left, right := deinterleave(t, last)

	lrms := core.RMSReal(left)
	rrms := core.RMSReal(right)

	// The 0.8 tone lives entirely in the left channel once the pilot loop
	// has settled.
	if lrms < 0.3 {
		t.Fatalf("left RMS=%v, want the decoded tone", lrms)
	}
	if rrms > 0.35*lrms {
		t.Fatalf("right RMS=%v vs left %v, want clear channel separation", rrms, lrms)
	}
}

func TestFMStereoFallsBackToMono(t *testing.T) {
	d, err := New(Config{Mode: ModeFM, Stereo: true, DeviationHz: 75000, DeemphasisUS: -1}, stereoRate)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	// No pilot: a plain mono FM carrier must come out identical on both
	// channels instead of decoding noise into L-R.
	sig := testutil.FMTone(1000, 20000, stereoRate, 6*8192)
	last, locked := feedBlocks(t, d, sig, 8192)
	if !locked {
		t.Fatalf("demodulator never locked on the mono carrier")
	}

	left, right := deinterleave(t, last)
	testutil.RequireSliceNearlyEqual(t, right, left, 1e-12)

	if core.RMSReal(left) < 0.05 {
		t.Fatalf("left RMS=%v, want the mono tone to survive", core.RMSReal(left))
	}
}

func TestFMStereoResetClearsPilotLock(t *testing.T) {
	d, err := New(Config{Mode: ModeFM, Stereo: true, DeviationHz: 75000}, stereoRate)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	sig := fmStereoSignal(1000, 75000, stereoRate, 6*8192)
	feedBlocks(t, d, sig, 8192)

	if d.stereo.level < pilotLockThreshold {
		t.Fatalf("precondition: pilot level %v never reached threshold", d.stereo.level)
	}

	d.Reset()

	if d.stereo.level != 0 {
		t.Fatalf("pilot level after reset=%v, want 0", d.stereo.level)
	}
	if d.stereo.freq != d.stereo.nominal {
		t.Fatalf("pilot frequency after reset=%v, want nominal %v", d.stereo.freq, d.stereo.nominal)
	}
}
