package spectrum

import (
	"math"
	"testing"

	"github.com/radiowizard/radiowizard/dsp/window"
	"github.com/radiowizard/radiowizard/internal/testutil"
)

func peakBin(frame []float64) (int, float64) {
	idx, val := 0, math.Inf(-1)
	for i, v := range frame {
		if v > val {
			idx, val = i, v
		}
	}
	return idx, val
}

func TestTonePeakBinAndAmplitude(t *testing.T) {
	const (
		n    = 1024
		rate = 1.024e6
		amp  = 0.5
	)

	for _, wt := range []window.Type{window.TypeHann, window.TypeBlackman, window.TypeFlatTop} {
		p, err := New(Config{FFTSize: n, Window: wt})
		if err != nil {
			t.Fatalf("New error: %v", err)
		}

		// Tone centered on bin 100: f = 100 * rate / n.
		freq := 100 * rate / n
		block := testutil.ComplexTone(freq, rate, amp, n)

		frame, err := p.Process(block)
		if err != nil {
			t.Fatalf("Process error: %v", err)
		}

		// fftshifted: positive bin k lands at n/2 + k.
		wantBin := n/2 + 100
		gotBin, gotDB := peakBin(frame)
		if gotBin != wantBin {
			t.Fatalf("%s: peak bin=%d, want %d", wt, gotBin, wantBin)
		}

		wantDB := 20 * math.Log10(amp)
		tol := window.Info(wt).ScallopLossDB + 0.1
		if math.Abs(gotDB-wantDB) > tol {
			t.Fatalf("%s: peak=%.3f dB, want %.3f dB within %.2f", wt, gotDB, wantDB, tol)
		}
	}
}

func TestOffBinToneWithinScallopLoss(t *testing.T) {
	const (
		n    = 1024
		rate = 1.024e6
	)

	p, err := New(Config{FFTSize: n, Window: window.TypeFlatTop})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	// Worst case: tone exactly halfway between bins 100 and 101.
	freq := 100.5 * rate / n
	block := testutil.ComplexTone(freq, rate, 1.0, n)

	frame, err := p.Process(block)
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}

	_, gotDB := peakBin(frame)
	tol := window.Info(window.TypeFlatTop).ScallopLossDB + 0.1
	if math.Abs(gotDB) > tol {
		t.Fatalf("off-bin peak=%.3f dB, want 0 dB within %.2f (flat-top scallop)", gotDB, tol)
	}
}

func TestAveragingReducesVariance(t *testing.T) {
	const n = 256

	raw, err := New(Config{FFTSize: n, Window: window.TypeHann})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	avg, err := New(Config{FFTSize: n, Window: window.TypeHann, AverageAlpha: 0.9})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	variance := func(p *Processor) float64 {
		bin := n / 4
		var vals []float64
		for i := range 50 {
			block := testutil.ComplexNoise(int64(i+1), 0.1, n)
			frame, err := p.Process(block)
			if err != nil {
				t.Fatalf("Process error: %v", err)
			}
			vals = append(vals, frame[bin])
		}
		// Skip the priming frames.
		vals = vals[10:]
		mean := 0.0
		for _, v := range vals {
			mean += v
		}
		mean /= float64(len(vals))
		sum := 0.0
		for _, v := range vals {
			sum += (v - mean) * (v - mean)
		}
		return sum / float64(len(vals))
	}

	if vr, va := variance(raw), variance(avg); va >= vr {
		t.Fatalf("averaged variance=%.3f not below raw variance=%.3f", va, vr)
	}
}

func TestDCSpikeRemoval(t *testing.T) {
	const n = 512

	p, err := New(Config{FFTSize: n, Window: window.TypeHann, RemoveDCSpike: true})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	// Strong DC offset plus a weak tone.
	block := testutil.ComplexTone(0.1*1e6/float64(n)*64, 1e6, 0.01, n)
	for i := range block {
		block[i] += 0.8
	}

	frame, err := p.Process(block)
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}

	dc := frame[n/2]
	if dc > -20 {
		t.Fatalf("DC bin=%.1f dB, spike not suppressed", dc)
	}
}

func TestZeroPaddingShortBlock(t *testing.T) {
	p, err := New(Config{FFTSize: 256, Window: window.TypeRectangular})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	frame, err := p.Process(make([]complex128, 100))
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}

	if len(frame) != 256 {
		t.Fatalf("frame length=%d, want 256", len(frame))
	}

	for i, v := range frame {
		if v != -150 {
			t.Fatalf("bin %d of silent input=%v, want -150 dB floor", i, v)
		}
	}
}

func TestConfigValidation(t *testing.T) {
	cases := []Config{
		{FFTSize: 0},
		{FFTSize: 1000},
		{FFTSize: 1024, AverageAlpha: 1.0},
		{FFTSize: 1024, AverageAlpha: -0.1},
	}

	for _, cfg := range cases {
		if _, err := New(cfg); err == nil {
			t.Fatalf("expected validation error for %+v", cfg)
		}
	}
}
