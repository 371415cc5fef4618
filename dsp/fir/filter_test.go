package fir

import (
	"math"
	"math/cmplx"
	"testing"
)

// response evaluates |H(f)| at normalized frequency f for real coefficients.
func response(coeffs []float64, f float64) float64 {
	var h complex128
	w := 2 * math.Pi * f
	for k, c := range coeffs {
		h += complex(c, 0) * cmplx.Exp(complex(0, -w*float64(k)))
	}
	return cmplx.Abs(h)
}

func TestLowpassResponse(t *testing.T) {
	h, err := Lowpass(0.1, 101, 7.0)
	if err != nil {
		t.Fatalf("Lowpass error: %v", err)
	}

	if got := response(h, 0); math.Abs(got-1) > 1e-9 {
		t.Fatalf("DC gain=%v, want 1", got)
	}

	// Passband within 1 dB.
	if got := response(h, 0.05); got < 0.89 {
		t.Fatalf("passband gain at 0.05=%v, want > 0.89", got)
	}

	// Stopband well attenuated.
	if got := response(h, 0.25); got > 0.01 {
		t.Fatalf("stopband gain at 0.25=%v, want < 0.01", got)
	}
}

func TestLowpassValidation(t *testing.T) {
	if _, err := Lowpass(0, 31, 5); err == nil {
		t.Fatalf("expected error for zero cutoff")
	}
	if _, err := Lowpass(0.6, 31, 5); err == nil {
		t.Fatalf("expected error for cutoff beyond Nyquist")
	}
	if _, err := Lowpass(0.1, 0, 5); err == nil {
		t.Fatalf("expected error for zero taps")
	}
}

func TestKaiserOrder(t *testing.T) {
	taps, beta, err := KaiserOrder(60, 0.05)
	if err != nil {
		t.Fatalf("KaiserOrder error: %v", err)
	}

	if taps%2 == 0 {
		t.Fatalf("tap count should be odd, got %d", taps)
	}

	if taps < 30 || taps > 120 {
		t.Fatalf("taps=%d outside plausible range for 60 dB / 0.05 transition", taps)
	}

	if beta < 5 || beta > 6.5 {
		t.Fatalf("beta=%v outside expected range for 60 dB", beta)
	}
}

func TestFilterImpulseResponse(t *testing.T) {
	coeffs := []float64{0.25, 0.5, 0.25}

	f, err := New(coeffs)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	in := []complex128{1, 0, 0, 0}
	f.ProcessBlock(in)

	want := []complex128{0.25, 0.5, 0.25, 0}
	for i := range want {
		if cmplx.Abs(in[i]-want[i]) > 1e-12 {
			t.Fatalf("impulse response[%d]=%v, want %v", i, in[i], want[i])
		}
	}
}

func TestFilterStatePersistsAcrossBlocks(t *testing.T) {
	coeffs := []float64{0.5, 0.5}

	chunked, _ := New(coeffs)
	whole, _ := New(coeffs)

	in := []complex128{1 + 1i, 2, 3 - 1i, 4, 5, 6 + 2i}

	got := make([]complex128, 0, len(in))
	for _, x := range in[:3] {
		got = append(got, chunked.ProcessSample(x))
	}
	for _, x := range in[3:] {
		got = append(got, chunked.ProcessSample(x))
	}

	want := make([]complex128, 0, len(in))
	for _, x := range in {
		want = append(want, whole.ProcessSample(x))
	}

	for i := range want {
		if cmplx.Abs(got[i]-want[i]) > 1e-12 {
			t.Fatalf("chunked[%d]=%v, want %v", i, got[i], want[i])
		}
	}
}

func TestProcessDecimatePhaseContinuity(t *testing.T) {
	h, _ := Lowpass(0.1, 31, 5)

	full, _ := New(h)
	split, _ := New(h)

	in := make([]complex128, 100)
	for i := range in {
		in[i] = complex(math.Sin(0.1*float64(i)), 0)
	}

	phase := 0
	want := full.ProcessDecimate(nil, in, 4, &phase)

	phase2 := 0
	got := split.ProcessDecimate(nil, in[:37], 4, &phase2)
	got = split.ProcessDecimate(got, in[37:], 4, &phase2)

	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}

	for i := range want {
		if cmplx.Abs(got[i]-want[i]) > 1e-12 {
			t.Fatalf("decimated[%d]=%v, want %v", i, got[i], want[i])
		}
	}
}

func TestReset(t *testing.T) {
	f, _ := New([]float64{0.5, 0.5})

	f.ProcessSample(10)
	f.Reset()

	if got := f.ProcessSample(0); got != 0 {
		t.Fatalf("output after reset=%v, want 0", got)
	}
}
