package window

import (
	"math"
	"testing"
)

func TestGenerateHannEndpoints(t *testing.T) {
	coeffs := Generate(TypeHann, 64)
	if len(coeffs) != 64 {
		t.Fatalf("length mismatch: got %d, want 64", len(coeffs))
	}

	if math.Abs(coeffs[0]) > 1e-12 {
		t.Fatalf("periodic hann first sample should be 0, got %v", coeffs[0])
	}

	// Periodic form: peak at N/2.
	if math.Abs(coeffs[32]-1) > 1e-12 {
		t.Fatalf("hann midpoint should be 1, got %v", coeffs[32])
	}
}

func TestENBWMatchesMetadata(t *testing.T) {
	for _, typ := range []Type{TypeRectangular, TypeHann, TypeHamming, TypeBlackman, TypeBlackmanHarris, TypeFlatTop} {
		coeffs := Generate(typ, 4096)

		enbw, err := EquivalentNoiseBandwidth(coeffs)
		if err != nil {
			t.Fatalf("%s: ENBW error: %v", typ, err)
		}

		want := Info(typ).ENBW
		if math.Abs(enbw-want) > 0.01*want {
			t.Fatalf("%s: ENBW=%v, want ~%v", typ, enbw, want)
		}
	}
}

func TestCoherentGainMatchesMetadata(t *testing.T) {
	for _, typ := range []Type{TypeHann, TypeBlackman, TypeFlatTop} {
		coeffs := Generate(typ, 4096)

		cg, err := CoherentGain(coeffs)
		if err != nil {
			t.Fatalf("%s: CoherentGain error: %v", typ, err)
		}

		want := Info(typ).CoherentGain
		if math.Abs(cg-want) > 1e-3 {
			t.Fatalf("%s: CoherentGain=%v, want ~%v", typ, cg, want)
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, typ := range []Type{TypeRectangular, TypeHann, TypeHamming, TypeBlackman, TypeBlackmanHarris, TypeFlatTop} {
		got, err := Parse(typ.String())
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", typ.String(), err)
		}
		if got != typ {
			t.Fatalf("Parse(%q)=%v, want %v", typ.String(), got, typ)
		}
	}

	if _, err := Parse("bartlett"); err == nil {
		t.Fatalf("expected error for unknown window name")
	}
}

func TestApplyComplex(t *testing.T) {
	buf := []complex128{1 + 1i, 2 + 2i, 3 + 3i, 4 + 4i}
	coeffs := []float64{0, 0.5, 1, 0.5}

	if err := ApplyComplex(buf, coeffs); err != nil {
		t.Fatalf("ApplyComplex error: %v", err)
	}

	if buf[0] != 0 || buf[2] != 3+3i {
		t.Fatalf("unexpected windowed values: %v", buf)
	}

	if math.Abs(real(buf[1])-1) > 1e-12 {
		t.Fatalf("buf[1]=%v, want 1+1i", buf[1])
	}

	if err := ApplyComplex(buf, coeffs[:2]); err == nil {
		t.Fatalf("expected length mismatch error")
	}
}
