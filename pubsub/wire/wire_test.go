package wire

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/radiowizard/radiowizard/pipeline"
)

func TestSpectralFrameRoundTrip(t *testing.T) {
	in := &pipeline.SpectralFrame{
		BinsDB:       []float64{-150, -87.5, 0, -3.25},
		CenterFreqHz: 100.3e6,
		BinSpacingHz: 93.75,
		Window:       "blackman",
		Seq:          12345,
		Epoch:        3,
		Timestamp:    time.Unix(1700000000, 123456789),
	}
	out, err := DecodeSpectralFrame(EncodeSpectralFrame(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Timestamp.Equal(in.Timestamp) {
		t.Fatalf("timestamp = %v, want %v", out.Timestamp, in.Timestamp)
	}
	out.Timestamp = in.Timestamp
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch:\n in %+v\nout %+v", in, out)
	}
}

func TestOutputFrameRoundTrip(t *testing.T) {
	in := &pipeline.OutputFrame{
		Samples:   []float64{0.5, -0.25, math.Pi, 0.125},
		Rate:      48000,
		Channels:  2,
		Seq:       7,
		Epoch:     2,
		Timestamp: time.Unix(1700000001, 0),
		Locked:    true,
	}
	out, err := DecodeOutputFrame(EncodeOutputFrame(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Timestamp.Equal(in.Timestamp) {
		t.Fatalf("timestamp = %v, want %v", out.Timestamp, in.Timestamp)
	}
	out.Timestamp = in.Timestamp
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch:\n in %+v\nout %+v", in, out)
	}
}

func TestOutputFrameChannelCountDefaultsToMono(t *testing.T) {
	b := EncodeOutputFrame(&pipeline.OutputFrame{Samples: []float64{1, 2}, Rate: 8000})
	out, err := DecodeOutputFrame(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Channels != 1 {
		t.Fatalf("channels = %d, want 1 for an unmarked frame", out.Channels)
	}
}

func TestStatusFrameRoundTrip(t *testing.T) {
	in := &pipeline.StatusFrame{
		Status: pipeline.StatusFaulted,
		Epoch:  9,
		Counters: pipeline.TelemetrySnapshot{
			BlocksAssembled: 1000,
			BlocksProcessed: 990,
			OverloadDrops:   10,
			DropoutResets:   1,
			LockTransitions: 4,
			SpectrumFrames:  990,
			OutputFrames:    990,
			StageRestarts:   map[string]uint64{"spectrum": 2, "channel": 1},
		},
		Timestamp: time.Unix(1700000002, 500),
	}
	out, err := DecodeStatusFrame(EncodeStatusFrame(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Status != in.Status || out.Epoch != in.Epoch {
		t.Fatalf("header mismatch: %+v", out)
	}
	if !out.Timestamp.Equal(in.Timestamp) {
		t.Fatalf("timestamp = %v, want %v", out.Timestamp, in.Timestamp)
	}
	if !reflect.DeepEqual(in.Counters, out.Counters) {
		t.Fatalf("counters mismatch:\n in %+v\nout %+v", in.Counters, out.Counters)
	}
}

func TestDecodeRejectsTruncatedPackedDoubles(t *testing.T) {
	b := EncodeSpectralFrame(&pipeline.SpectralFrame{BinsDB: []float64{1, 2, 3}})
	// Chop mid-double.
	if _, err := DecodeSpectralFrame(b[:len(b)-3]); err == nil {
		t.Fatal("truncated frame decoded without error")
	}
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	// A frame from a newer producer carries fields this decoder does not
	// know; they must be skipped, not rejected.
	b := EncodeOutputFrame(&pipeline.OutputFrame{Samples: []float64{1}, Rate: 8000})
	b = append(b, 0xF8, 0x01, 0x2A) // field 31, varint 42
	out, err := DecodeOutputFrame(b)
	if err != nil {
		t.Fatalf("decode with unknown field: %v", err)
	}
	if out.Rate != 8000 {
		t.Fatalf("rate = %v", out.Rate)
	}
}
