package config

import (
	"strings"
	"testing"

	"github.com/radiowizard/radiowizard/dsp/demod"
	"github.com/radiowizard/radiowizard/dsp/window"
)

const sampleYAML = `
server:
  listen_addr: ":8080"
  log_level: debug
  node: rig1
source:
  sample_rate_hz: 1000000
  center_freq_hz: 100300000
  chunk_len: 8192
  synthetic:
    tones:
      - freq_hz: -250000
        amplitude: 0.5
    fm:
      offset_hz: -250000
      audio_hz: 1000
      deviation_hz: 5000
      amplitude: 1.0
    noise_amplitude: 0.001
    noise_seed: 42
pipeline:
  block_len: 8192
  overlap: 0.5
  queue_depth: 16
spectrum:
  fft_size: 8192
  window: blackman
  average_alpha: 0.8
  remove_dc_spike: true
channel:
  offset_hz: -250000
  bandwidth_hz: 12500
  decimation: 40
demod:
  mode: fm
  squelch_db: -70
  deviation_hz: 5000
  output_rate_hz: 12000
`

func TestLoadFromReader(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	st, err := cfg.PipelineState()
	if err != nil {
		t.Fatalf("PipelineState: %v", err)
	}
	if st.Source.SampleRateHz != 1e6 {
		t.Fatalf("sample rate = %v", st.Source.SampleRateHz)
	}
	if st.Spectrum.Window != window.TypeBlackman {
		t.Fatalf("window = %v", st.Spectrum.Window)
	}
	if st.Demod.Mode != demod.ModeFM {
		t.Fatalf("mode = %v", st.Demod.Mode)
	}
	if st.Channel.Decimation != 40 {
		t.Fatalf("decimation = %d", st.Channel.Decimation)
	}
	if st.Demod.OutputRateHz != 12000 {
		t.Fatalf("output rate = %v", st.Demod.OutputRateHz)
	}

	src, err := cfg.SyntheticSource()
	if err != nil {
		t.Fatalf("SyntheticSource: %v", err)
	}
	if len(src.Tones) != 1 || src.FM == nil || !src.Throttle {
		t.Fatalf("synthetic source = %+v", src)
	}
	if cfg.Server.LogLevel.Slog().String() != "DEBUG" {
		t.Fatalf("log level = %v", cfg.Server.LogLevel.Slog())
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	bad := strings.Replace(sampleYAML, "queue_depth:", "que_depth:", 1)
	if _, err := LoadFromReader(strings.NewReader(bad)); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestLoadRejectsBadEnum(t *testing.T) {
	cases := []struct{ old, new string }{
		{"mode: fm", "mode: chorus"},
		{"window: blackman", "window: triangular"},
		{"log_level: debug", "log_level: loud"},
	}
	for _, tc := range cases {
		bad := strings.Replace(sampleYAML, tc.old, tc.new, 1)
		if _, err := LoadFromReader(strings.NewReader(bad)); err == nil {
			t.Fatalf("accepted %q", tc.new)
		}
	}
}

func TestLoadRejectsIncoherentPipeline(t *testing.T) {
	// 1 MHz span cannot hold a channel centered at -499 kHz with 12.5 kHz
	// bandwidth and decimation by 40 once the edge leaves the span.
	bad := strings.Replace(sampleYAML, "offset_hz: -250000\n  bandwidth_hz: 12500", "offset_hz: -499000\n  bandwidth_hz: 12500", 1)
	if _, err := LoadFromReader(strings.NewReader(bad)); err == nil {
		t.Fatal("incoherent channel placement accepted")
	}
}

func TestLoadRejectsStereoOnNarrowChannel(t *testing.T) {
	// Decimation by 40 leaves a 25 kHz channel rate, far too narrow for
	// the 53 kHz stereo composite.
	bad := strings.Replace(sampleYAML, "mode: fm", "mode: fm\n  stereo: true", 1)
	if _, err := LoadFromReader(strings.NewReader(bad)); err == nil {
		t.Fatal("stereo on a narrow channel accepted")
	}
}

func TestDefaultsApplied(t *testing.T) {
	minimal := `
source:
  sample_rate_hz: 48000
pipeline:
  block_len: 500
channel:
  bandwidth_hz: 6000
  decimation: 4
demod: {}
`
	cfg, err := LoadFromReader(strings.NewReader(minimal))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	st, err := cfg.PipelineState()
	if err != nil {
		t.Fatalf("PipelineState: %v", err)
	}
	if st.Spectrum.Window != window.TypeBlackman {
		t.Fatalf("default window = %v", st.Spectrum.Window)
	}
	if st.Spectrum.FFTSize != 512 {
		t.Fatalf("default fft size = %d, want next power of two above the block", st.Spectrum.FFTSize)
	}
	if st.Demod.Mode != demod.ModeFM {
		t.Fatalf("default mode = %v", st.Demod.Mode)
	}
	src, err := cfg.SyntheticSource()
	if err != nil {
		t.Fatalf("SyntheticSource: %v", err)
	}
	if src.ChunkLen != 4096 {
		t.Fatalf("default chunk len = %d", src.ChunkLen)
	}
}
