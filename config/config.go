// Package config provides the YAML configuration schema and loader for the
// radiowizard daemon.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/radiowizard/radiowizard/dsp/channel"
	"github.com/radiowizard/radiowizard/dsp/core"
	"github.com/radiowizard/radiowizard/dsp/demod"
	"github.com/radiowizard/radiowizard/dsp/spectrum"
	"github.com/radiowizard/radiowizard/dsp/window"
	"github.com/radiowizard/radiowizard/pipeline"
	"github.com/radiowizard/radiowizard/source"
)

// LogLevel controls log verbosity for the daemon.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog maps l onto the slog level scale. An empty level means info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration structure, typically loaded from a YAML
// file with [Load].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Source   SourceConfig   `yaml:"source"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Spectrum SpectrumConfig `yaml:"spectrum"`
	Channel  ChannelConfig  `yaml:"channel"`
	Demod    DemodConfig    `yaml:"demod"`
}

// ServerConfig holds network, logging, and identity settings.
type ServerConfig struct {
	// ListenAddr is the TCP address serving websocket streams and
	// metrics (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// Node namespaces published topics so several receivers can share
	// one fabric. Empty publishes bare topic names.
	Node string `yaml:"node"`
}

// SourceConfig describes the sample stream.
type SourceConfig struct {
	SampleRateHz float64 `yaml:"sample_rate_hz"`
	CenterFreqHz float64 `yaml:"center_freq_hz"`

	// ChunkLen is the samples per source read. Zero selects 4096.
	ChunkLen int `yaml:"chunk_len"`

	Synthetic SyntheticConfig `yaml:"synthetic"`
}

// SyntheticConfig describes the generated test signal.
type SyntheticConfig struct {
	Tones          []ToneConfig `yaml:"tones"`
	FM             *FMConfig    `yaml:"fm"`
	NoiseAmplitude float64      `yaml:"noise_amplitude"`
	NoiseSeed      int64        `yaml:"noise_seed"`
}

// ToneConfig is one unmodulated carrier in the synthetic signal.
type ToneConfig struct {
	FreqHz    float64 `yaml:"freq_hz"`
	Amplitude float64 `yaml:"amplitude"`
}

// FMConfig is an FM test carrier in the synthetic signal.
type FMConfig struct {
	OffsetHz    float64 `yaml:"offset_hz"`
	AudioHz     float64 `yaml:"audio_hz"`
	DeviationHz float64 `yaml:"deviation_hz"`
	Amplitude   float64 `yaml:"amplitude"`
}

// PipelineConfig holds frame assembly and queueing settings.
type PipelineConfig struct {
	BlockLen   int     `yaml:"block_len"`
	Overlap    float64 `yaml:"overlap"`
	QueueDepth int     `yaml:"queue_depth"`
}

// SpectrumConfig holds spectral estimation settings.
type SpectrumConfig struct {
	// FFTSize is the transform length. Zero selects the smallest power of
	// two holding one assembled block.
	FFTSize int `yaml:"fft_size"`

	// Window names the analysis window: rectangular, hann, hamming,
	// blackman, blackman-harris, or flat-top.
	Window string `yaml:"window"`

	// AverageAlpha is the exponential averaging weight on the previous
	// spectrum, in [0, 1). Zero disables averaging.
	AverageAlpha float64 `yaml:"average_alpha"`

	RemoveDCSpike bool `yaml:"remove_dc_spike"`
}

// ChannelConfig holds channel isolation settings.
type ChannelConfig struct {
	OffsetHz     float64 `yaml:"offset_hz"`
	BandwidthHz  float64 `yaml:"bandwidth_hz"`
	Decimation   int     `yaml:"decimation"`
	TransitionHz float64 `yaml:"transition_hz"`
	StopbandDB   float64 `yaml:"stopband_db"`
}

// DemodConfig holds demodulation settings.
type DemodConfig struct {
	// Mode is one of am, fm, ssb, digital.
	Mode string `yaml:"mode"`

	SquelchDB    float64 `yaml:"squelch_db"`
	DwellBlocks  int     `yaml:"dwell_blocks"`
	HoldBlocks   int     `yaml:"hold_blocks"`
	DeviationHz  float64 `yaml:"deviation_hz"`
	DeemphasisUS float64 `yaml:"deemphasis_us"`

	// Sideband is "usb" or "lsb" (SSB mode only).
	Sideband string `yaml:"sideband"`

	SymbolRateHz float64 `yaml:"symbol_rate_hz"`

	// OutputRateHz resamples audio output to a fixed rate. Zero emits at
	// the channel rate.
	OutputRateHz float64 `yaml:"output_rate_hz"`

	// Stereo enables FM broadcast stereo decoding.
	Stereo bool `yaml:"stereo"`
}

// Load reads and validates the YAML configuration file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration as a whole by building the pipeline
// state it describes.
func (c *Config) Validate() error {
	if c.Server.LogLevel != "" && !c.Server.LogLevel.IsValid() {
		return fmt.Errorf("config: server.log_level %q is invalid; valid values: debug, info, warn, error", c.Server.LogLevel)
	}
	if _, err := c.PipelineState(); err != nil {
		return err
	}
	if _, err := c.SyntheticSource(); err != nil {
		return err
	}
	return nil
}

// PipelineState converts the configuration into a validated
// pipeline.State.
func (c *Config) PipelineState() (pipeline.State, error) {
	win := window.TypeBlackman
	if c.Spectrum.Window != "" {
		var err error
		win, err = window.Parse(c.Spectrum.Window)
		if err != nil {
			return pipeline.State{}, fmt.Errorf("config: spectrum.window: %w", err)
		}
	}

	mode := demod.ModeFM
	if c.Demod.Mode != "" {
		var err error
		mode, err = demod.ParseMode(c.Demod.Mode)
		if err != nil {
			return pipeline.State{}, fmt.Errorf("config: demod.mode: %w", err)
		}
	}
	sideband := demod.SidebandUpper
	switch c.Demod.Sideband {
	case "", "usb":
	case "lsb":
		sideband = demod.SidebandLower
	default:
		return pipeline.State{}, fmt.Errorf("config: demod.sideband %q is invalid; valid values: usb, lsb", c.Demod.Sideband)
	}

	fftSize := c.Spectrum.FFTSize
	if fftSize == 0 {
		fftSize = core.NextPowerOf2(c.Pipeline.BlockLen)
	}

	st := pipeline.State{
		Source: pipeline.SourceConfig{
			SampleRateHz: c.Source.SampleRateHz,
			CenterFreqHz: c.Source.CenterFreqHz,
		},
		Assembler: pipeline.AssemblerConfig{
			BlockLen:   c.Pipeline.BlockLen,
			Overlap:    c.Pipeline.Overlap,
			QueueDepth: c.Pipeline.QueueDepth,
		},
		Spectrum: spectrum.Config{
			FFTSize:       fftSize,
			Window:        win,
			AverageAlpha:  c.Spectrum.AverageAlpha,
			RemoveDCSpike: c.Spectrum.RemoveDCSpike,
		},
		Channel: channel.Config{
			CenterOffsetHz: c.Channel.OffsetHz,
			BandwidthHz:    c.Channel.BandwidthHz,
			Decimation:     c.Channel.Decimation,
			TransitionHz:   c.Channel.TransitionHz,
			StopbandDB:     c.Channel.StopbandDB,
		},
		Demod: demod.Config{
			Mode:         mode,
			SquelchDB:    c.Demod.SquelchDB,
			DwellBlocks:  c.Demod.DwellBlocks,
			HoldBlocks:   c.Demod.HoldBlocks,
			DeviationHz:  c.Demod.DeviationHz,
			DeemphasisUS: c.Demod.DeemphasisUS,
			SSBSideband:  sideband,
			SymbolRateHz: c.Demod.SymbolRateHz,
			OutputRateHz: c.Demod.OutputRateHz,
			Stereo:       c.Demod.Stereo,
		},
	}
	if err := st.Validate(); err != nil {
		return pipeline.State{}, fmt.Errorf("config: %w", err)
	}
	return st, nil
}

// SyntheticSource converts the source section into a source.SyntheticConfig
// with real-time pacing enabled.
func (c *Config) SyntheticSource() (source.SyntheticConfig, error) {
	chunk := c.Source.ChunkLen
	if chunk == 0 {
		chunk = 4096
	}
	cfg := source.SyntheticConfig{
		SampleRateHz:   c.Source.SampleRateHz,
		ChunkLen:       chunk,
		NoiseAmplitude: c.Source.Synthetic.NoiseAmplitude,
		NoiseSeed:      c.Source.Synthetic.NoiseSeed,
		Throttle:       true,
	}
	for _, t := range c.Source.Synthetic.Tones {
		cfg.Tones = append(cfg.Tones, source.Tone{FreqHz: t.FreqHz, Amplitude: t.Amplitude})
	}
	if fm := c.Source.Synthetic.FM; fm != nil {
		cfg.FM = &source.FMCarrier{
			OffsetHz:    fm.OffsetHz,
			AudioHz:     fm.AudioHz,
			DeviationHz: fm.DeviationHz,
			Amplitude:   fm.Amplitude,
		}
	}
	if _, err := source.NewSynthetic(cfg); err != nil {
		return source.SyntheticConfig{}, err
	}
	return cfg, nil
}
