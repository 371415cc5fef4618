// Package wire encodes pipeline frames in protobuf wire format.
//
// Messages are hand-encoded with protowire rather than generated code; the
// schemas are small and fixed, and consumers in any language can decode
// them with a stock protobuf runtime. Field numbers are frozen; changing
// one breaks every deployed consumer.
package wire

import (
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/radiowizard/radiowizard/pipeline"
)

// SpectralFrame field numbers.
const (
	specSeq        = 1
	specEpoch      = 2
	specTimestamp  = 3
	specCenterFreq = 4
	specBinSpacing = 5
	specWindow     = 6
	specBins       = 7
)

// OutputFrame field numbers.
const (
	outSeq       = 1
	outEpoch     = 2
	outTimestamp = 3
	outRate      = 4
	outLocked    = 5
	outSamples   = 6
	outChannels  = 7
)

// StatusFrame field numbers.
const (
	statStatus    = 1
	statEpoch     = 2
	statTimestamp = 3
	statCounters  = 4
)

// Counter sub-message field numbers.
const (
	cntBlocksAssembled = 1
	cntBlocksProcessed = 2
	cntOverloadDrops   = 3
	cntDropoutResets   = 4
	cntLockTransitions = 5
	cntSpectrumFrames  = 6
	cntOutputFrames    = 7
	cntSpectrumDrops   = 8
	cntAudioDrops      = 9
	cntStatusDrops     = 10
	cntStageRestart    = 11
)

// Stage restart entry field numbers.
const (
	restartStage = 1
	restartCount = 2
)

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendPackedDoubles(b []byte, num protowire.Number, vs []float64) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(8*len(vs)))
	for _, v := range vs {
		b = protowire.AppendFixed64(b, math.Float64bits(v))
	}
	return b
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// EncodeSpectralFrame serializes f.
func EncodeSpectralFrame(f *pipeline.SpectralFrame) []byte {
	b := make([]byte, 0, 64+8*len(f.BinsDB))
	b = appendVarintField(b, specSeq, f.Seq)
	b = appendVarintField(b, specEpoch, f.Epoch)
	b = appendVarintField(b, specTimestamp, uint64(f.Timestamp.UnixNano()))
	b = appendDouble(b, specCenterFreq, f.CenterFreqHz)
	b = appendDouble(b, specBinSpacing, f.BinSpacingHz)
	b = protowire.AppendTag(b, specWindow, protowire.BytesType)
	b = protowire.AppendString(b, f.Window)
	b = appendPackedDoubles(b, specBins, f.BinsDB)
	return b
}

// DecodeSpectralFrame parses a frame produced by EncodeSpectralFrame.
func DecodeSpectralFrame(b []byte) (*pipeline.SpectralFrame, error) {
	f := &pipeline.SpectralFrame{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case specSeq, specEpoch, specTimestamp:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			switch num {
			case specSeq:
				f.Seq = v
			case specEpoch:
				f.Epoch = v
			case specTimestamp:
				f.Timestamp = time.Unix(0, int64(v))
			}
		case specCenterFreq, specBinSpacing:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			if num == specCenterFreq {
				f.CenterFreqHz = math.Float64frombits(v)
			} else {
				f.BinSpacingHz = math.Float64frombits(v)
			}
		case specWindow:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			f.Window = v
		case specBins:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			bins, err := unpackDoubles(v)
			if err != nil {
				return nil, err
			}
			f.BinsDB = bins
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return f, nil
}

// EncodeOutputFrame serializes f.
func EncodeOutputFrame(f *pipeline.OutputFrame) []byte {
	b := make([]byte, 0, 48+8*len(f.Samples))
	b = appendVarintField(b, outSeq, f.Seq)
	b = appendVarintField(b, outEpoch, f.Epoch)
	b = appendVarintField(b, outTimestamp, uint64(f.Timestamp.UnixNano()))
	b = appendDouble(b, outRate, f.Rate)
	locked := uint64(0)
	if f.Locked {
		locked = 1
	}
	b = appendVarintField(b, outLocked, locked)
	b = appendPackedDoubles(b, outSamples, f.Samples)
	channels := f.Channels
	if channels < 1 {
		channels = 1
	}
	b = appendVarintField(b, outChannels, uint64(channels))
	return b
}

// DecodeOutputFrame parses a frame produced by EncodeOutputFrame.
func DecodeOutputFrame(b []byte) (*pipeline.OutputFrame, error) {
	// Frames from producers predating the channel count are mono.
	f := &pipeline.OutputFrame{Channels: 1}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case outSeq, outEpoch, outTimestamp, outLocked, outChannels:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			switch num {
			case outSeq:
				f.Seq = v
			case outEpoch:
				f.Epoch = v
			case outTimestamp:
				f.Timestamp = time.Unix(0, int64(v))
			case outLocked:
				f.Locked = v != 0
			case outChannels:
				f.Channels = int(v)
			}
		case outRate:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			f.Rate = math.Float64frombits(v)
		case outSamples:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			samples, err := unpackDoubles(v)
			if err != nil {
				return nil, err
			}
			f.Samples = samples
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return f, nil
}

// EncodeStatusFrame serializes f.
func EncodeStatusFrame(f *pipeline.StatusFrame) []byte {
	b := make([]byte, 0, 128)
	b = appendVarintField(b, statStatus, uint64(f.Status))
	b = appendVarintField(b, statEpoch, f.Epoch)
	b = appendVarintField(b, statTimestamp, uint64(f.Timestamp.UnixNano()))

	c := f.Counters
	sub := make([]byte, 0, 96)
	sub = appendVarintField(sub, cntBlocksAssembled, c.BlocksAssembled)
	sub = appendVarintField(sub, cntBlocksProcessed, c.BlocksProcessed)
	sub = appendVarintField(sub, cntOverloadDrops, c.OverloadDrops)
	sub = appendVarintField(sub, cntDropoutResets, c.DropoutResets)
	sub = appendVarintField(sub, cntLockTransitions, c.LockTransitions)
	sub = appendVarintField(sub, cntSpectrumFrames, c.SpectrumFrames)
	sub = appendVarintField(sub, cntOutputFrames, c.OutputFrames)
	sub = appendVarintField(sub, cntSpectrumDrops, c.SpectrumDrops)
	sub = appendVarintField(sub, cntAudioDrops, c.AudioDrops)
	sub = appendVarintField(sub, cntStatusDrops, c.StatusDrops)
	for stage, count := range c.StageRestarts {
		entry := make([]byte, 0, 16)
		entry = protowire.AppendTag(entry, restartStage, protowire.BytesType)
		entry = protowire.AppendString(entry, stage)
		entry = appendVarintField(entry, restartCount, count)
		sub = protowire.AppendTag(sub, cntStageRestart, protowire.BytesType)
		sub = protowire.AppendBytes(sub, entry)
	}

	b = protowire.AppendTag(b, statCounters, protowire.BytesType)
	b = protowire.AppendBytes(b, sub)
	return b
}

// DecodeStatusFrame parses a frame produced by EncodeStatusFrame.
func DecodeStatusFrame(b []byte) (*pipeline.StatusFrame, error) {
	f := &pipeline.StatusFrame{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case statStatus, statEpoch, statTimestamp:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			switch num {
			case statStatus:
				f.Status = pipeline.Status(v)
			case statEpoch:
				f.Epoch = v
			case statTimestamp:
				f.Timestamp = time.Unix(0, int64(v))
			}
		case statCounters:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			counters, err := decodeCounters(v)
			if err != nil {
				return nil, err
			}
			f.Counters = counters
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return f, nil
}

func decodeCounters(b []byte) (pipeline.TelemetrySnapshot, error) {
	var c pipeline.TelemetrySnapshot
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return c, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case cntStageRestart:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return c, protowire.ParseError(n)
			}
			b = b[n:]
			stage, count, err := decodeRestartEntry(v)
			if err != nil {
				return c, err
			}
			if c.StageRestarts == nil {
				c.StageRestarts = make(map[string]uint64)
			}
			c.StageRestarts[stage] = count
		default:
			if typ != protowire.VarintType {
				n := protowire.ConsumeFieldValue(num, typ, b)
				if n < 0 {
					return c, protowire.ParseError(n)
				}
				b = b[n:]
				continue
			}
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return c, protowire.ParseError(n)
			}
			b = b[n:]
			switch num {
			case cntBlocksAssembled:
				c.BlocksAssembled = v
			case cntBlocksProcessed:
				c.BlocksProcessed = v
			case cntOverloadDrops:
				c.OverloadDrops = v
			case cntDropoutResets:
				c.DropoutResets = v
			case cntLockTransitions:
				c.LockTransitions = v
			case cntSpectrumFrames:
				c.SpectrumFrames = v
			case cntOutputFrames:
				c.OutputFrames = v
			case cntSpectrumDrops:
				c.SpectrumDrops = v
			case cntAudioDrops:
				c.AudioDrops = v
			case cntStatusDrops:
				c.StatusDrops = v
			}
		}
	}
	return c, nil
}

func decodeRestartEntry(b []byte) (string, uint64, error) {
	var stage string
	var count uint64
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", 0, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case restartStage:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return "", 0, protowire.ParseError(n)
			}
			b = b[n:]
			stage = v
		case restartCount:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return "", 0, protowire.ParseError(n)
			}
			b = b[n:]
			count = v
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return "", 0, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return stage, count, nil
}

func unpackDoubles(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("wire: packed doubles length %d not a multiple of 8", len(b))
	}
	out := make([]float64, 0, len(b)/8)
	for len(b) > 0 {
		v, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		out = append(out, math.Float64frombits(v))
	}
	return out, nil
}
