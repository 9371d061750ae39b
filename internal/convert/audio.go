// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package convert

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ManuGH/xgtranscode/internal/media"
)

// Samples converts interleaved audio to another sample format.
// When the format already matches, src is returned unchanged.
func Samples(src *media.Frame, dst media.SampleFormat) (*media.Frame, error) {
	if src.SampleFormat == dst {
		return src, nil
	}
	out, err := media.NewAudioFrame(dst, src.SampleRate, src.ChannelLayout, src.NbSamples)
	if err != nil {
		return nil, err
	}
	out.CopyProps(src)
	n := src.NbSamples * src.ChannelLayout.Channels()
	for i := 0; i < n; i++ {
		v, err := ReadSample(src.Data[0], src.SampleFormat, i)
		if err != nil {
			return nil, err
		}
		WriteSample(out.Data[0], dst, i, v)
	}
	return out, nil
}

// ReadSample returns sample i of an interleaved buffer normalised to [-1, 1].
func ReadSample(buf []byte, sf media.SampleFormat, i int) (float64, error) {
	switch sf {
	case media.SampleFormatS16:
		return float64(int16(binary.LittleEndian.Uint16(buf[2*i:]))) / 32768, nil
	case media.SampleFormatFLT:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))), nil
	default:
		return 0, fmt.Errorf("unsupported sample format %q", string(sf))
	}
}

// WriteSample stores a normalised sample, clipping integer formats.
func WriteSample(buf []byte, sf media.SampleFormat, i int, v float64) {
	switch sf {
	case media.SampleFormatS16:
		s := math.Round(v * 32768)
		s = math.Max(-32768, math.Min(32767, s))
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(int16(s)))
	case media.SampleFormatFLT:
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(float32(v)))
	}
}
