// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"fmt"
	"math/bits"
	"strings"
)

// MediaType classifies an elementary stream.
type MediaType string

const (
	MediaTypeUnknown  MediaType = "unknown"
	MediaTypeVideo    MediaType = "video"
	MediaTypeAudio    MediaType = "audio"
	MediaTypeSubtitle MediaType = "subtitle"
	MediaTypeData     MediaType = "data"
)

// Transcodable reports whether streams of this type run through the
// decode/filter/encode chain. Everything else is copied.
func (m MediaType) Transcodable() bool {
	return m == MediaTypeVideo || m == MediaTypeAudio
}

// ParseMediaType maps a stored name back to a MediaType.
func ParseMediaType(s string) MediaType {
	switch MediaType(strings.ToLower(s)) {
	case MediaTypeVideo:
		return MediaTypeVideo
	case MediaTypeAudio:
		return MediaTypeAudio
	case MediaTypeSubtitle:
		return MediaTypeSubtitle
	case MediaTypeData:
		return MediaTypeData
	default:
		return MediaTypeUnknown
	}
}

// CodecID names a codec, e.g. "rawvideo" or "pcm_s16le".
type CodecID string

// PixelFormat names a raw picture layout.
type PixelFormat string

const (
	PixelFormatNone    PixelFormat = ""
	PixelFormatGray    PixelFormat = "gray"
	PixelFormatRGB24   PixelFormat = "rgb24"
	PixelFormatYUV420P PixelFormat = "yuv420p"
	PixelFormatYUV444P PixelFormat = "yuv444p"
)

// PlaneLayout describes one plane of a picture.
type PlaneLayout struct {
	Width         int // pixels per row
	Height        int // rows
	BytesPerPixel int
}

// RowBytes is the tightly packed byte width of one row.
func (p PlaneLayout) RowBytes() int {
	return p.Width * p.BytesPerPixel
}

// Planes returns the plane layouts of a w x h picture, or an error for an
// unsupported format.
func (f PixelFormat) Planes(w, h int) ([]PlaneLayout, error) {
	switch f {
	case PixelFormatGray:
		return []PlaneLayout{{w, h, 1}}, nil
	case PixelFormatRGB24:
		return []PlaneLayout{{w, h, 3}}, nil
	case PixelFormatYUV444P:
		return []PlaneLayout{{w, h, 1}, {w, h, 1}, {w, h, 1}}, nil
	case PixelFormatYUV420P:
		cw, ch := (w+1)/2, (h+1)/2
		return []PlaneLayout{{w, h, 1}, {cw, ch, 1}, {cw, ch, 1}}, nil
	default:
		return nil, fmt.Errorf("unsupported pixel format %q", string(f))
	}
}

// FrameSize is the packed byte size of a w x h picture.
func (f PixelFormat) FrameSize(w, h int) (int, error) {
	planes, err := f.Planes(w, h)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range planes {
		n += p.RowBytes() * p.Height
	}
	return n, nil
}

// Supported reports whether the format is known to this package.
func (f PixelFormat) Supported() bool {
	_, err := f.Planes(1, 1)
	return err == nil
}

// SampleFormat names an interleaved PCM sample layout.
type SampleFormat string

const (
	SampleFormatNone SampleFormat = ""
	SampleFormatS16  SampleFormat = "s16"
	SampleFormatFLT  SampleFormat = "flt"
)

// BytesPerSample returns the width of one sample of one channel.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case SampleFormatS16:
		return 2
	case SampleFormatFLT:
		return 4
	default:
		return 0
	}
}

// ChannelLayout is a bitmask of speaker positions.
type ChannelLayout uint64

const (
	ChannelFrontLeft    ChannelLayout = 1 << 0
	ChannelFrontRight   ChannelLayout = 1 << 1
	ChannelFrontCenter  ChannelLayout = 1 << 2
	ChannelLowFrequency ChannelLayout = 1 << 3
	ChannelBackLeft     ChannelLayout = 1 << 4
	ChannelBackRight    ChannelLayout = 1 << 5

	LayoutMono       = ChannelFrontCenter
	LayoutStereo     = ChannelFrontLeft | ChannelFrontRight
	Layout2Point1    = LayoutStereo | ChannelLowFrequency
	LayoutSurround   = LayoutStereo | ChannelFrontCenter
	LayoutQuad       = LayoutStereo | ChannelBackLeft | ChannelBackRight
	Layout5Point1    = LayoutSurround | ChannelLowFrequency | ChannelBackLeft | ChannelBackRight
	layoutUnsetValue = ChannelLayout(0)
)

// Channels is the number of speaker positions in the layout.
func (l ChannelLayout) Channels() int {
	return bits.OnesCount64(uint64(l))
}

func (l ChannelLayout) String() string {
	switch l {
	case layoutUnsetValue:
		return "unset"
	case LayoutMono:
		return "mono"
	case LayoutStereo:
		return "stereo"
	case Layout2Point1:
		return "2.1"
	case LayoutSurround:
		return "3.0"
	case LayoutQuad:
		return "quad"
	case Layout5Point1:
		return "5.1"
	default:
		return fmt.Sprintf("0x%x", uint64(l))
	}
}

// DefaultChannelLayout picks the conventional layout for a channel count.
func DefaultChannelLayout(channels int) ChannelLayout {
	switch channels {
	case 1:
		return LayoutMono
	case 2:
		return LayoutStereo
	case 3:
		return LayoutSurround
	case 4:
		return LayoutQuad
	case 6:
		return Layout5Point1
	default:
		if channels <= 0 || channels > 64 {
			return layoutUnsetValue
		}
		return ChannelLayout(uint64(1)<<uint(channels) - 1)
	}
}

// PictureType is the coding type hint carried by a decoded picture.
type PictureType uint8

const (
	PictureNone PictureType = iota
	PictureI
	PictureP
	PictureB
)

func (p PictureType) String() string {
	switch p {
	case PictureI:
		return "I"
	case PictureP:
		return "P"
	case PictureB:
		return "B"
	default:
		return "-"
	}
}
