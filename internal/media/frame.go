// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"bytes"
	"fmt"
)

// strideAlign is the row alignment used when allocating picture planes.
const strideAlign = 16

// Frame is one uncompressed picture or block of audio samples.
//
// Video planes are stored with Linesize[i] >= the packed row width, so
// consumers must walk rows by stride. Audio is interleaved in Data[0].
type Frame struct {
	MediaType MediaType

	PTS                 int64
	BestEffortTimestamp int64
	PacketDTS           int64
	Duration            int64

	Data     [][]byte
	Linesize []int

	// Video
	Width             int
	Height            int
	PixelFormat       PixelFormat
	SampleAspectRatio Rational
	PictureType       PictureType
	KeyFrame          bool

	// Audio
	SampleFormat  SampleFormat
	SampleRate    int
	ChannelLayout ChannelLayout
	NbSamples     int
}

// NewVideoFrame allocates a picture with aligned row strides.
func NewVideoFrame(pf PixelFormat, w, h int) (*Frame, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid picture size %dx%d", w, h)
	}
	planes, err := pf.Planes(w, h)
	if err != nil {
		return nil, err
	}
	f := &Frame{
		MediaType:           MediaTypeVideo,
		PTS:                 NoPTS,
		BestEffortTimestamp: NoPTS,
		PacketDTS:           NoPTS,
		Width:               w,
		Height:              h,
		PixelFormat:         pf,
		Data:                make([][]byte, len(planes)),
		Linesize:            make([]int, len(planes)),
	}
	for i, p := range planes {
		stride := alignUp(p.RowBytes(), strideAlign)
		f.Linesize[i] = stride
		f.Data[i] = make([]byte, stride*p.Height)
	}
	return f, nil
}

// NewAudioFrame allocates an interleaved sample buffer.
func NewAudioFrame(sf SampleFormat, rate int, layout ChannelLayout, nbSamples int) (*Frame, error) {
	bps := sf.BytesPerSample()
	if bps == 0 {
		return nil, fmt.Errorf("unsupported sample format %q", string(sf))
	}
	ch := layout.Channels()
	if ch == 0 {
		return nil, fmt.Errorf("channel layout %s has no channels", layout)
	}
	size := nbSamples * ch * bps
	return &Frame{
		MediaType:           MediaTypeAudio,
		PTS:                 NoPTS,
		BestEffortTimestamp: NoPTS,
		PacketDTS:           NoPTS,
		SampleFormat:        sf,
		SampleRate:          rate,
		ChannelLayout:       layout,
		NbSamples:           nbSamples,
		Data:                [][]byte{make([]byte, size)},
		Linesize:            []int{size},
	}, nil
}

// CopyProps copies timing and descriptive fields, but not sample data.
func (f *Frame) CopyProps(src *Frame) {
	f.PTS = src.PTS
	f.BestEffortTimestamp = src.BestEffortTimestamp
	f.PacketDTS = src.PacketDTS
	f.Duration = src.Duration
	f.SampleAspectRatio = src.SampleAspectRatio
	f.PictureType = src.PictureType
	f.KeyFrame = src.KeyFrame
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	out := *f
	out.Data = make([][]byte, len(f.Data))
	for i, d := range f.Data {
		out.Data[i] = bytes.Clone(d)
	}
	out.Linesize = append([]int(nil), f.Linesize...)
	return &out
}

// Unref drops the sample buffers.
func (f *Frame) Unref() {
	f.Data = nil
	f.Linesize = nil
}

// Pack returns the picture or samples as one tightly packed buffer.
func (f *Frame) Pack() ([]byte, error) {
	if f.MediaType == MediaTypeAudio {
		n := f.NbSamples * f.ChannelLayout.Channels() * f.SampleFormat.BytesPerSample()
		if len(f.Data) == 0 || len(f.Data[0]) < n {
			return nil, fmt.Errorf("audio frame holds fewer than %d bytes", n)
		}
		return bytes.Clone(f.Data[0][:n]), nil
	}
	planes, err := f.PixelFormat.Planes(f.Width, f.Height)
	if err != nil {
		return nil, err
	}
	if len(f.Data) < len(planes) {
		return nil, fmt.Errorf("%s frame has %d planes, want %d", f.PixelFormat, len(f.Data), len(planes))
	}
	size, _ := f.PixelFormat.FrameSize(f.Width, f.Height)
	out := make([]byte, 0, size)
	for i, p := range planes {
		row := p.RowBytes()
		for y := 0; y < p.Height; y++ {
			off := y * f.Linesize[i]
			out = append(out, f.Data[i][off:off+row]...)
		}
	}
	return out, nil
}

// Unpack fills a freshly allocated picture from a packed buffer produced by Pack.
func (f *Frame) Unpack(b []byte) error {
	planes, err := f.PixelFormat.Planes(f.Width, f.Height)
	if err != nil {
		return err
	}
	size, _ := f.PixelFormat.FrameSize(f.Width, f.Height)
	if len(b) != size {
		return fmt.Errorf("payload is %d bytes, %s %dx%d needs %d", len(b), f.PixelFormat, f.Width, f.Height, size)
	}
	for i, p := range planes {
		row := p.RowBytes()
		for y := 0; y < p.Height; y++ {
			copy(f.Data[i][y*f.Linesize[i]:], b[:row])
			b = b[row:]
		}
	}
	return nil
}

func alignUp(v, a int) int {
	return (v + a - 1) / a * a
}
