// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import "bytes"

// CodecParameters describe an encoded elementary stream.
type CodecParameters struct {
	MediaType MediaType
	CodecID   CodecID
	BitRate   int64
	ExtraData []byte

	// Video
	Width             int
	Height            int
	PixelFormat       PixelFormat
	SampleAspectRatio Rational
	FrameRate         Rational

	// Audio
	SampleFormat  SampleFormat
	SampleRate    int
	Channels      int
	ChannelLayout ChannelLayout
	FrameSize     int // samples per packet, 0 when unconstrained
}

// Clone returns a deep copy.
func (p CodecParameters) Clone() CodecParameters {
	out := p
	if p.ExtraData != nil {
		out.ExtraData = bytes.Clone(p.ExtraData)
	}
	return out
}

// ResolveChannels fills whichever of Channels or ChannelLayout is missing.
func (p *CodecParameters) ResolveChannels() {
	switch {
	case p.ChannelLayout == 0 && p.Channels > 0:
		p.ChannelLayout = DefaultChannelLayout(p.Channels)
	case p.Channels == 0 && p.ChannelLayout != 0:
		p.Channels = p.ChannelLayout.Channels()
	}
}

// StreamDescriptor is what a container knows about one of its streams.
type StreamDescriptor struct {
	Index    int
	TimeBase Rational
	Params   CodecParameters
}

// Clone returns a deep copy.
func (s StreamDescriptor) Clone() StreamDescriptor {
	s.Params = s.Params.Clone()
	return s
}
