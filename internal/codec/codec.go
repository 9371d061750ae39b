// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package codec defines the decoder and encoder contracts of the transcode
// pipeline and ships the built-in codecs.
//
// Both directions use the same send/receive protocol: Submit hands one unit
// of input (nil starts flushing) and Receive pulls at most one unit of
// output. media.NotYet from Submit means output must be drained first;
// media.NotYet from Receive means more input is required; media.End from
// Receive means the codec is fully flushed. Any non-nil error is fatal.
package codec

import (
	"errors"

	"github.com/ManuGH/xgtranscode/internal/media"
)

var (
	// ErrCodecNotFound is returned when no codec is registered for an ID.
	ErrCodecNotFound = errors.New("codec not found")
	// ErrClosed is returned by calls on a closed codec.
	ErrClosed = errors.New("codec closed")
)

// Capabilities advertise optional encoder behaviour.
type Capabilities uint32

const (
	// CapDelay marks encoders that buffer input and must be flushed at end of stream.
	CapDelay Capabilities = 1 << iota
	// CapVariableFrameSize marks audio encoders accepting any samples per frame.
	CapVariableFrameSize
)

// Has reports whether all bits of c2 are set in c.
func (c Capabilities) Has(c2 Capabilities) bool {
	return c&c2 == c2
}

// Decoder turns packets into frames.
type Decoder interface {
	Submit(pkt *media.Packet) (media.Outcome, error)
	Receive() (*media.Frame, media.Outcome, error)
	// TimeBase is the unit of submitted packet and produced frame timestamps.
	TimeBase() media.Rational
	// Parameters are the resolved stream parameters after open.
	Parameters() media.CodecParameters
	Close() error
}

// Encoder turns frames into packets.
type Encoder interface {
	Submit(frame *media.Frame) (media.Outcome, error)
	Receive() (*media.Packet, media.Outcome, error)
	// TimeBase is the unit of submitted frame and produced packet timestamps.
	TimeBase() media.Rational
	// Parameters describe the produced stream, including any extradata.
	Parameters() media.CodecParameters
	Capabilities() Capabilities
	Close() error
}

// DecoderConfig opens a decoder for one input stream.
type DecoderConfig struct {
	Params media.CodecParameters
	// StreamTimeBase is the container time base of the stream, used when
	// the parameters carry no better clock.
	StreamTimeBase media.Rational
}

// EncoderConfig opens an encoder with fully resolved target parameters.
type EncoderConfig struct {
	Params   media.CodecParameters
	TimeBase media.Rational
	// GlobalHeader asks the encoder to publish stream headers as extradata.
	GlobalHeader bool
}

// Descriptor identifies a codec.
type Descriptor struct {
	ID        media.CodecID
	MediaType media.MediaType
	LongName  string
}

// DecoderFactory opens decoders of one codec.
type DecoderFactory struct {
	Descriptor
	New func(cfg DecoderConfig) (Decoder, error)
}

// EncoderFactory opens encoders of one codec.
type EncoderFactory struct {
	Descriptor
	// PixelFormats lists accepted picture formats, preferred first.
	PixelFormats []media.PixelFormat
	// SampleFormats lists accepted sample formats, preferred first.
	SampleFormats []media.SampleFormat
	Capabilities  Capabilities
	New           func(cfg EncoderConfig) (Encoder, error)
}

// decoderTimeBase picks the clock a decoder works in: one tick per sample
// for audio, one tick per frame for video with a known rate, otherwise the
// container clock.
func decoderTimeBase(p media.CodecParameters, stream media.Rational) media.Rational {
	switch {
	case p.MediaType == media.MediaTypeAudio && p.SampleRate > 0:
		return media.R(1, p.SampleRate)
	case p.MediaType == media.MediaTypeVideo && p.FrameRate.Valid():
		return p.FrameRate.Invert().Reduce()
	default:
		return stream
	}
}
