// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package codec

import (
	"fmt"

	"github.com/ManuGH/xgtranscode/internal/media"
)

const (
	PCMS16LE media.CodecID = "pcm_s16le"
	PCMF32LE media.CodecID = "pcm_f32le"
)

// DefaultAudioFrameSize is the packet size in samples used when the target
// parameters do not carry one.
const DefaultAudioFrameSize = 1024

type pcmCodec struct {
	id     media.CodecID
	format media.SampleFormat
	name   string
}

var (
	pcmS16LE = pcmCodec{PCMS16LE, media.SampleFormatS16, "PCM signed 16-bit little-endian"}
	pcmF32LE = pcmCodec{PCMF32LE, media.SampleFormatFLT, "PCM 32-bit floating point little-endian"}
)

func registerPCM(r *Registry, c pcmCodec) {
	desc := Descriptor{ID: c.id, MediaType: media.MediaTypeAudio, LongName: c.name}
	r.RegisterDecoder(DecoderFactory{
		Descriptor: desc,
		New:        func(cfg DecoderConfig) (Decoder, error) { return newPCMDecoder(c, cfg) },
	})
	r.RegisterEncoder(EncoderFactory{
		Descriptor:    desc,
		SampleFormats: []media.SampleFormat{c.format},
		Capabilities:  CapDelay,
		New:           func(cfg EncoderConfig) (Encoder, error) { return newPCMEncoder(c, cfg) },
	})
}

func newPCMDecoder(c pcmCodec, cfg DecoderConfig) (Decoder, error) {
	cfg.Params.ResolveChannels()
	cfg.Params.SampleFormat = c.format
	p := cfg.Params
	if p.SampleRate <= 0 || p.Channels <= 0 {
		return nil, fmt.Errorf("%s: invalid audio parameters rate=%d channels=%d", c.id, p.SampleRate, p.Channels)
	}
	if p.ChannelLayout.Channels() != p.Channels {
		return nil, fmt.Errorf("%s: layout %s does not carry %d channels", c.id, p.ChannelLayout, p.Channels)
	}
	block := p.Channels * c.format.BytesPerSample()
	return newQueuedDecoder(cfg, func(pkt *media.Packet) ([]*media.Frame, error) {
		if len(pkt.Data)%block != 0 {
			return nil, fmt.Errorf("payload of %d bytes is not a multiple of %d", len(pkt.Data), block)
		}
		n := len(pkt.Data) / block
		f, err := media.NewAudioFrame(c.format, p.SampleRate, p.ChannelLayout, n)
		if err != nil {
			return nil, err
		}
		copy(f.Data[0], pkt.Data)
		f.Duration = int64(n)
		return []*media.Frame{f}, nil
	}), nil
}

// pcmEncoder re-chunks incoming samples into packets of exactly frameSize
// samples. The remainder is emitted when flushed.
type pcmEncoder struct {
	codec     pcmCodec
	params    media.CodecParameters
	frameSize int
	block     int
	buf       []byte
	nextPTS   int64
	tb        media.Rational
}

func newPCMEncoder(c pcmCodec, cfg EncoderConfig) (Encoder, error) {
	p := cfg.Params.Clone()
	p.MediaType = media.MediaTypeAudio
	p.CodecID = c.id
	p.ResolveChannels()
	if p.SampleFormat != c.format {
		return nil, fmt.Errorf("%s: sample format %q not supported, want %q", c.id, string(p.SampleFormat), string(c.format))
	}
	if p.SampleRate <= 0 || p.Channels <= 0 {
		return nil, fmt.Errorf("%s: invalid audio parameters rate=%d channels=%d", c.id, p.SampleRate, p.Channels)
	}
	if !cfg.TimeBase.Valid() {
		return nil, fmt.Errorf("%s: invalid time base %s", c.id, cfg.TimeBase)
	}
	if p.FrameSize <= 0 {
		p.FrameSize = DefaultAudioFrameSize
	}
	p.BitRate = int64(p.SampleRate * p.Channels * c.format.BytesPerSample() * 8)
	e := &pcmEncoder{
		codec:     c,
		params:    p,
		frameSize: p.FrameSize,
		block:     p.Channels * c.format.BytesPerSample(),
		nextPTS:   media.NoPTS,
		tb:        cfg.TimeBase,
	}
	return &queuedEncoder{
		tb:     cfg.TimeBase,
		params: p,
		caps:   CapDelay,
		encode: e.encode,
		flush:  e.flush,
		depth:  defaultQueueDepth,
	}, nil
}

func (e *pcmEncoder) encode(f *media.Frame) ([]*media.Packet, error) {
	if f.SampleFormat != e.codec.format || f.SampleRate != e.params.SampleRate || f.ChannelLayout != e.params.ChannelLayout {
		return nil, fmt.Errorf("frame %s/%d/%s does not match encoder %s/%d/%s",
			f.SampleFormat, f.SampleRate, f.ChannelLayout,
			e.codec.format, e.params.SampleRate, e.params.ChannelLayout)
	}
	if len(e.buf) == 0 && f.PTS != media.NoPTS {
		e.nextPTS = media.Rescale(f.PTS, e.tb, e.sampleTB())
	}
	if e.nextPTS == media.NoPTS {
		e.nextPTS = 0
	}
	e.buf = append(e.buf, f.Data[0][:f.NbSamples*e.block]...)

	var out []*media.Packet
	chunk := e.frameSize * e.block
	for len(e.buf) >= chunk {
		out = append(out, e.packet(e.buf[:chunk], e.frameSize))
		e.buf = e.buf[chunk:]
	}
	// Compact so the backing array does not grow without bound.
	e.buf = append([]byte(nil), e.buf...)
	return out, nil
}

func (e *pcmEncoder) flush() ([]*media.Packet, error) {
	if len(e.buf) == 0 {
		return nil, nil
	}
	p := e.packet(e.buf, len(e.buf)/e.block)
	e.buf = nil
	return []*media.Packet{p}, nil
}

// packet copies data out and advances the sample clock.
func (e *pcmEncoder) packet(data []byte, samples int) *media.Packet {
	pts := media.Rescale(e.nextPTS, e.sampleTB(), e.tb)
	pkt := &media.Packet{
		PTS:      pts,
		DTS:      pts,
		Duration: media.Rescale(int64(samples), e.sampleTB(), e.tb),
		Flags:    media.PacketKey,
		Data:     append([]byte(nil), data...),
	}
	e.nextPTS += int64(samples)
	return pkt
}

func (e *pcmEncoder) sampleTB() media.Rational {
	return media.R(1, e.params.SampleRate)
}
