// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"errors"

	"github.com/ManuGH/xgtranscode/internal/codec"
	"github.com/ManuGH/xgtranscode/internal/media"
)

const (
	lazyCodec   media.CodecID = "lazy"
	stuckCodec  media.CodecID = "stuck"
	hoardCodec  media.CodecID = "hoard"
	brokenCodec media.CodecID = "broken"
)

// lazyDecoder decodes rawvideo but only hands a frame out on the second
// Receive call, and refuses new input while a frame is pending. It drives
// the NotYet path of Submit.
type lazyDecoder struct {
	params  media.CodecParameters
	tb      media.Rational
	pending []*media.Frame
	warm    bool
	flushed bool
	submits int
	notYets int
}

func (d *lazyDecoder) Submit(pkt *media.Packet) (media.Outcome, error) {
	d.submits++
	if len(d.pending) > 0 {
		d.notYets++
		return media.NotYet, nil
	}
	if pkt == nil {
		d.flushed = true
		return media.Ready, nil
	}
	f, err := media.NewVideoFrame(d.params.PixelFormat, d.params.Width, d.params.Height)
	if err != nil {
		return media.Ready, err
	}
	if err := f.Unpack(pkt.Data); err != nil {
		return media.Ready, err
	}
	f.PTS = pkt.PTS
	f.BestEffortTimestamp = pkt.PTS
	f.SampleAspectRatio = d.params.SampleAspectRatio
	d.pending = append(d.pending, f)
	return media.Ready, nil
}

func (d *lazyDecoder) Receive() (*media.Frame, media.Outcome, error) {
	if len(d.pending) == 0 {
		if d.flushed {
			return nil, media.End, nil
		}
		return nil, media.NotYet, nil
	}
	if !d.warm && !d.flushed {
		d.warm = true
		return nil, media.NotYet, nil
	}
	d.warm = false
	f := d.pending[0]
	d.pending = d.pending[1:]
	return f, media.Ready, nil
}

func (d *lazyDecoder) TimeBase() media.Rational          { return d.tb }
func (d *lazyDecoder) Parameters() media.CodecParameters { return d.params }
func (d *lazyDecoder) Close() error                      { return nil }

// stuckDecoder never accepts input and never produces output.
type stuckDecoder struct{ lazyDecoder }

func (d *stuckDecoder) Submit(*media.Packet) (media.Outcome, error) { return media.NotYet, nil }
func (d *stuckDecoder) Receive() (*media.Frame, media.Outcome, error) {
	return nil, media.NotYet, nil
}

// hoardEncoder keeps every frame until flushed, like an encoder with
// lookahead. It packs frames as rawvideo.
type hoardEncoder struct {
	params media.CodecParameters
	tb     media.Rational
	frames []*media.Frame
	out    []*media.Packet
	done   bool
	fail   bool
	closed *int
}

func (e *hoardEncoder) Submit(f *media.Frame) (media.Outcome, error) {
	if e.fail {
		return media.Ready, errors.New("encoder exploded")
	}
	if f != nil {
		e.frames = append(e.frames, f.Clone())
		return media.Ready, nil
	}
	e.done = true
	for _, fr := range e.frames {
		data, err := fr.Pack()
		if err != nil {
			return media.Ready, err
		}
		e.out = append(e.out, &media.Packet{PTS: fr.PTS, DTS: fr.PTS, Duration: 1, Flags: media.PacketKey, Data: data})
	}
	e.frames = nil
	return media.Ready, nil
}

func (e *hoardEncoder) Receive() (*media.Packet, media.Outcome, error) {
	if len(e.out) > 0 {
		p := e.out[0]
		e.out = e.out[1:]
		return p, media.Ready, nil
	}
	if e.done {
		return nil, media.End, nil
	}
	return nil, media.NotYet, nil
}

func (e *hoardEncoder) TimeBase() media.Rational          { return e.tb }
func (e *hoardEncoder) Parameters() media.CodecParameters { return e.params }
func (e *hoardEncoder) Capabilities() codec.Capabilities  { return codec.CapDelay }
func (e *hoardEncoder) Close() error {
	if e.closed != nil {
		*e.closed++
	}
	return nil
}

// testRegistry returns the built-in codecs plus the fakes above.
func testRegistry(closed *int) *codec.Registry {
	r := codec.NewRegistry()
	codec.RegisterBuiltins(r)
	video := func(id media.CodecID) codec.Descriptor {
		return codec.Descriptor{ID: id, MediaType: media.MediaTypeVideo, LongName: string(id)}
	}
	r.RegisterDecoder(codec.DecoderFactory{
		Descriptor: video(lazyCodec),
		New: func(cfg codec.DecoderConfig) (codec.Decoder, error) {
			return &lazyDecoder{params: cfg.Params, tb: cfg.StreamTimeBase}, nil
		},
	})
	r.RegisterDecoder(codec.DecoderFactory{
		Descriptor: video(stuckCodec),
		New: func(cfg codec.DecoderConfig) (codec.Decoder, error) {
			return &stuckDecoder{lazyDecoder{params: cfg.Params, tb: cfg.StreamTimeBase}}, nil
		},
	})
	for _, id := range []media.CodecID{hoardCodec, brokenCodec} {
		fail := id == brokenCodec
		r.RegisterEncoder(codec.EncoderFactory{
			Descriptor:   video(id),
			Capabilities: codec.CapDelay,
			New: func(cfg codec.EncoderConfig) (codec.Encoder, error) {
				p := cfg.Params
				p.CodecID = id
				return &hoardEncoder{params: p, tb: cfg.TimeBase, fail: fail, closed: closed}, nil
			},
		})
	}
	return r
}
