// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package codec

import (
	"fmt"

	"github.com/ManuGH/xgtranscode/internal/media"
)

// defaultQueueDepth bounds how many produced units a codec holds before
// Submit answers media.NotYet.
const defaultQueueDepth = 8

// decodeFunc decodes one packet into zero or more frames.
type decodeFunc func(pkt *media.Packet) ([]*media.Frame, error)

// queuedDecoder implements the send/receive protocol around a stateless
// per-packet decode function.
type queuedDecoder struct {
	tb      media.Rational
	params  media.CodecParameters
	decode  decodeFunc
	depth   int
	queue   []*media.Frame
	flushed bool
	closed  bool
	pts     ptsCorrector
}

func newQueuedDecoder(cfg DecoderConfig, decode decodeFunc) *queuedDecoder {
	return &queuedDecoder{
		tb:     decoderTimeBase(cfg.Params, cfg.StreamTimeBase),
		params: cfg.Params.Clone(),
		decode: decode,
		depth:  defaultQueueDepth,
		pts:    newPTSCorrector(),
	}
}

func (d *queuedDecoder) Submit(pkt *media.Packet) (media.Outcome, error) {
	if d.closed {
		return media.End, ErrClosed
	}
	if d.flushed {
		return media.End, nil
	}
	if pkt == nil {
		d.flushed = true
		return media.Ready, nil
	}
	if len(d.queue) >= d.depth {
		return media.NotYet, nil
	}
	frames, err := d.decode(pkt)
	if err != nil {
		return media.Ready, fmt.Errorf("decode %s packet pts=%d: %w", d.params.CodecID, pkt.PTS, err)
	}
	for _, f := range frames {
		f.PTS = pkt.PTS
		f.PacketDTS = pkt.DTS
		f.BestEffortTimestamp = d.pts.guess(pkt.PTS, pkt.DTS)
		if f.Duration == 0 {
			f.Duration = pkt.Duration
		}
		f.KeyFrame = pkt.IsKey()
	}
	d.queue = append(d.queue, frames...)
	return media.Ready, nil
}

func (d *queuedDecoder) Receive() (*media.Frame, media.Outcome, error) {
	if d.closed {
		return nil, media.End, ErrClosed
	}
	if len(d.queue) > 0 {
		f := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		return f, media.Ready, nil
	}
	if d.flushed {
		return nil, media.End, nil
	}
	return nil, media.NotYet, nil
}

func (d *queuedDecoder) TimeBase() media.Rational          { return d.tb }
func (d *queuedDecoder) Parameters() media.CodecParameters { return d.params.Clone() }

func (d *queuedDecoder) Close() error {
	d.closed = true
	d.queue = nil
	return nil
}

// ptsCorrector picks the best-effort presentation timestamp of a decoded
// frame from the packet PTS and DTS, preferring whichever has shown fewer
// non-monotonic values so far.
type ptsCorrector struct {
	faultyPTS int
	faultyDTS int
	lastPTS   int64
	lastDTS   int64
}

func newPTSCorrector() ptsCorrector {
	return ptsCorrector{lastPTS: media.NoPTS, lastDTS: media.NoPTS}
}

func (c *ptsCorrector) guess(pts, dts int64) int64 {
	if dts != media.NoPTS {
		if c.lastDTS != media.NoPTS && dts <= c.lastDTS {
			c.faultyDTS++
		}
		c.lastDTS = dts
	}
	if pts != media.NoPTS {
		if c.lastPTS != media.NoPTS && pts <= c.lastPTS {
			c.faultyPTS++
		}
		c.lastPTS = pts
	}
	if pts != media.NoPTS && (c.faultyPTS <= c.faultyDTS || dts == media.NoPTS) {
		return pts
	}
	return dts
}

// encodeFunc encodes one frame into zero or more packets.
type encodeFunc func(f *media.Frame) ([]*media.Packet, error)

// flushFunc returns whatever the encoder still buffers.
type flushFunc func() ([]*media.Packet, error)

// queuedEncoder implements the send/receive protocol around an encode
// function and an optional flush.
type queuedEncoder struct {
	tb      media.Rational
	params  media.CodecParameters
	caps    Capabilities
	encode  encodeFunc
	flush   flushFunc
	depth   int
	queue   []*media.Packet
	flushed bool
	closed  bool
}

func (e *queuedEncoder) Submit(f *media.Frame) (media.Outcome, error) {
	if e.closed {
		return media.End, ErrClosed
	}
	if e.flushed {
		return media.End, nil
	}
	if f == nil {
		e.flushed = true
		if e.flush == nil {
			return media.Ready, nil
		}
		pkts, err := e.flush()
		if err != nil {
			return media.Ready, fmt.Errorf("flush %s: %w", e.params.CodecID, err)
		}
		e.queue = append(e.queue, pkts...)
		return media.Ready, nil
	}
	if len(e.queue) >= e.depth {
		return media.NotYet, nil
	}
	pkts, err := e.encode(f)
	if err != nil {
		return media.Ready, fmt.Errorf("encode %s frame pts=%d: %w", e.params.CodecID, f.PTS, err)
	}
	e.queue = append(e.queue, pkts...)
	return media.Ready, nil
}

func (e *queuedEncoder) Receive() (*media.Packet, media.Outcome, error) {
	if e.closed {
		return nil, media.End, ErrClosed
	}
	if len(e.queue) > 0 {
		p := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		return p, media.Ready, nil
	}
	if e.flushed {
		return nil, media.End, nil
	}
	return nil, media.NotYet, nil
}

func (e *queuedEncoder) TimeBase() media.Rational          { return e.tb }
func (e *queuedEncoder) Parameters() media.CodecParameters { return e.params.Clone() }
func (e *queuedEncoder) Capabilities() Capabilities        { return e.caps }

func (e *queuedEncoder) Close() error {
	e.closed = true
	e.queue = nil
	return nil
}
