// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package container

import (
	"errors"
	"fmt"

	"github.com/ManuGH/xgtranscode/internal/media"
)

var (
	// ErrNonMonotonic rejects a packet whose timestamps go backwards within its stream.
	ErrNonMonotonic = errors.New("non-monotonic timestamps")
	// ErrOutputState rejects calls made in the wrong lifecycle phase.
	ErrOutputState = errors.New("invalid output state")
)

type outputState uint8

const (
	stateNew outputState = iota
	stateHeader
	stateTrailer
	stateClosed
)

type lastTS struct {
	pts, dts int64
}

// Output is a muxing target. Streams are added, the header is written
// exactly once, packets are validated and interleaved across streams, and
// the trailer is written exactly once.
type Output struct {
	format  Format
	path    string
	mux     Muxer
	streams []media.StreamDescriptor
	state   outputState
	last    []lastTS
	il      *interleaver
	packets []int64
	bytes   int64
}

func newOutput(f Format, path string, m Muxer) *Output {
	return &Output{format: f, path: path, mux: m}
}

// Format returns the container format of the output.
func (o *Output) Format() Format {
	return o.format
}

// Path returns the output location.
func (o *Output) Path() string {
	return o.path
}

// RequiresGlobalHeader reports whether encoders must publish extradata.
func (o *Output) RequiresGlobalHeader() bool {
	return o.format.Flags&FlagGlobalHeader != 0
}

// AddStream declares the next output stream. Its index must equal the
// number of streams already added.
func (o *Output) AddStream(s media.StreamDescriptor) error {
	if o.state != stateNew {
		return fmt.Errorf("%w: stream added after header", ErrOutputState)
	}
	if s.Index != len(o.streams) {
		return fmt.Errorf("output stream declared with index %d, want %d", s.Index, len(o.streams))
	}
	if !s.TimeBase.Valid() {
		return fmt.Errorf("output stream %d has invalid time base %s", s.Index, s.TimeBase)
	}
	o.streams = append(o.streams, s.Clone())
	return nil
}

// Streams returns the declared output streams.
func (o *Output) Streams() []media.StreamDescriptor {
	out := make([]media.StreamDescriptor, len(o.streams))
	for i, s := range o.streams {
		out[i] = s.Clone()
	}
	return out
}

// WriteHeader hands the stream table to the muxer.
func (o *Output) WriteHeader() error {
	if o.state != stateNew {
		return fmt.Errorf("%w: header already written", ErrOutputState)
	}
	if len(o.streams) == 0 {
		return errors.New("output has no streams")
	}
	if err := o.mux.WriteHeader(o.Streams()); err != nil {
		return fmt.Errorf("%s: write header: %w", o.format.Name, err)
	}
	o.last = make([]lastTS, len(o.streams))
	for i := range o.last {
		o.last[i] = lastTS{pts: media.NoPTS, dts: media.NoPTS}
	}
	o.packets = make([]int64, len(o.streams))
	o.il = newInterleaver(o.streams)
	o.state = stateHeader
	return nil
}

// WritePacket validates pkt against its stream and queues it for
// interleaved writing. Timestamps must already be in the stream time base.
// The output takes ownership of the packet.
func (o *Output) WritePacket(pkt *media.Packet) error {
	if o.state != stateHeader {
		return fmt.Errorf("%w: packet outside header/trailer window", ErrOutputState)
	}
	if pkt.StreamIndex < 0 || pkt.StreamIndex >= len(o.streams) {
		return fmt.Errorf("packet for unknown output stream %d", pkt.StreamIndex)
	}
	if err := o.checkMonotonic(pkt); err != nil {
		return err
	}
	o.il.push(pkt)
	return o.drain(false)
}

func (o *Output) checkMonotonic(pkt *media.Packet) error {
	last := &o.last[pkt.StreamIndex]
	if pkt.DTS != media.NoPTS && last.dts != media.NoPTS && pkt.DTS < last.dts {
		return fmt.Errorf("%w: stream %d dts %d after %d", ErrNonMonotonic, pkt.StreamIndex, pkt.DTS, last.dts)
	}
	if pkt.PTS != media.NoPTS && pkt.DTS != media.NoPTS && pkt.PTS < pkt.DTS {
		return fmt.Errorf("%w: stream %d pts %d before dts %d", ErrNonMonotonic, pkt.StreamIndex, pkt.PTS, pkt.DTS)
	}
	if pkt.DTS == media.NoPTS && pkt.PTS != media.NoPTS && last.pts != media.NoPTS && pkt.PTS < last.pts {
		return fmt.Errorf("%w: stream %d pts %d after %d", ErrNonMonotonic, pkt.StreamIndex, pkt.PTS, last.pts)
	}
	if pkt.DTS != media.NoPTS {
		last.dts = pkt.DTS
	}
	if pkt.PTS != media.NoPTS {
		last.pts = pkt.PTS
	}
	return nil
}

func (o *Output) drain(all bool) error {
	for {
		pkt := o.il.pop(all)
		if pkt == nil {
			return nil
		}
		size := len(pkt.Data)
		if err := o.mux.WritePacket(pkt); err != nil {
			return fmt.Errorf("%s: write packet stream %d: %w", o.format.Name, pkt.StreamIndex, err)
		}
		o.packets[pkt.StreamIndex]++
		o.bytes += int64(size)
	}
}

// WriteTrailer flushes queued packets and finalizes the file.
func (o *Output) WriteTrailer() error {
	if o.state != stateHeader {
		return fmt.Errorf("%w: trailer without header or written twice", ErrOutputState)
	}
	if err := o.drain(true); err != nil {
		return err
	}
	o.state = stateTrailer
	if err := o.mux.WriteTrailer(); err != nil {
		return fmt.Errorf("%s: write trailer: %w", o.format.Name, err)
	}
	return nil
}

// Close releases the muxer. Packets still queued are discarded when no
// trailer was written.
func (o *Output) Close() error {
	if o.state == stateClosed {
		return nil
	}
	o.state = stateClosed
	return o.mux.Close()
}

// PacketsWritten returns the per-stream count of packets handed to the muxer.
func (o *Output) PacketsWritten() []int64 {
	return append([]int64(nil), o.packets...)
}

// BytesWritten returns the payload bytes handed to the muxer.
func (o *Output) BytesWritten() int64 {
	return o.bytes
}
