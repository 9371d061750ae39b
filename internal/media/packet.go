// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import "bytes"

// PacketFlags annotate a compressed packet.
type PacketFlags uint32

const (
	PacketKey PacketFlags = 1 << iota
	PacketCorrupt
	PacketDiscard
)

// Packet is one compressed unit of a single stream. The holder of a packet
// owns its payload until it hands the packet to the next stage.
type Packet struct {
	StreamIndex int
	PTS         int64
	DTS         int64
	Duration    int64
	Flags       PacketFlags
	Data        []byte
}

// NewPacket returns an empty packet with absent timestamps.
func NewPacket() *Packet {
	return &Packet{PTS: NoPTS, DTS: NoPTS}
}

// IsKey reports whether the packet starts a decodable unit.
func (p *Packet) IsKey() bool {
	return p.Flags&PacketKey != 0
}

// RescaleTS moves PTS, DTS and Duration from one time base to another.
func (p *Packet) RescaleTS(from, to Rational) {
	p.PTS = Rescale(p.PTS, from, to)
	p.DTS = Rescale(p.DTS, from, to)
	if p.Duration > 0 {
		p.Duration = Rescale(p.Duration, from, to)
	}
}

// Clone returns a deep copy.
func (p *Packet) Clone() *Packet {
	out := *p
	out.Data = bytes.Clone(p.Data)
	return &out
}

// Unref releases the payload and resets the packet for reuse.
func (p *Packet) Unref() {
	*p = Packet{PTS: NoPTS, DTS: NoPTS}
}
