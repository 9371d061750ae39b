// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package container

import (
	"time"

	"github.com/ManuGH/xgtranscode/internal/media"
)

// MaxInterleaveDelta bounds how far ahead one stream may run while the
// muxer waits for another stream to catch up.
const MaxInterleaveDelta = 10 * time.Second

var microseconds = media.R(1, 1_000_000)

// interleaver orders packets across streams by decode time. A packet is
// released once every stream that has produced output holds a queued
// packet, or once the queued span exceeds MaxInterleaveDelta.
type interleaver struct {
	streams []media.StreamDescriptor
	queues  [][]*media.Packet
	seen    []bool
	queued  int
}

func newInterleaver(streams []media.StreamDescriptor) *interleaver {
	return &interleaver{
		streams: streams,
		queues:  make([][]*media.Packet, len(streams)),
		seen:    make([]bool, len(streams)),
	}
}

func (il *interleaver) push(pkt *media.Packet) {
	il.queues[pkt.StreamIndex] = append(il.queues[pkt.StreamIndex], pkt)
	il.seen[pkt.StreamIndex] = true
	il.queued++
}

// pop returns the next packet to write, or nil when the caller must wait
// for more input. With all set, queues are drained unconditionally.
func (il *interleaver) pop(all bool) *media.Packet {
	if il.queued == 0 {
		return nil
	}
	first, last := -1, -1
	waiting := false
	for i, q := range il.queues {
		if len(q) == 0 {
			if il.seen[i] {
				waiting = true
			}
			continue
		}
		if first == -1 || il.before(q[0], il.queues[first][0]) {
			first = i
		}
		tail := q[len(q)-1]
		if last == -1 || il.before(il.queues[last][len(il.queues[last])-1], tail) {
			last = i
		}
	}
	if waiting && !all {
		head := il.queues[first][0]
		tail := il.queues[last][len(il.queues[last])-1]
		if il.span(head, tail) <= MaxInterleaveDelta.Microseconds() {
			return nil
		}
	}
	pkt := il.queues[first][0]
	il.queues[first][0] = nil
	il.queues[first] = il.queues[first][1:]
	il.queued--
	return pkt
}

// sortKey is the DTS, falling back to PTS, in microseconds.
func (il *interleaver) sortKey(p *media.Packet) int64 {
	ts := p.DTS
	if ts == media.NoPTS {
		ts = p.PTS
	}
	if ts == media.NoPTS {
		return media.NoPTS
	}
	return media.Rescale(ts, il.streams[p.StreamIndex].TimeBase, microseconds)
}

func (il *interleaver) before(a, b *media.Packet) bool {
	ka, kb := il.sortKey(a), il.sortKey(b)
	if ka == kb {
		return a.StreamIndex < b.StreamIndex
	}
	return ka < kb
}

func (il *interleaver) span(head, tail *media.Packet) int64 {
	h, t := il.sortKey(head), il.sortKey(tail)
	if h == media.NoPTS || t == media.NoPTS {
		return MaxInterleaveDelta.Microseconds() + 1
	}
	return t - h
}
