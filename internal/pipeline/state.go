// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import "github.com/ManuGH/xgtranscode/internal/pipeline/fsm"

// StreamState is the lifecycle state of one stream pipeline.
type StreamState string

const (
	StateIdle      StreamState = "idle"
	StateStreaming StreamState = "streaming"
	StateDraining  StreamState = "draining"
	StateClosed    StreamState = "closed"
)

// StreamEvent drives the stream state machine.
type StreamEvent string

const (
	EventPacket      StreamEvent = "packet"
	EventEndOfStream StreamEvent = "end_of_stream"
	EventReleased    StreamEvent = "released"
	EventAbort       StreamEvent = "abort"
)

// streamTransitions: packets keep a stream Streaming, end of input moves
// it to Draining, and releasing its resources after a full drain closes
// it. Abort closes from any open state.
var streamTransitions = []fsm.Transition[StreamState, StreamEvent]{
	{From: StateIdle, Event: EventPacket, To: StateStreaming},
	{From: StateStreaming, Event: EventPacket, To: StateStreaming},
	{From: StateIdle, Event: EventEndOfStream, To: StateDraining},
	{From: StateStreaming, Event: EventEndOfStream, To: StateDraining},
	{From: StateDraining, Event: EventReleased, To: StateClosed},
	{From: StateIdle, Event: EventAbort, To: StateClosed},
	{From: StateStreaming, Event: EventAbort, To: StateClosed},
	{From: StateDraining, Event: EventAbort, To: StateClosed},
}

func newStreamMachine() *fsm.Machine[StreamState, StreamEvent] {
	m, err := fsm.New(StateIdle, streamTransitions)
	if err != nil {
		panic(err)
	}
	return m
}
