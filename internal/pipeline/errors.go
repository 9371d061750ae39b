// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"errors"
	"fmt"
)

// Stage names a step of the per-packet data path.
type Stage string

const (
	StageDemux  Stage = "demux"
	StageDecode Stage = "decode"
	StageFilter Stage = "filter"
	StageEncode Stage = "encode"
	StageMux    Stage = "mux"
)

// noStream marks errors that are not tied to one stream.
const noStream = -1

// SetupError reports a failure while preparing a run. No packet has been
// processed when it is returned.
type SetupError struct {
	Op     string
	Stream int
	Err    error
}

func (e *SetupError) Error() string {
	if e.Stream == noStream {
		return fmt.Sprintf("setup: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("setup: %s (stream %d): %v", e.Op, e.Stream, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// StageError reports a fatal failure while moving data through a stage.
type StageError struct {
	Stage  Stage
	Stream int
	Err    error
}

func (e *StageError) Error() string {
	if e.Stream == noStream {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s (stream %d): %v", e.Stage, e.Stream, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ErrNoProgress is returned when a codec keeps refusing input while
// producing no output.
var ErrNoProgress = errors.New("codec refused input without producing output")

// StageOf extracts the failing stage from err, or "" for other errors.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

func setupErr(op string, stream int, err error) error {
	return &SetupError{Op: op, Stream: stream, Err: err}
}

func stageErr(stage Stage, stream int, err error) error {
	return &StageError{Stage: stage, Stream: stream, Err: err}
}
