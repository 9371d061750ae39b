// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRunID   = "run_id"
	FieldJobID   = "job_id"
	FieldTraceID = "trace_id"
	FieldSpanID  = "span_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldStage     = "stage"
	FieldOp        = "op"

	// Media / stream fields
	FieldStreamIndex = "stream_index"
	FieldMediaType   = "media_type"
	FieldCodec       = "codec"
	FieldEncoder     = "encoder"
	FieldResolution  = "resolution"
	FieldPixFmt      = "pix_fmt"
	FieldSampleRate  = "sample_rate"
	FieldTimeBase    = "time_base"
	FieldFilter      = "filter"
	FieldMode        = "mode"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path fields
	FieldPath       = "path"
	FieldInputPath  = "input"
	FieldOutputPath = "output"
)
