// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for transcode spans.
const (
	// Run attributes
	RunIDKey      = "transcode.run_id"
	InputPathKey  = "transcode.input"
	OutputPathKey = "transcode.output"
	StreamsKey    = "transcode.streams"

	// Stream attributes
	StreamIndexKey    = "stream.index"
	StreamMediaKey    = "stream.media_type"
	StreamModeKey     = "stream.mode"
	InputCodecKey     = "stream.input_codec"
	OutputCodecKey    = "stream.output_codec"
	FilterKey         = "stream.filter"
	PacketsOutKey     = "stream.packets_out"
	FramesFilteredKey = "stream.frames_filtered"

	// Job attributes
	JobIDKey     = "job.id"
	JobStatusKey = "job.status"

	// Error attributes
	ErrorTypeKey = "error.type"
	StageKey     = "error.stage"
)

// RunAttributes creates run-level span attributes.
func RunAttributes(runID, input, output string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(RunIDKey, runID),
		attribute.String(InputPathKey, input),
		attribute.String(OutputPathKey, output),
	}
}

// StreamAttributes creates per-stream span attributes. Empty codec names
// are omitted.
func StreamAttributes(index int, mediaType, mode, inputCodec, outputCodec string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int(StreamIndexKey, index),
		attribute.String(StreamMediaKey, mediaType),
		attribute.String(StreamModeKey, mode),
	}
	if inputCodec != "" {
		attrs = append(attrs, attribute.String(InputCodecKey, inputCodec))
	}
	if outputCodec != "" {
		attrs = append(attrs, attribute.String(OutputCodecKey, outputCodec))
	}
	return attrs
}

// RecordError marks span as failed. stage may be empty.
func RecordError(span trace.Span, err error, stage string) {
	if err == nil {
		return
	}
	if stage != "" {
		span.SetAttributes(attribute.String(StageKey, stage))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
