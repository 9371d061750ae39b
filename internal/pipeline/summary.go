// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"time"

	"github.com/ManuGH/xgtranscode/internal/media"
)

// StreamSummary describes one stream after a run.
type StreamSummary struct {
	Index       int
	MediaType   media.MediaType
	Mode        string
	InputCodec  media.CodecID
	OutputCodec media.CodecID
	Filter      string
	State       StreamState
	Stats       StreamStats
}

// Summary describes a finished or aborted run.
type Summary struct {
	RunID        string
	Input        string
	Output       string
	Streams      []StreamSummary
	BytesWritten int64
	Duration     time.Duration
}

// PacketsOut totals the packets written across streams.
func (s Summary) PacketsOut() int64 {
	var n int64
	for _, st := range s.Streams {
		n += st.Stats.PacketsOut
	}
	return n
}
