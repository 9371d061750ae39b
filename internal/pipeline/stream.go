// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ManuGH/xgtranscode/internal/codec"
	"github.com/ManuGH/xgtranscode/internal/filter"
	xglog "github.com/ManuGH/xgtranscode/internal/log"
	"github.com/ManuGH/xgtranscode/internal/media"
	"github.com/ManuGH/xgtranscode/internal/metrics"
	"github.com/ManuGH/xgtranscode/internal/pipeline/fsm"
)

// Stream modes.
const (
	ModeTranscode = "transcode"
	ModeCopy      = "copy"
)

// FrameObserver sees every filtered frame before it is encoded. It must
// not retain or modify the frame.
type FrameObserver interface {
	ObserveFrame(ctx context.Context, streamIndex int, f *media.Frame)
}

// packetSink is the output side of a stream pipeline.
type packetSink interface {
	WritePacket(pkt *media.Packet) error
}

// StreamStats count the work done by one stream pipeline.
type StreamStats struct {
	PacketsIn      int64
	FramesDecoded  int64
	FramesFiltered int64
	PacketsOut     int64
}

// StreamPipeline carries one input stream to its output stream, either by
// decode/filter/encode or by timestamp-rescaled copy.
type StreamPipeline struct {
	index     int
	mediaType media.MediaType
	in        media.StreamDescriptor
	out       media.StreamDescriptor

	dec   codec.Decoder
	graph *filter.Graph
	enc   codec.Encoder

	sink     packetSink
	observer FrameObserver
	machine  *fsm.Machine[StreamState, StreamEvent]
	drained  bool
	released bool
	stats    StreamStats
	log      zerolog.Logger
}

func newStreamPipeline(in media.StreamDescriptor, logger zerolog.Logger) *StreamPipeline {
	sp := &StreamPipeline{
		index:     in.Index,
		mediaType: in.Params.MediaType,
		in:        in,
		machine:   newStreamMachine(),
		log: logger.With().
			Int(xglog.FieldStreamIndex, in.Index).
			Str(xglog.FieldMediaType, string(in.Params.MediaType)).
			Logger(),
	}
	sp.machine.OnTransition(func(from, to StreamState, ev StreamEvent) {
		if from == to {
			return
		}
		metrics.StreamTransitions.WithLabelValues(string(from), string(to)).Inc()
		sp.log.Debug().
			Str(xglog.FieldEvent, "stream.transition").
			Str(xglog.FieldOldState, string(from)).
			Str(xglog.FieldNewState, string(to)).
			Msg(string(ev))
	})
	return sp
}

// Index is the stream index, shared by input and output.
func (sp *StreamPipeline) Index() int { return sp.index }

// MediaType is the media type of the input stream.
func (sp *StreamPipeline) MediaType() media.MediaType { return sp.mediaType }

// Transcoding reports whether the stream runs through codecs.
func (sp *StreamPipeline) Transcoding() bool { return sp.dec != nil }

// Mode is ModeTranscode or ModeCopy.
func (sp *StreamPipeline) Mode() string {
	if sp.Transcoding() {
		return ModeTranscode
	}
	return ModeCopy
}

// State returns the lifecycle state.
func (sp *StreamPipeline) State() StreamState { return sp.machine.State() }

// Stats returns the work counters.
func (sp *StreamPipeline) Stats() StreamStats { return sp.stats }

// FilterDescription describes the configured filter chain, if any.
func (sp *StreamPipeline) FilterDescription() string {
	if sp.graph == nil {
		return ""
	}
	return sp.graph.String()
}

// HandlePacket consumes one demuxed packet of this stream. The pipeline
// takes ownership of pkt.
func (sp *StreamPipeline) HandlePacket(ctx context.Context, pkt *media.Packet) error {
	if _, err := sp.machine.Fire(ctx, EventPacket); err != nil {
		return stageErr(StageDemux, sp.index, err)
	}
	sp.stats.PacketsIn++
	if !sp.Transcoding() {
		pkt.RescaleTS(sp.in.TimeBase, sp.out.TimeBase)
		return sp.write(pkt, ModeCopy)
	}

	pkt.RescaleTS(sp.in.TimeBase, sp.dec.TimeBase())
	err := sp.decode(ctx, pkt)
	pkt.Unref()
	return err
}

// Finish drains the stream at end of input: decoder, then filter graph,
// then the encoder when it buffers input.
func (sp *StreamPipeline) Finish(ctx context.Context) error {
	if _, err := sp.machine.Fire(ctx, EventEndOfStream); err != nil {
		return stageErr(StageDemux, sp.index, err)
	}
	if sp.Transcoding() {
		if err := sp.decode(ctx, nil); err != nil {
			return err
		}
		if err := sp.filterFrame(ctx, nil); err != nil {
			return err
		}
		if sp.enc.Capabilities().Has(codec.CapDelay) {
			if err := sp.encode(ctx, nil); err != nil {
				return err
			}
		}
	}
	sp.drained = true
	sp.log.Debug().
		Str(xglog.FieldEvent, "stream.drained").
		Int64("packets_in", sp.stats.PacketsIn).
		Int64("packets_out", sp.stats.PacketsOut).
		Msg("stream drained")
	return nil
}

// decode submits pkt (nil flushes) and drains every frame it yields.
func (sp *StreamPipeline) decode(ctx context.Context, pkt *media.Packet) error {
	for {
		outcome, err := sp.dec.Submit(pkt)
		if err != nil {
			return stageErr(StageDecode, sp.index, err)
		}
		if outcome != media.NotYet {
			break
		}
		n, err := sp.drainDecoder(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			return stageErr(StageDecode, sp.index, ErrNoProgress)
		}
	}
	_, err := sp.drainDecoder(ctx)
	return err
}

func (sp *StreamPipeline) drainDecoder(ctx context.Context) (int, error) {
	n := 0
	for {
		frame, outcome, err := sp.dec.Receive()
		if err != nil {
			return n, stageErr(StageDecode, sp.index, err)
		}
		if outcome != media.Ready {
			return n, nil
		}
		n++
		sp.stats.FramesDecoded++
		metrics.FramesDecoded.WithLabelValues(string(sp.mediaType)).Inc()
		frame.PTS = frame.BestEffortTimestamp
		if err := sp.filterFrame(ctx, frame); err != nil {
			return n, err
		}
	}
}

// filterFrame pushes f (nil flushes) and encodes every frame the graph releases.
func (sp *StreamPipeline) filterFrame(ctx context.Context, f *media.Frame) error {
	if err := sp.graph.Push(f); err != nil {
		return stageErr(StageFilter, sp.index, err)
	}
	for {
		out, outcome, err := sp.graph.Pull()
		if err != nil {
			return stageErr(StageFilter, sp.index, err)
		}
		if outcome != media.Ready {
			return nil
		}
		sp.stats.FramesFiltered++
		metrics.FramesFiltered.WithLabelValues(string(sp.mediaType)).Inc()
		if sp.observer != nil {
			sp.observer.ObserveFrame(ctx, sp.index, out)
		}
		out.PictureType = media.PictureNone
		out.PTS = media.Rescale(out.PTS, sp.graph.TimeBase(), sp.enc.TimeBase())
		if err := sp.encode(ctx, out); err != nil {
			return err
		}
		out.Unref()
	}
}

// encode submits f (nil flushes) and writes every packet it yields.
func (sp *StreamPipeline) encode(ctx context.Context, f *media.Frame) error {
	for {
		outcome, err := sp.enc.Submit(f)
		if err != nil {
			return stageErr(StageEncode, sp.index, err)
		}
		if outcome != media.NotYet {
			break
		}
		n, err := sp.drainEncoder()
		if err != nil {
			return err
		}
		if n == 0 {
			return stageErr(StageEncode, sp.index, ErrNoProgress)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	_, err := sp.drainEncoder()
	return err
}

func (sp *StreamPipeline) drainEncoder() (int, error) {
	n := 0
	for {
		pkt, outcome, err := sp.enc.Receive()
		if err != nil {
			return n, stageErr(StageEncode, sp.index, err)
		}
		if outcome != media.Ready {
			return n, nil
		}
		n++
		pkt.StreamIndex = sp.index
		pkt.RescaleTS(sp.enc.TimeBase(), sp.out.TimeBase)
		if err := sp.write(pkt, ModeTranscode); err != nil {
			return n, err
		}
	}
}

func (sp *StreamPipeline) write(pkt *media.Packet, mode string) error {
	size := len(pkt.Data)
	if err := sp.sink.WritePacket(pkt); err != nil {
		return stageErr(StageMux, sp.index, err)
	}
	sp.stats.PacketsOut++
	metrics.PacketsWritten.WithLabelValues(string(sp.mediaType), mode).Inc()
	metrics.BytesWritten.Add(float64(size))
	return nil
}

// release closes the encoder, filter graph and decoder in that order and
// moves the stream to Closed.
func (sp *StreamPipeline) release(ctx context.Context) error {
	if sp.released {
		return nil
	}
	sp.released = true
	var errs []error
	if sp.enc != nil {
		errs = append(errs, wrapClose("encoder", sp.enc.Close()))
	}
	if sp.graph != nil {
		errs = append(errs, wrapClose("filter graph", sp.graph.Close()))
	}
	if sp.dec != nil {
		errs = append(errs, wrapClose("decoder", sp.dec.Close()))
	}
	event := EventAbort
	if sp.drained && sp.State() == StateDraining {
		event = EventReleased
	}
	if _, err := sp.machine.Fire(ctx, event); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("stream %d: %w", sp.index, err)
	}
	return nil
}

func wrapClose(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("close %s: %w", what, err)
}
