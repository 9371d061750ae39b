// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package pipeline drives a single-threaded transcode: packets are read
// from the input one at a time, routed to their stream pipeline, and every
// dependent stage is drained before the next read.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ManuGH/xgtranscode/internal/codec"
	"github.com/ManuGH/xgtranscode/internal/container"
	"github.com/ManuGH/xgtranscode/internal/filter"
	xglog "github.com/ManuGH/xgtranscode/internal/log"
	"github.com/ManuGH/xgtranscode/internal/media"
	"github.com/ManuGH/xgtranscode/internal/metrics"
	"github.com/ManuGH/xgtranscode/internal/telemetry"
)

// Overrides replace source video parameters before encoders are opened.
// Zero values leave the source value in place.
type Overrides struct {
	Width   int
	Height  int
	BitRate int64
}

// Options configure one transcode run.
type Options struct {
	RunID      string
	InputPath  string
	OutputPath string
	Overrides  Overrides

	// VideoFilter and AudioFilter are linear filter chains. Empty means
	// identity.
	VideoFilter string
	AudioFilter string

	// VideoEncoder and AudioEncoder select the output codec. Empty keeps
	// the source codec.
	VideoEncoder media.CodecID
	AudioEncoder media.CodecID

	Codecs   *codec.Registry
	Formats  *container.Registry
	Observer FrameObserver
	Tracer   trace.Tracer
}

// Transcoder owns every resource of one run: the input, the output and
// one StreamPipeline per input stream.
type Transcoder struct {
	opts    Options
	input   container.Demuxer
	output  *container.Output
	streams []*StreamPipeline
	tracer  trace.Tracer
	log     zerolog.Logger
	started time.Time
	read    int64
	// progress limits the run loop's progress lines.
	progress rate.Sometimes

	closeOnce sync.Once
	closeErr  error
}

// New opens the input, sets up one pipeline per stream and writes the
// output header. Every error it returns is a *SetupError and nothing is
// left open.
func New(ctx context.Context, opts Options) (*Transcoder, error) {
	if opts.Codecs == nil {
		opts.Codecs = codec.Default()
	}
	if opts.Formats == nil {
		opts.Formats = container.Default()
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if xglog.RunIDFromContext(ctx) == "" {
		ctx = xglog.ContextWithRunID(ctx, opts.RunID)
	}
	t := &Transcoder{
		opts:     opts,
		tracer:   opts.Tracer,
		started:  time.Now(),
		progress: rate.Sometimes{First: 1, Interval: 5 * time.Second},
	}
	if t.tracer == nil {
		t.tracer = telemetry.Tracer()
	}
	ctx, span := t.tracer.Start(ctx, "transcode.setup",
		trace.WithAttributes(telemetry.RunAttributes(opts.RunID, opts.InputPath, opts.OutputPath)...))
	defer span.End()
	t.log = xglog.WithComponentFromContext(ctx, "transcode").With().
		Str(xglog.FieldInputPath, opts.InputPath).
		Str(xglog.FieldOutputPath, opts.OutputPath).
		Logger()

	if err := t.setup(ctx); err != nil {
		telemetry.RecordError(span, err, "setup")
		_ = t.Close()
		return nil, err
	}
	span.SetAttributes(attribute.Int(telemetry.StreamsKey, len(t.streams)))
	t.log.Info().
		Str(xglog.FieldEvent, "transcode.setup").
		Int("streams", len(t.streams)).
		Msg("transcode ready")
	return t, nil
}

func (t *Transcoder) setup(ctx context.Context) error {
	in, err := t.opts.Formats.OpenInput(t.opts.InputPath)
	if err != nil {
		return setupErr("open input", noStream, err)
	}
	t.input = in

	descs := in.Streams()
	if len(descs) == 0 {
		return setupErr("open input", noStream, errors.New("input has no streams"))
	}
	for i, d := range descs {
		if d.Index != i {
			return setupErr("open input", noStream, fmt.Errorf("stream %d reported at position %d", d.Index, i))
		}
		sp := newStreamPipeline(d.Clone(), t.log)
		t.streams = append(t.streams, sp)
		if d.Params.MediaType.Transcodable() {
			if err := t.openDecoder(sp); err != nil {
				return err
			}
		}
	}

	out, err := t.opts.Formats.CreateOutput(t.opts.OutputPath)
	if err != nil {
		return setupErr("create output", noStream, err)
	}
	t.output = out

	for _, sp := range t.streams {
		if sp.Transcoding() {
			if err := t.openEncoder(sp); err != nil {
				return err
			}
		} else {
			sp.out = sp.in.Clone()
		}
		sp.sink = out
		if err := out.AddStream(sp.out); err != nil {
			return setupErr("add output stream", sp.index, err)
		}
	}
	if err := out.WriteHeader(); err != nil {
		return setupErr("write header", noStream, err)
	}

	for _, sp := range t.streams {
		if sp.Transcoding() {
			if err := t.buildFilter(sp); err != nil {
				return err
			}
			if sp.mediaType == media.MediaTypeVideo {
				sp.observer = t.opts.Observer
			}
		}
		t.logStream(ctx, sp)
	}
	return nil
}

func (t *Transcoder) openDecoder(sp *StreamPipeline) error {
	factory, err := t.opts.Codecs.FindDecoder(sp.in.Params.CodecID)
	if err != nil {
		return setupErr("find decoder", sp.index, err)
	}
	dec, err := factory.New(codec.DecoderConfig{
		Params:         sp.in.Params.Clone(),
		StreamTimeBase: sp.in.TimeBase,
	})
	if err != nil {
		return setupErr("open decoder", sp.index, err)
	}
	sp.dec = dec
	return nil
}

// openEncoder configures the encoder from the decoder's resolved
// parameters plus the caller's overrides. Video size without an override
// is what the user filter chain produces.
func (t *Transcoder) openEncoder(sp *StreamPipeline) error {
	src := sp.dec.Parameters()
	id := src.CodecID
	if sp.mediaType == media.MediaTypeVideo && t.opts.VideoEncoder != "" {
		id = t.opts.VideoEncoder
	}
	if sp.mediaType == media.MediaTypeAudio && t.opts.AudioEncoder != "" {
		id = t.opts.AudioEncoder
	}
	factory, err := t.opts.Codecs.FindEncoder(id)
	if err != nil {
		return setupErr("find encoder", sp.index, err)
	}
	if factory.MediaType != sp.mediaType {
		return setupErr("find encoder", sp.index,
			fmt.Errorf("%w: %s encodes %s, stream is %s", codec.ErrCodecNotFound, id, factory.MediaType, sp.mediaType))
	}

	p := media.CodecParameters{MediaType: sp.mediaType, CodecID: id, BitRate: src.BitRate}
	var tb media.Rational
	switch sp.mediaType {
	case media.MediaTypeVideo:
		chain, err := filter.ChainOutput(t.opts.VideoFilter, filterInput(sp))
		if err != nil {
			return setupErr("build filter graph", sp.index, err)
		}
		p.Width, p.Height = chain.Width, chain.Height
		if t.opts.Overrides.Width > 0 {
			p.Width = t.opts.Overrides.Width
		}
		if t.opts.Overrides.Height > 0 {
			p.Height = t.opts.Overrides.Height
		}
		if t.opts.Overrides.BitRate > 0 {
			p.BitRate = t.opts.Overrides.BitRate
		}
		p.SampleAspectRatio = chain.SampleAspectRatio
		p.FrameRate = src.FrameRate
		p.PixelFormat = src.PixelFormat
		if len(factory.PixelFormats) > 0 {
			p.PixelFormat = factory.PixelFormats[0]
		}
		tb = sp.dec.TimeBase()
		if src.FrameRate.Valid() {
			tb = src.FrameRate.Invert().Reduce()
		}
	case media.MediaTypeAudio:
		p.SampleRate = src.SampleRate
		p.ChannelLayout = src.ChannelLayout
		p.Channels = src.ChannelLayout.Channels()
		p.SampleFormat = src.SampleFormat
		if len(factory.SampleFormats) > 0 {
			p.SampleFormat = factory.SampleFormats[0]
		}
		tb = media.R(1, src.SampleRate)
	}

	enc, err := factory.New(codec.EncoderConfig{
		Params:       p,
		TimeBase:     tb,
		GlobalHeader: t.output.RequiresGlobalHeader(),
	})
	if err != nil {
		return setupErr("open encoder", sp.index, err)
	}
	sp.enc = enc
	sp.out = media.StreamDescriptor{
		Index:    sp.index,
		TimeBase: enc.TimeBase(),
		Params:   enc.Parameters(),
	}
	return nil
}

// filterInput describes the decoder's frames.
func filterInput(sp *StreamPipeline) filter.Input {
	dp := sp.dec.Parameters()
	return filter.Input{
		MediaType:         sp.mediaType,
		TimeBase:          sp.dec.TimeBase(),
		Width:             dp.Width,
		Height:            dp.Height,
		PixelFormat:       dp.PixelFormat,
		SampleAspectRatio: dp.SampleAspectRatio,
		SampleFormat:      dp.SampleFormat,
		SampleRate:        dp.SampleRate,
		ChannelLayout:     dp.ChannelLayout,
	}
}

func (t *Transcoder) buildFilter(sp *StreamPipeline) error {
	ep := sp.enc.Parameters()
	in := filterInput(sp)
	var out filter.Output
	spec := t.opts.AudioFilter
	if sp.mediaType == media.MediaTypeVideo {
		spec = t.opts.VideoFilter
		out = filter.Output{
			PixelFormats: []media.PixelFormat{ep.PixelFormat},
			Width:        ep.Width,
			Height:       ep.Height,
		}
	} else {
		out = filter.Output{
			SampleFormats: []media.SampleFormat{ep.SampleFormat},
			SampleRate:    ep.SampleRate,
			ChannelLayout: ep.ChannelLayout,
		}
	}
	g, err := filter.Build(spec, in, out)
	if err != nil {
		return setupErr("build filter graph", sp.index, err)
	}
	sp.graph = g
	return nil
}

func (t *Transcoder) logStream(ctx context.Context, sp *StreamPipeline) {
	outCodec := sp.out.Params.CodecID
	trace.SpanFromContext(ctx).AddEvent("stream", trace.WithAttributes(
		telemetry.StreamAttributes(sp.index, string(sp.mediaType), sp.Mode(),
			string(sp.in.Params.CodecID), string(outCodec))...))
	ev := sp.log.Info().
		Str(xglog.FieldEvent, "stream.setup").
		Str(xglog.FieldMode, sp.Mode()).
		Str(xglog.FieldCodec, string(sp.in.Params.CodecID)).
		Str(xglog.FieldTimeBase, sp.in.TimeBase.String())
	if sp.Transcoding() {
		ev = ev.Str(xglog.FieldEncoder, string(outCodec)).
			Str(xglog.FieldFilter, sp.FilterDescription())
		if sp.mediaType == media.MediaTypeVideo {
			ev = ev.Str(xglog.FieldResolution, fmt.Sprintf("%dx%d", sp.out.Params.Width, sp.out.Params.Height)).
				Str(xglog.FieldPixFmt, string(sp.out.Params.PixelFormat))
		} else {
			ev = ev.Int(xglog.FieldSampleRate, sp.out.Params.SampleRate)
		}
	}
	ev.Msg("stream configured")
}

// Run moves every input packet through its stream pipeline, flushes all
// streams in index order and writes the trailer. It does not release
// resources; call Close.
func (t *Transcoder) Run(ctx context.Context) error {
	ctx, span := t.tracer.Start(ctx, "transcode.run",
		trace.WithAttributes(telemetry.RunAttributes(t.opts.RunID, t.opts.InputPath, t.opts.OutputPath)...))
	defer span.End()

	err := t.run(ctx)
	if err != nil {
		stage := StageOf(err)
		if stage != "" {
			metrics.StageErrors.WithLabelValues(string(stage)).Inc()
		}
		telemetry.RecordError(span, err, string(stage))
		t.log.Error().Err(err).
			Str(xglog.FieldEvent, "transcode.failed").
			Str(xglog.FieldStage, string(stage)).
			Msg("transcode aborted")
		return err
	}
	return nil
}

func (t *Transcoder) run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		pkt, err := t.input.ReadPacket(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stageErr(StageDemux, noStream, err)
		}
		if pkt.StreamIndex < 0 || pkt.StreamIndex >= len(t.streams) {
			return stageErr(StageDemux, pkt.StreamIndex, errors.New("packet for undeclared stream"))
		}
		sp := t.streams[pkt.StreamIndex]
		metrics.PacketsRead.WithLabelValues(string(sp.mediaType)).Inc()
		if err := sp.HandlePacket(ctx, pkt); err != nil {
			return err
		}
		t.read++
		t.progress.Do(t.logProgress)
	}
	return t.flush(ctx)
}

func (t *Transcoder) logProgress() {
	t.log.Debug().
		Str(xglog.FieldEvent, "transcode.progress").
		Int64("packets_read", t.read).
		Int64("bytes_written", t.output.BytesWritten()).
		Dur("elapsed", time.Since(t.started)).
		Msg("transcoding")
}

func (t *Transcoder) flush(ctx context.Context) error {
	ctx, span := t.tracer.Start(ctx, "transcode.flush")
	defer span.End()
	for _, sp := range t.streams {
		if err := sp.Finish(ctx); err != nil {
			return err
		}
	}
	if err := t.output.WriteTrailer(); err != nil {
		return stageErr(StageMux, noStream, err)
	}
	t.log.Info().
		Str(xglog.FieldEvent, "transcode.trailer").
		Int64("bytes", t.output.BytesWritten()).
		Msg("output finalized")
	return nil
}

// Close releases every stream pipeline (encoder, filter graph, decoder),
// then the output, then the input. It runs once; later calls return the
// first result. An output closed before its trailer stays on disk.
func (t *Transcoder) Close() error {
	t.closeOnce.Do(func() {
		ctx, span := t.tracer.Start(context.Background(), "transcode.teardown")
		defer span.End()
		var errs []error
		for _, sp := range t.streams {
			errs = append(errs, sp.release(ctx))
		}
		if t.output != nil {
			errs = append(errs, wrapClose("output", t.output.Close()))
		}
		if t.input != nil {
			errs = append(errs, wrapClose("input", t.input.Close()))
		}
		t.closeErr = errors.Join(errs...)
		if t.closeErr != nil {
			telemetry.RecordError(span, t.closeErr, "teardown")
		}
	})
	return t.closeErr
}

// Streams exposes the stream pipelines in index order.
func (t *Transcoder) Streams() []*StreamPipeline {
	return t.streams
}

// Summary reports what the run has done so far.
func (t *Transcoder) Summary() Summary {
	s := Summary{
		RunID:    t.opts.RunID,
		Input:    t.opts.InputPath,
		Output:   t.opts.OutputPath,
		Duration: time.Since(t.started),
	}
	if t.output != nil {
		s.BytesWritten = t.output.BytesWritten()
	}
	for _, sp := range t.streams {
		s.Streams = append(s.Streams, StreamSummary{
			Index:       sp.index,
			MediaType:   sp.mediaType,
			Mode:        sp.Mode(),
			InputCodec:  sp.in.Params.CodecID,
			OutputCodec: sp.out.Params.CodecID,
			Filter:      sp.FilterDescription(),
			State:       sp.State(),
			Stats:       sp.Stats(),
		})
	}
	return s
}

// Transcode runs a whole job: setup, data path, flush, trailer and
// teardown. Teardown always happens; its errors are joined with the run
// error.
func Transcode(ctx context.Context, opts Options) (Summary, error) {
	start := time.Now()
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	ctx = xglog.ContextWithRunID(ctx, opts.RunID)

	t, err := New(ctx, opts)
	if err != nil {
		metrics.ObserveRun(outcomeFor(err), time.Since(start))
		return Summary{RunID: opts.RunID, Input: opts.InputPath, Output: opts.OutputPath}, err
	}
	runErr := t.Run(ctx)
	closeErr := t.Close()
	sum := t.Summary()
	sum.Duration = time.Since(start)
	err = errors.Join(runErr, closeErr)
	metrics.ObserveRun(outcomeFor(err), sum.Duration)
	return sum, err
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeCanceled
	default:
		return metrics.OutcomeFailed
	}
}
