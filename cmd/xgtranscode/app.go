// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/ManuGH/xgtranscode/internal/config"
	"github.com/ManuGH/xgtranscode/internal/jobspec"
	xglog "github.com/ManuGH/xgtranscode/internal/log"
	"github.com/ManuGH/xgtranscode/internal/media"
	"github.com/ManuGH/xgtranscode/internal/metrics"
	"github.com/ManuGH/xgtranscode/internal/pipeline"
	"github.com/ManuGH/xgtranscode/internal/telemetry"
	"github.com/ManuGH/xgtranscode/internal/thumbnail"
	"github.com/ManuGH/xgtranscode/internal/version"
)

// flagValues holds command-line overrides. Empty values leave the loaded
// configuration untouched.
type flagValues struct {
	configPath  string
	logLevel    string
	logFormat   string
	metricsFile string
	thumbDir    string
	videoFilter string
	audioFilter string
	videoCodec  string
	audioCodec  string
}

// app carries state shared by every subcommand.
type app struct {
	stdout io.Writer
	stderr io.Writer
	flags  flagValues

	cfg       config.AppConfig
	loaded    bool
	telemetry *telemetry.Provider
	log       zerolog.Logger
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr, log: xglog.WithComponent("cli")}
}

// setup loads configuration, applies flag overrides and brings up the
// logger and tracing. It runs once per process.
func (a *app) setup(ctx context.Context) error {
	if a.loaded {
		return nil
	}
	xglog.Configure(xglog.Config{Level: a.flags.logLevel, Format: a.flags.logFormat, Output: a.stderr, Version: version.Version})

	cfg, err := config.NewLoader(strings.TrimSpace(a.flags.configPath), version.Version).Load()
	if err != nil {
		return err
	}
	override(&cfg.LogLevel, a.flags.logLevel)
	override(&cfg.LogFormat, a.flags.logFormat)
	override(&cfg.MetricsFile, a.flags.metricsFile)
	override(&cfg.ThumbnailDir, a.flags.thumbDir)
	override(&cfg.VideoFilter, a.flags.videoFilter)
	override(&cfg.AudioFilter, a.flags.audioFilter)
	override(&cfg.VideoCodec, a.flags.videoCodec)
	override(&cfg.AudioCodec, a.flags.audioCodec)
	if err := config.Validate(cfg); err != nil {
		return usageError{err}
	}
	a.cfg = cfg
	a.loaded = true

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Output:  a.stderr,
		Service: cfg.LogService,
		Version: cfg.Version,
	})
	a.log = xglog.WithComponent("cli")
	source := "env+defaults"
	if a.flags.configPath != "" {
		source = "file"
	}
	a.log.Debug().
		Str(xglog.FieldEvent, "config.loaded").
		Str("source", source).
		Str("config", cfg.String()).
		Msg("configuration loaded")

	tp, err := telemetry.NewProvider(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	a.telemetry = tp
	return nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// shutdown flushes spans and writes the metrics textfile.
func (a *app) shutdown() error {
	if !a.loaded {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var errs []error
	if err := a.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
	}
	if err := metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
		errs = append(errs, fmt.Errorf("write metrics file: %w", err))
	}
	return errors.Join(errs...)
}

// jobResult is what one transcode produced.
type jobResult struct {
	summary   pipeline.Summary
	thumbnail string
}

// jobOverrides replace configured values for one job. Empty fields keep
// the configuration.
type jobOverrides struct {
	videoFilter  string
	audioFilter  string
	thumbnailDir string
}

// transcode runs one job with the effective configuration.
func (a *app) transcode(ctx context.Context, spec jobspec.Spec, jo jobOverrides) (jobResult, error) {
	opts := pipeline.Options{
		InputPath:  spec.Input,
		OutputPath: spec.Output,
		Overrides: pipeline.Overrides{
			Width:   spec.Width,
			Height:  spec.Height,
			BitRate: spec.BitRate,
		},
		VideoFilter:  a.cfg.VideoFilter,
		AudioFilter:  a.cfg.AudioFilter,
		VideoEncoder: media.CodecID(a.cfg.VideoCodec),
		AudioEncoder: media.CodecID(a.cfg.AudioCodec),
	}
	override(&opts.VideoFilter, jo.videoFilter)
	override(&opts.AudioFilter, jo.audioFilter)
	thumbDir := a.cfg.ThumbnailDir
	override(&thumbDir, jo.thumbnailDir)

	sink := thumbnail.New(thumbnail.Config{
		Index:       spec.ThumbnailIndex,
		Dir:         thumbDir,
		Pattern:     a.cfg.ThumbnailPattern,
		StreamIndex: thumbnail.AutoStream,
	})
	if sink.Enabled() {
		opts.Observer = sink
	}

	sum, err := pipeline.Transcode(ctx, opts)
	res := jobResult{summary: sum, thumbnail: sink.Path()}
	if err != nil {
		return res, err
	}
	logger := xglog.WithContext(ctx, a.log)
	logger.Info().
		Str(xglog.FieldEvent, "transcode.done").
		Str(xglog.FieldRunID, sum.RunID).
		Str(xglog.FieldOutputPath, sum.Output).
		Int64("packets", sum.PacketsOut()).
		Str("size", humanize.Bytes(uint64(sum.BytesWritten))).
		Dur("duration", sum.Duration).
		Msg("transcode finished")
	if sink.Enabled() && res.thumbnail == "" && sink.Err() == nil {
		logger.Warn().
			Str(xglog.FieldEvent, "thumbnail.missed").
			Int("requested", spec.ThumbnailIndex).
			Int("frames", sink.Count()).
			Msg("requested thumbnail frame never occurred")
	}
	return res, nil
}

func (a *app) printSummary(res jobResult) {
	s := res.summary
	fmt.Fprintf(a.stdout, "%s -> %s: %d packets, %s in %s\n",
		s.Input, s.Output, s.PacketsOut(), humanize.Bytes(uint64(s.BytesWritten)), s.Duration.Round(time.Millisecond))
	for _, st := range s.Streams {
		codecs := string(st.InputCodec)
		if st.Mode == pipeline.ModeTranscode {
			codecs += " -> " + string(st.OutputCodec)
		}
		line := fmt.Sprintf("  #%d %-8s %-9s %-24s in=%d out=%d",
			st.Index, st.MediaType, st.Mode, codecs, st.Stats.PacketsIn, st.Stats.PacketsOut)
		if st.Filter != "" {
			line += " filter=" + st.Filter
		}
		fmt.Fprintln(a.stdout, line)
	}
	if res.thumbnail != "" {
		fmt.Fprintf(a.stdout, "  thumbnail: %s\n", res.thumbnail)
	}
}

func (a *app) reportError(err error) {
	fmt.Fprintf(a.stderr, "xgtranscode: %v\n", err)
}

// usageError marks errors caused by malformed invocations.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func isUsage(err error) bool {
	var ue usageError
	return errors.As(err, &ue) || errors.Is(err, jobspec.ErrUsage)
}
