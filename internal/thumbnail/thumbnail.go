// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package thumbnail extracts one filtered video frame as a PPM still.
package thumbnail

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"

	"github.com/ManuGH/xgtranscode/internal/convert"
	xglog "github.com/ManuGH/xgtranscode/internal/log"
	"github.com/ManuGH/xgtranscode/internal/media"
	"github.com/ManuGH/xgtranscode/internal/metrics"
)

// DefaultPattern names the still after the requested frame ordinal.
const DefaultPattern = "thumbnail_frame_%d.ppm"

// AutoStream follows the first video stream that delivers a frame.
const AutoStream = -1

// Config selects the frame to capture.
type Config struct {
	// Index is the 1-based ordinal of the frame to capture. Zero disables
	// the sink.
	Index int
	// Dir receives the image. Empty means the working directory.
	Dir string
	// Pattern is a fmt pattern taking Index.
	Pattern string
	// StreamIndex restricts counting to one stream, or AutoStream.
	StreamIndex int
}

// Sink counts video frames and writes the one whose ordinal equals
// Config.Index. Once it has fired it ignores further frames. Write
// failures are logged and counted, never returned.
type Sink struct {
	cfg Config

	mu     sync.Mutex
	stream int
	count  int
	fired  bool
	path   string
	err    error
}

// New returns a sink for cfg.
func New(cfg Config) *Sink {
	if cfg.Pattern == "" {
		cfg.Pattern = DefaultPattern
	}
	return &Sink{cfg: cfg, stream: cfg.StreamIndex}
}

// Enabled reports whether the sink can ever fire.
func (s *Sink) Enabled() bool {
	return s != nil && s.cfg.Index > 0
}

// Target returns the path the still is written to.
func (s *Sink) Target() string {
	return filepath.Join(s.cfg.Dir, fmt.Sprintf(s.cfg.Pattern, s.cfg.Index))
}

// ObserveFrame implements the pipeline frame observer. f is only read.
func (s *Sink) ObserveFrame(ctx context.Context, streamIndex int, f *media.Frame) {
	if !s.Enabled() || f == nil || f.MediaType != media.MediaTypeVideo {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fired {
		return
	}
	if s.stream == AutoStream {
		s.stream = streamIndex
	}
	if streamIndex != s.stream {
		return
	}
	s.count++
	if s.count != s.cfg.Index {
		return
	}
	s.fired = true

	logger := xglog.WithComponentFromContext(ctx, "thumbnail")
	path := s.Target()
	if err := writeFile(path, f); err != nil {
		s.err = err
		metrics.ThumbnailsWritten.WithLabelValues("failed").Inc()
		logger.Warn().Err(err).
			Str(xglog.FieldEvent, "thumbnail.failed").
			Str(xglog.FieldPath, path).
			Int(xglog.FieldStreamIndex, streamIndex).
			Msg("thumbnail not written")
		return
	}
	s.path = path
	metrics.ThumbnailsWritten.WithLabelValues("written").Inc()
	logger.Info().
		Str(xglog.FieldEvent, "thumbnail.written").
		Str(xglog.FieldPath, path).
		Int(xglog.FieldStreamIndex, streamIndex).
		Int("frame", s.count).
		Str(xglog.FieldResolution, fmt.Sprintf("%dx%d", f.Width, f.Height)).
		Msg("thumbnail written")
}

// Path returns the written image, or "" if none was produced.
func (s *Sink) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Count returns how many frames have been counted.
func (s *Sink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Err returns the write failure, if any.
func (s *Sink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func writeFile(path string, f *media.Frame) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create thumbnail dir: %w", err)
		}
	}
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending thumbnail: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	bw := bufio.NewWriter(pending)
	if err := WritePPM(bw, f); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write thumbnail: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace thumbnail: %w", err)
	}
	return nil
}

// WritePPM encodes f as a binary PPM (P6). Pictures that are not rgb24
// are converted first. Rows are read honouring the frame stride.
func WritePPM(w io.Writer, f *media.Frame) error {
	rgb, err := convert.Pixels(f, media.PixelFormatRGB24)
	if err != nil {
		return fmt.Errorf("convert thumbnail: %w", err)
	}
	if _, err := fmt.Fprintf(w, "P6\n%d %d\n255\n", rgb.Width, rgb.Height); err != nil {
		return err
	}
	row := rgb.Width * 3
	for y := 0; y < rgb.Height; y++ {
		off := y * rgb.Linesize[0]
		if _, err := w.Write(rgb.Data[0][off : off+row]); err != nil {
			return err
		}
	}
	return nil
}
