// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package filter runs linear chains of frame filters between a decoder and
// an encoder.
package filter

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ManuGH/xgtranscode/internal/media"
)

// ErrFlushed is returned when frames are pushed after end of stream.
var ErrFlushed = errors.New("filter graph already flushed")

// Input describes the frames that will be pushed into a graph.
type Input struct {
	MediaType         media.MediaType
	TimeBase          media.Rational
	Width             int
	Height            int
	PixelFormat       media.PixelFormat
	SampleAspectRatio media.Rational
	SampleFormat      media.SampleFormat
	SampleRate        int
	ChannelLayout     media.ChannelLayout
}

// Output constrains the frames pulled from a graph. Zero fields are
// unconstrained.
type Output struct {
	PixelFormats  []media.PixelFormat
	Width         int
	Height        int
	SampleFormats []media.SampleFormat
	SampleRate    int
	ChannelLayout media.ChannelLayout
}

// Graph is a configured filter chain. It is not safe for concurrent use.
type Graph struct {
	in      format
	tb      media.Rational
	chain   []filter
	names   []string
	pending []*media.Frame
	flushed bool
	closed  bool
}

// ChainOutput reports what the user chain in spec produces from in, before
// any sink negotiation. Encoders without explicit geometry take their size
// from it.
func ChainOutput(spec string, in Input) (Input, error) {
	g, state, err := buildChain(spec, in)
	if err != nil {
		return Input{}, err
	}
	_ = g.Close()
	out := in
	out.Width, out.Height = state.width, state.height
	out.PixelFormat = state.pixfmt
	out.SampleAspectRatio = state.sar
	out.SampleFormat = state.sampleFmt
	out.SampleRate = state.sampleRate
	out.ChannelLayout = state.layout
	return out, nil
}

// Build parses spec and configures a chain from in to out. When the last
// user filter does not already produce what out requires, scale, format
// and aformat steps are appended.
func Build(spec string, in Input, out Output) (*Graph, error) {
	g, state, err := buildChain(spec, in)
	if err != nil {
		return nil, err
	}
	if err := g.negotiate(state, out); err != nil {
		return nil, err
	}
	return g, nil
}

func buildChain(spec string, in Input) (*Graph, format, error) {
	if !in.MediaType.Transcodable() {
		return nil, format{}, fmt.Errorf("cannot filter %s streams", in.MediaType)
	}
	if !in.TimeBase.Valid() {
		return nil, format{}, fmt.Errorf("invalid input time base %s", in.TimeBase)
	}
	if strings.TrimSpace(spec) == "" {
		spec = passthroughName(in.MediaType == media.MediaTypeVideo)
	}
	nodes, err := Parse(spec)
	if err != nil {
		return nil, format{}, err
	}
	g := &Graph{in: formatOf(in), tb: in.TimeBase}
	state := g.in
	for _, n := range nodes {
		if state, err = g.add(n, state); err != nil {
			return nil, format{}, err
		}
	}
	return g, state, nil
}

func (g *Graph) add(n Node, in format) (format, error) {
	def, ok := builtins[n.Name]
	if !ok {
		return in, fmt.Errorf("%w: %q", ErrUnknownFilter, n.Name)
	}
	isVideo := in.mediaType == media.MediaTypeVideo
	if def.video != isVideo {
		return in, fmt.Errorf("filter %q does not accept %s input", n.Name, kindName(isVideo))
	}
	f, outFmt, err := def.build(n.Args, in)
	if err != nil {
		return in, fmt.Errorf("configure %s: %w", n, err)
	}
	g.chain = append(g.chain, f)
	g.names = append(g.names, n.String())
	return outFmt, nil
}

// negotiate appends conversions so the sink receives what out requires.
func (g *Graph) negotiate(state format, out Output) error {
	var err error
	if state.mediaType == media.MediaTypeVideo {
		if (out.Width > 0 && out.Width != state.width) || (out.Height > 0 && out.Height != state.height) {
			w, h := out.Width, out.Height
			if w <= 0 {
				w = state.width
			}
			if h <= 0 {
				h = state.height
			}
			if state, err = g.add(Node{Name: "scale", Args: fmt.Sprintf("%d:%d", w, h)}, state); err != nil {
				return err
			}
		}
		if len(out.PixelFormats) > 0 && !slices.Contains(out.PixelFormats, state.pixfmt) {
			if _, err = g.add(Node{Name: "format", Args: string(out.PixelFormats[0])}, state); err != nil {
				return err
			}
		}
		return nil
	}
	if out.SampleRate > 0 && out.SampleRate != state.sampleRate {
		return fmt.Errorf("sink wants %d Hz but chain produces %d Hz: resampling is not supported", out.SampleRate, state.sampleRate)
	}
	if out.ChannelLayout != 0 && out.ChannelLayout != state.layout {
		return fmt.Errorf("sink wants layout %s but chain produces %s: remixing is not supported", out.ChannelLayout, state.layout)
	}
	if len(out.SampleFormats) > 0 && !slices.Contains(out.SampleFormats, state.sampleFmt) {
		if _, err = g.add(Node{Name: "aformat", Args: "sample_fmts=" + string(out.SampleFormats[0])}, state); err != nil {
			return err
		}
	}
	return nil
}

// Push feeds one frame into the chain; nil marks end of stream and flushes
// every stage. The graph takes ownership of the frame.
func (g *Graph) Push(f *media.Frame) error {
	if g.closed {
		return errors.New("filter graph closed")
	}
	if g.flushed {
		return ErrFlushed
	}
	if f == nil {
		g.flushed = true
		return g.flush()
	}
	if err := g.in.check(f); err != nil {
		return err
	}
	out, err := g.run(0, []*media.Frame{f})
	if err != nil {
		return err
	}
	g.pending = append(g.pending, out...)
	return nil
}

// Pull returns the next filtered frame. media.NotYet means more input is
// required; media.End means the graph has been flushed and emptied.
func (g *Graph) Pull() (*media.Frame, media.Outcome, error) {
	if g.closed {
		return nil, media.End, errors.New("filter graph closed")
	}
	if len(g.pending) > 0 {
		f := g.pending[0]
		g.pending[0] = nil
		g.pending = g.pending[1:]
		return f, media.Ready, nil
	}
	if g.flushed {
		return nil, media.End, nil
	}
	return nil, media.NotYet, nil
}

// TimeBase is the time base of frames pulled from the graph.
func (g *Graph) TimeBase() media.Rational {
	return g.tb
}

// String describes the configured chain including negotiated steps.
func (g *Graph) String() string {
	return strings.Join(g.names, ",")
}

// Close releases buffered frames.
func (g *Graph) Close() error {
	g.closed = true
	g.pending = nil
	for _, f := range g.chain {
		if c, ok := f.(interface{ reset() }); ok {
			c.reset()
		}
	}
	return nil
}

func (g *Graph) run(start int, frames []*media.Frame) ([]*media.Frame, error) {
	for i := start; i < len(g.chain) && len(frames) > 0; i++ {
		var next []*media.Frame
		for _, f := range frames {
			out, err := g.chain[i].process(f)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", g.names[i], err)
			}
			next = append(next, out...)
		}
		frames = next
	}
	return frames, nil
}

// flush drains each stage in order, feeding what it releases through the
// stages after it.
func (g *Graph) flush() error {
	for i, f := range g.chain {
		held, err := f.flush()
		if err != nil {
			return fmt.Errorf("%s: flush: %w", g.names[i], err)
		}
		out, err := g.run(i+1, held)
		if err != nil {
			return err
		}
		g.pending = append(g.pending, out...)
	}
	return nil
}

func passthroughName(video bool) string {
	if video {
		return "null"
	}
	return "anull"
}

// format is the static description of frames flowing between two stages.
type format struct {
	mediaType  media.MediaType
	width      int
	height     int
	pixfmt     media.PixelFormat
	sar        media.Rational
	sampleFmt  media.SampleFormat
	sampleRate int
	layout     media.ChannelLayout
}

func formatOf(in Input) format {
	return format{
		mediaType:  in.MediaType,
		width:      in.Width,
		height:     in.Height,
		pixfmt:     in.PixelFormat,
		sar:        in.SampleAspectRatio,
		sampleFmt:  in.SampleFormat,
		sampleRate: in.SampleRate,
		layout:     in.ChannelLayout,
	}
}

func (s format) check(f *media.Frame) error {
	if f.MediaType != s.mediaType {
		return fmt.Errorf("%s frame pushed into %s graph", f.MediaType, s.mediaType)
	}
	if s.mediaType == media.MediaTypeVideo {
		if f.Width != s.width || f.Height != s.height || f.PixelFormat != s.pixfmt {
			return fmt.Errorf("frame %dx%d %s does not match graph input %dx%d %s",
				f.Width, f.Height, f.PixelFormat, s.width, s.height, s.pixfmt)
		}
		return nil
	}
	if f.SampleFormat != s.sampleFmt || f.SampleRate != s.sampleRate || f.ChannelLayout != s.layout {
		return fmt.Errorf("frame %s/%d/%s does not match graph input %s/%d/%s",
			f.SampleFormat, f.SampleRate, f.ChannelLayout, s.sampleFmt, s.sampleRate, s.layout)
	}
	return nil
}
