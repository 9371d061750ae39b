// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package filter

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ManuGH/xgtranscode/internal/convert"
	"github.com/ManuGH/xgtranscode/internal/media"
)

// filter is one stage of a chain.
type filter interface {
	process(f *media.Frame) ([]*media.Frame, error)
	// flush releases anything still held at end of stream.
	flush() ([]*media.Frame, error)
}

type definition struct {
	video bool
	build func(args string, in format) (filter, format, error)
}

var builtins = map[string]definition{
	"null":     {video: true, build: buildPassthrough},
	"anull":    {video: false, build: buildPassthrough},
	"format":   {video: true, build: buildFormat},
	"scale":    {video: true, build: buildScale},
	"hflip":    {video: true, build: buildFlip(true, false)},
	"vflip":    {video: true, build: buildFlip(false, true)},
	"reverse":  {video: true, build: buildReverse},
	"volume":   {video: false, build: buildVolume},
	"aformat":  {video: false, build: buildAformat},
	"areverse": {video: false, build: buildReverse},
}

// stateless adapts a per-frame function to the filter interface.
type stateless func(f *media.Frame) (*media.Frame, error)

func (s stateless) process(f *media.Frame) ([]*media.Frame, error) {
	out, err := s(f)
	if err != nil {
		return nil, err
	}
	return []*media.Frame{out}, nil
}

func (s stateless) flush() ([]*media.Frame, error) { return nil, nil }

func buildPassthrough(args string, in format) (filter, format, error) {
	if args != "" {
		return nil, in, fmt.Errorf("takes no arguments")
	}
	return stateless(func(f *media.Frame) (*media.Frame, error) { return f, nil }), in, nil
}

func buildFormat(args string, in format) (filter, format, error) {
	opts, err := parseArgs(args, "pix_fmts")
	if err != nil {
		return nil, in, err
	}
	list := strings.Split(opts["pix_fmts"], "|")
	var target media.PixelFormat
	for _, name := range list {
		pf := media.PixelFormat(strings.TrimSpace(name))
		if !pf.Supported() {
			return nil, in, fmt.Errorf("unsupported pixel format %q", name)
		}
		if pf == in.pixfmt {
			target = pf
			break
		}
		if target == "" {
			target = pf
		}
	}
	out := in
	out.pixfmt = target
	return stateless(func(f *media.Frame) (*media.Frame, error) {
		return convert.Pixels(f, target)
	}), out, nil
}

func buildScale(args string, in format) (filter, format, error) {
	opts, err := parseArgs(args, "w", "h")
	if err != nil {
		return nil, in, err
	}
	w, err := dimension(opts["w"], in.width, in.width, in.height)
	if err != nil {
		return nil, in, fmt.Errorf("width: %w", err)
	}
	h, err := dimension(opts["h"], in.height, in.width, in.height)
	if err != nil {
		return nil, in, fmt.Errorf("height: %w", err)
	}
	switch {
	case w < 0 && h < 0:
		w, h = in.width, in.height
	case w < 0:
		w = max(1, int(math.Round(float64(h)*float64(in.width)/float64(in.height))))
	case h < 0:
		h = max(1, int(math.Round(float64(w)*float64(in.height)/float64(in.width))))
	}
	if w == 0 || h == 0 {
		return nil, in, fmt.Errorf("invalid size %dx%d", w, h)
	}
	out := in
	out.width, out.height = w, h
	return stateless(func(f *media.Frame) (*media.Frame, error) {
		return convert.Scale(f, w, h)
	}), out, nil
}

// dimension parses a scale operand: a positive integer, -1 to keep the
// aspect ratio, or iw/ih for the input size. Empty keeps def.
func dimension(s string, def, iw, ih int) (int, error) {
	switch s {
	case "":
		return def, nil
	case "iw", "in_w":
		return iw, nil
	case "ih", "in_h":
		return ih, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", s)
	}
	if v == -1 {
		return -1, nil
	}
	if v <= 0 {
		return 0, fmt.Errorf("value %d must be positive or -1", v)
	}
	return v, nil
}

func buildFlip(horizontal, vertical bool) func(string, format) (filter, format, error) {
	return func(args string, in format) (filter, format, error) {
		if args != "" {
			return nil, in, fmt.Errorf("takes no arguments")
		}
		return stateless(func(f *media.Frame) (*media.Frame, error) {
			return f, convert.Flip(f, horizontal, vertical)
		}), in, nil
	}
}

func buildVolume(args string, in format) (filter, format, error) {
	opts, err := parseArgs(args, "volume")
	if err != nil {
		return nil, in, err
	}
	raw := opts["volume"]
	if raw == "" {
		raw = "1"
	}
	gain, err := parseGain(raw)
	if err != nil {
		return nil, in, err
	}
	return stateless(func(f *media.Frame) (*media.Frame, error) {
		n := f.NbSamples * f.ChannelLayout.Channels()
		for i := 0; i < n; i++ {
			v, err := convert.ReadSample(f.Data[0], f.SampleFormat, i)
			if err != nil {
				return nil, err
			}
			convert.WriteSample(f.Data[0], f.SampleFormat, i, v*gain)
		}
		return f, nil
	}), in, nil
}

// parseGain accepts a linear factor or a value in decibels ("-6dB").
func parseGain(s string) (float64, error) {
	if db, ok := strings.CutSuffix(strings.ToLower(s), "db"); ok {
		v, err := strconv.ParseFloat(db, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid gain %q", s)
		}
		return math.Pow(10, v/20), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid gain %q", s)
	}
	return v, nil
}

func buildAformat(args string, in format) (filter, format, error) {
	opts, err := parseArgs(args, "sample_fmts")
	if err != nil {
		return nil, in, err
	}
	if r := opts["sample_rates"]; r != "" && r != strconv.Itoa(in.sampleRate) {
		return nil, in, fmt.Errorf("resampling to %s Hz is not supported", r)
	}
	target := in.sampleFmt
	if list := opts["sample_fmts"]; list != "" {
		target = ""
		for _, name := range strings.Split(list, "|") {
			sf := media.SampleFormat(strings.TrimSpace(name))
			if sf.BytesPerSample() == 0 {
				return nil, in, fmt.Errorf("unsupported sample format %q", name)
			}
			if sf == in.sampleFmt {
				target = sf
				break
			}
			if target == "" {
				target = sf
			}
		}
	}
	out := in
	out.sampleFmt = target
	return stateless(func(f *media.Frame) (*media.Frame, error) {
		return convert.Samples(f, target)
	}), out, nil
}

// reverse holds every frame until end of stream and then releases them in
// reverse order, reassigning the original timestamps in ascending order.
// For audio the samples inside each frame are reversed as well.
type reverse struct {
	frames []*media.Frame
	pts    []int64
}

func buildReverse(args string, in format) (filter, format, error) {
	if args != "" {
		return nil, in, fmt.Errorf("takes no arguments")
	}
	return &reverse{}, in, nil
}

func (r *reverse) process(f *media.Frame) ([]*media.Frame, error) {
	r.frames = append(r.frames, f)
	r.pts = append(r.pts, f.PTS)
	return nil, nil
}

func (r *reverse) flush() ([]*media.Frame, error) {
	out := make([]*media.Frame, 0, len(r.frames))
	for i := len(r.frames) - 1; i >= 0; i-- {
		f := r.frames[i]
		f.PTS = r.pts[len(out)]
		if f.MediaType == media.MediaTypeAudio {
			reverseSamples(f)
		}
		out = append(out, f)
	}
	r.reset()
	return out, nil
}

func (r *reverse) reset() {
	r.frames = nil
	r.pts = nil
}

func reverseSamples(f *media.Frame) {
	block := f.ChannelLayout.Channels() * f.SampleFormat.BytesPerSample()
	buf := f.Data[0]
	tmp := make([]byte, block)
	for l, h := 0, f.NbSamples-1; l < h; l, h = l+1, h-1 {
		a := buf[l*block : (l+1)*block]
		b := buf[h*block : (h+1)*block]
		copy(tmp, a)
		copy(a, b)
		copy(b, tmp)
	}
}
