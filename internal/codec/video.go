// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package codec

import (
	"bytes"
	"fmt"
	"io"
	"slices"

	"github.com/klauspost/compress/zlib"

	"github.com/ManuGH/xgtranscode/internal/media"
)

const (
	RawVideo media.CodecID = "rawvideo"
	Zlib     media.CodecID = "zlib"
)

// zlibMagic prefixes the zlib codec extradata.
var zlibMagic = []byte("XZLB")

const zlibExtraVersion = 1

func registerRawVideo(r *Registry) {
	desc := Descriptor{ID: RawVideo, MediaType: media.MediaTypeVideo, LongName: "raw video"}
	r.RegisterDecoder(DecoderFactory{
		Descriptor: desc,
		New: func(cfg DecoderConfig) (Decoder, error) {
			return newVideoDecoder(cfg, func(b []byte) ([]byte, error) { return b, nil })
		},
	})
	r.RegisterEncoder(EncoderFactory{
		Descriptor: desc,
		New: func(cfg EncoderConfig) (Encoder, error) {
			cfg.Params.CodecID = RawVideo
			return newVideoEncoder(cfg, nil, func(b []byte) ([]byte, error) { return b, nil })
		},
	})
}

func registerZlib(r *Registry) {
	desc := Descriptor{ID: Zlib, MediaType: media.MediaTypeVideo, LongName: "zlib-compressed raw video"}
	formats := []media.PixelFormat{
		media.PixelFormatYUV420P,
		media.PixelFormatYUV444P,
		media.PixelFormatRGB24,
		media.PixelFormatGray,
	}
	r.RegisterDecoder(DecoderFactory{
		Descriptor: desc,
		New: func(cfg DecoderConfig) (Decoder, error) {
			if len(cfg.Params.ExtraData) > 0 && !bytes.HasPrefix(cfg.Params.ExtraData, zlibMagic) {
				return nil, fmt.Errorf("zlib: unrecognised extradata")
			}
			return newVideoDecoder(cfg, inflate)
		},
	})
	r.RegisterEncoder(EncoderFactory{
		Descriptor:   desc,
		PixelFormats: formats,
		New: func(cfg EncoderConfig) (Encoder, error) {
			cfg.Params.CodecID = Zlib
			level := zlib.DefaultCompression
			if cfg.Params.BitRate > 0 && cfg.Params.BitRate < 1_000_000 {
				level = zlib.BestCompression
			}
			if err := checkFormat(formats, cfg.Params.PixelFormat); err != nil {
				return nil, err
			}
			var extra []byte
			if cfg.GlobalHeader {
				extra = append(bytes.Clone(zlibMagic), zlibExtraVersion, byte(level))
			}
			return newVideoEncoder(cfg, extra, func(b []byte) ([]byte, error) { return deflate(b, level) })
		},
	})
}

func newVideoDecoder(cfg DecoderConfig, unwrap func([]byte) ([]byte, error)) (Decoder, error) {
	p := cfg.Params
	if _, err := p.PixelFormat.FrameSize(p.Width, p.Height); err != nil || p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("%s: invalid picture parameters %dx%d %q", p.CodecID, p.Width, p.Height, string(p.PixelFormat))
	}
	return newQueuedDecoder(cfg, func(pkt *media.Packet) ([]*media.Frame, error) {
		payload, err := unwrap(pkt.Data)
		if err != nil {
			return nil, err
		}
		f, err := media.NewVideoFrame(p.PixelFormat, p.Width, p.Height)
		if err != nil {
			return nil, err
		}
		if err := f.Unpack(payload); err != nil {
			return nil, err
		}
		f.SampleAspectRatio = p.SampleAspectRatio
		if pkt.IsKey() {
			f.PictureType = media.PictureI
		}
		return []*media.Frame{f}, nil
	}), nil
}

func newVideoEncoder(cfg EncoderConfig, extra []byte, wrap func([]byte) ([]byte, error)) (Encoder, error) {
	p := cfg.Params.Clone()
	p.MediaType = media.MediaTypeVideo
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("%s: invalid picture size %dx%d", p.CodecID, p.Width, p.Height)
	}
	if !p.PixelFormat.Supported() {
		return nil, fmt.Errorf("%s: unsupported pixel format %q", p.CodecID, string(p.PixelFormat))
	}
	if !cfg.TimeBase.Valid() {
		return nil, fmt.Errorf("%s: invalid time base %s", p.CodecID, cfg.TimeBase)
	}
	if extra != nil {
		p.ExtraData = extra
	}
	var frameDur int64
	if p.FrameRate.Valid() {
		frameDur = media.Rescale(1, p.FrameRate.Invert(), cfg.TimeBase)
	}
	enc := &queuedEncoder{tb: cfg.TimeBase, params: p, depth: defaultQueueDepth}
	enc.encode = func(f *media.Frame) ([]*media.Packet, error) {
		if f.Width != p.Width || f.Height != p.Height || f.PixelFormat != p.PixelFormat {
			return nil, fmt.Errorf("frame %dx%d %s does not match encoder %dx%d %s",
				f.Width, f.Height, f.PixelFormat, p.Width, p.Height, p.PixelFormat)
		}
		raw, err := f.Pack()
		if err != nil {
			return nil, err
		}
		data, err := wrap(raw)
		if err != nil {
			return nil, err
		}
		dur := frameDur
		if dur == 0 {
			dur = f.Duration
		}
		return []*media.Packet{{
			PTS:      f.PTS,
			DTS:      f.PTS,
			Duration: dur,
			Flags:    media.PacketKey,
			Data:     data,
		}}, nil
	}
	return enc, nil
}

func checkFormat(formats []media.PixelFormat, pf media.PixelFormat) error {
	if !slices.Contains(formats, pf) {
		return fmt.Errorf("pixel format %q not supported, want one of %v", string(pf), formats)
	}
	return nil
}

func deflate(b []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func inflate(b []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
