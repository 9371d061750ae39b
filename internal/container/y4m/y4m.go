// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package y4m reads and writes YUV4MPEG2 streams: a single rawvideo stream
// with one uncompressed picture per FRAME record.
package y4m

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ManuGH/xgtranscode/internal/media"
)

const (
	magic       = "YUV4MPEG2"
	frameMarker = "FRAME"
	codecRaw    = media.CodecID("rawvideo")
	maxHeader   = 4096
)

var colorspaces = map[string]media.PixelFormat{
	"420":      media.PixelFormatYUV420P,
	"420jpeg":  media.PixelFormatYUV420P,
	"420paldv": media.PixelFormatYUV420P,
	"420mpeg2": media.PixelFormatYUV420P,
	"444":      media.PixelFormatYUV444P,
	"mono":     media.PixelFormatGray,
}

func colorspaceOf(pf media.PixelFormat) (string, error) {
	switch pf {
	case media.PixelFormatYUV420P:
		return "420jpeg", nil
	case media.PixelFormatYUV444P:
		return "444", nil
	case media.PixelFormatGray:
		return "mono", nil
	default:
		return "", fmt.Errorf("y4m: pixel format %q cannot be stored", string(pf))
	}
}

// Reader demuxes a YUV4MPEG2 file.
type Reader struct {
	f         *os.File
	br        *bufio.Reader
	stream    media.StreamDescriptor
	frameSize int
	next      int64
}

// Open parses the stream header of path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("y4m: %w", err)
	}
	r := &Reader{f: f, br: bufio.NewReader(f)}
	if err := r.readHeader(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) readHeader() error {
	line, err := readLine(r.br)
	if err != nil {
		return fmt.Errorf("y4m: read header: %w", err)
	}
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != magic {
		return errors.New("y4m: missing YUV4MPEG2 signature")
	}
	p := media.CodecParameters{
		MediaType:         media.MediaTypeVideo,
		CodecID:           codecRaw,
		PixelFormat:       media.PixelFormatYUV420P,
		SampleAspectRatio: media.R(0, 1),
	}
	for _, tok := range fields[1:] {
		key, val := tok[0], tok[1:]
		switch key {
		case 'W':
			p.Width, err = strconv.Atoi(val)
		case 'H':
			p.Height, err = strconv.Atoi(val)
		case 'F':
			p.FrameRate, err = parseRatio(val)
		case 'A':
			p.SampleAspectRatio, err = parseRatio(val)
		case 'C':
			pf, ok := colorspaces[val]
			if !ok {
				return fmt.Errorf("y4m: unsupported colorspace %q", val)
			}
			p.PixelFormat = pf
		case 'I':
			if val != "p" && val != "?" {
				return fmt.Errorf("y4m: interlaced input %q is not supported", val)
			}
		}
		if err != nil {
			return fmt.Errorf("y4m: header field %q: %w", tok, err)
		}
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("y4m: invalid size %dx%d", p.Width, p.Height)
	}
	if !p.FrameRate.Valid() {
		return fmt.Errorf("y4m: invalid frame rate %s", p.FrameRate)
	}
	size, err := p.PixelFormat.FrameSize(p.Width, p.Height)
	if err != nil {
		return err
	}
	r.frameSize = size
	r.stream = media.StreamDescriptor{Index: 0, TimeBase: p.FrameRate.Invert().Reduce(), Params: p}
	return nil
}

// Streams returns the single video stream.
func (r *Reader) Streams() []media.StreamDescriptor {
	return []media.StreamDescriptor{r.stream.Clone()}
}

// ReadPacket returns the next picture, or io.EOF at a clean end of file.
func (r *Reader) ReadPacket(ctx context.Context) (*media.Packet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	line, err := readLine(r.br)
	if err != nil {
		if errors.Is(err, io.EOF) && line == "" {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("y4m: frame %d header: %w", r.next, io.ErrUnexpectedEOF)
	}
	if !strings.HasPrefix(line, frameMarker) {
		return nil, fmt.Errorf("y4m: frame %d: expected FRAME marker", r.next)
	}
	data := make([]byte, r.frameSize)
	if _, err := io.ReadFull(r.br, data); err != nil {
		return nil, fmt.Errorf("y4m: frame %d payload: %w", r.next, io.ErrUnexpectedEOF)
	}
	pkt := &media.Packet{
		StreamIndex: 0,
		PTS:         r.next,
		DTS:         r.next,
		Duration:    1,
		Flags:       media.PacketKey,
		Data:        data,
	}
	r.next++
	return pkt, nil
}

// Close closes the file.
func (r *Reader) Close() error {
	return r.f.Close()
}

// Writer muxes one rawvideo stream into a YUV4MPEG2 file.
type Writer struct {
	f         *os.File
	bw        *bufio.Writer
	frameSize int
}

// Create truncates path for writing.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("y4m: %w", err)
	}
	return &Writer{f: f, bw: bufio.NewWriter(f)}, nil
}

// WriteHeader writes the stream header. Exactly one rawvideo stream is accepted.
func (w *Writer) WriteHeader(streams []media.StreamDescriptor) error {
	if len(streams) != 1 {
		return fmt.Errorf("y4m: exactly one stream required, got %d", len(streams))
	}
	p := streams[0].Params
	if p.MediaType != media.MediaTypeVideo || p.CodecID != codecRaw {
		return fmt.Errorf("y4m: only rawvideo can be stored, got %s %s", p.MediaType, p.CodecID)
	}
	cs, err := colorspaceOf(p.PixelFormat)
	if err != nil {
		return err
	}
	rate := p.FrameRate
	if !rate.Valid() {
		rate = streams[0].TimeBase.Invert()
	}
	sar := p.SampleAspectRatio
	if !sar.Valid() {
		sar = media.R(0, 0)
	}
	w.frameSize, _ = p.PixelFormat.FrameSize(p.Width, p.Height)
	_, err = fmt.Fprintf(w.bw, "%s W%d H%d F%d:%d Ip A%d:%d C%s\n",
		magic, p.Width, p.Height, rate.Num, rate.Den, sar.Num, sar.Den, cs)
	return err
}

// WritePacket writes one FRAME record.
func (w *Writer) WritePacket(pkt *media.Packet) error {
	if len(pkt.Data) != w.frameSize {
		return fmt.Errorf("y4m: packet of %d bytes, picture needs %d", len(pkt.Data), w.frameSize)
	}
	if _, err := w.bw.WriteString(frameMarker + "\n"); err != nil {
		return err
	}
	_, err := w.bw.Write(pkt.Data)
	return err
}

// WriteTrailer flushes buffered output.
func (w *Writer) WriteTrailer() error {
	return w.bw.Flush()
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	return errors.Join(w.bw.Flush(), w.f.Close())
}

func readLine(br *bufio.Reader) (string, error) {
	var sb strings.Builder
	for sb.Len() < maxHeader {
		b, err := br.ReadByte()
		if err != nil {
			return sb.String(), err
		}
		if b == '\n' {
			return sb.String(), nil
		}
		sb.WriteByte(b)
	}
	return "", errors.New("header line too long")
}

func parseRatio(s string) (media.Rational, error) {
	n, d, ok := strings.Cut(s, ":")
	if !ok {
		return media.Rational{}, fmt.Errorf("ratio %q", s)
	}
	num, err := strconv.Atoi(n)
	if err != nil {
		return media.Rational{}, err
	}
	den, err := strconv.Atoi(d)
	if err != nil {
		return media.Rational{}, err
	}
	return media.R(num, den), nil
}
