// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pktdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ManuGH/xgtranscode/internal/media"
	"github.com/ManuGH/xgtranscode/internal/persistence/sqlite"
)

const readBatch = 128

// Reader yields the packets of a container in write order.
type Reader struct {
	db        *sql.DB
	streams   []media.StreamDescriptor
	finalized bool
	lastSeq   int64
	batch     []*media.Packet
	done      bool
}

// Open reads the stream table of an existing container.
func Open(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("pktdb: %w", err)
	}
	db, err := sqlite.Open(path, sqlite.ReaderConfig())
	if err != nil {
		return nil, err
	}
	r := &Reader{db: db}
	if err := r.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) load() error {
	meta, err := r.meta()
	if err != nil {
		return err
	}
	if meta[metaVersion] != FormatVersion {
		return fmt.Errorf("pktdb: unsupported format version %q", meta[metaVersion])
	}
	r.finalized = meta[metaFinalized] == "1"

	rows, err := r.db.Query(`SELECT idx, media_type, codec_id, tb_num, tb_den, bit_rate, extradata,
		width, height, pix_fmt, sar_num, sar_den, fr_num, fr_den,
		sample_fmt, sample_rate, channels, channel_layout, frame_size
		FROM streams ORDER BY idx`)
	if err != nil {
		return fmt.Errorf("pktdb: read streams: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			s                       media.StreamDescriptor
			mt, codec, pixfmt, sfmt string
			layout                  int64
		)
		p := &s.Params
		if err := rows.Scan(&s.Index, &mt, &codec, &s.TimeBase.Num, &s.TimeBase.Den, &p.BitRate, &p.ExtraData,
			&p.Width, &p.Height, &pixfmt, &p.SampleAspectRatio.Num, &p.SampleAspectRatio.Den,
			&p.FrameRate.Num, &p.FrameRate.Den,
			&sfmt, &p.SampleRate, &p.Channels, &layout, &p.FrameSize); err != nil {
			return fmt.Errorf("pktdb: scan stream: %w", err)
		}
		if s.Index != len(r.streams) {
			return fmt.Errorf("pktdb: stream table has a gap at index %d", len(r.streams))
		}
		if !s.TimeBase.Valid() {
			return fmt.Errorf("pktdb: stream %d has invalid time base %s", s.Index, s.TimeBase)
		}
		p.MediaType = media.ParseMediaType(mt)
		p.CodecID = media.CodecID(codec)
		p.PixelFormat = media.PixelFormat(pixfmt)
		p.SampleFormat = media.SampleFormat(sfmt)
		p.ChannelLayout = media.ChannelLayout(layout)
		r.streams = append(r.streams, s)
	}
	return rows.Err()
}

func (r *Reader) meta() (map[string]string, error) {
	rows, err := r.db.Query(`SELECT key, value FROM meta`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotContainer, err)
	}
	defer func() { _ = rows.Close() }()
	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("pktdb: scan meta: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Streams returns the stream descriptors in index order.
func (r *Reader) Streams() []media.StreamDescriptor {
	out := make([]media.StreamDescriptor, len(r.streams))
	for i, s := range r.streams {
		out[i] = s.Clone()
	}
	return out
}

// Finalized reports whether the writer completed its trailer.
func (r *Reader) Finalized() bool {
	return r.finalized
}

// ReadPacket returns the next packet, or io.EOF after the last one.
func (r *Reader) ReadPacket(ctx context.Context) (*media.Packet, error) {
	if len(r.batch) == 0 {
		if r.done {
			return nil, io.EOF
		}
		if err := r.fill(ctx); err != nil {
			return nil, err
		}
		if len(r.batch) == 0 {
			r.done = true
			return nil, io.EOF
		}
	}
	pkt := r.batch[0]
	r.batch[0] = nil
	r.batch = r.batch[1:]
	return pkt, nil
}

func (r *Reader) fill(ctx context.Context) error {
	rows, err := r.db.QueryContext(ctx, `SELECT seq, stream_index, pts, dts, duration, flags, checksum, data
		FROM packets WHERE seq > ? ORDER BY seq LIMIT ?`, r.lastSeq, readBatch)
	if err != nil {
		return fmt.Errorf("pktdb: read packets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			seq      int64
			pts, dts sql.NullInt64
			flags    int64
			sum      int64
			pkt      = media.NewPacket()
		)
		if err := rows.Scan(&seq, &pkt.StreamIndex, &pts, &dts, &pkt.Duration, &flags, &sum, &pkt.Data); err != nil {
			return fmt.Errorf("pktdb: scan packet: %w", err)
		}
		if checksum(pkt.Data) != sum {
			return fmt.Errorf("%w: seq %d", ErrChecksum, seq)
		}
		if pts.Valid {
			pkt.PTS = pts.Int64
		}
		if dts.Valid {
			pkt.DTS = dts.Int64
		}
		pkt.Flags = media.PacketFlags(flags)
		r.lastSeq = seq
		r.batch = append(r.batch, pkt)
	}
	if err := rows.Err(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("pktdb: read packets: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (r *Reader) Close() error {
	r.batch = nil
	return r.db.Close()
}
