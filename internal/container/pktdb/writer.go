// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pktdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/ManuGH/xgtranscode/internal/media"
	"github.com/ManuGH/xgtranscode/internal/persistence/sqlite"
)

// DefaultCommitEvery is the number of packets grouped per transaction.
const DefaultCommitEvery = 256

// Writer appends packets to a new container file.
type Writer struct {
	db          *sql.DB
	tx          *sql.Tx
	stmt        *sql.Stmt
	pending     int
	written     int64
	commitEvery int
	streams     int
	header      bool
}

// Create truncates path and prepares an empty container.
func Create(path string) (*Writer, error) {
	for _, p := range []string{path, path + "-journal"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("pktdb: replace %s: %w", p, err)
		}
	}
	db, err := sqlite.Open(path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Writer{db: db, commitEvery: DefaultCommitEvery}, nil
}

// SetCommitEvery changes how many packets are grouped per transaction.
func (w *Writer) SetCommitEvery(n int) {
	if n > 0 {
		w.commitEvery = n
	}
}

// WriteHeader stores the stream table and marks the file unfinalized.
func (w *Writer) WriteHeader(streams []media.StreamDescriptor) error {
	if w.header {
		return errors.New("pktdb: header already written")
	}
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("pktdb: begin header: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, s := range streams {
		if s.Index != i {
			return fmt.Errorf("pktdb: stream %d declared with index %d", i, s.Index)
		}
		p := s.Params
		_, err := tx.Exec(`INSERT INTO streams (
			idx, media_type, codec_id, tb_num, tb_den, bit_rate, extradata,
			width, height, pix_fmt, sar_num, sar_den, fr_num, fr_den,
			sample_fmt, sample_rate, channels, channel_layout, frame_size
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.Index, string(p.MediaType), string(p.CodecID), s.TimeBase.Num, s.TimeBase.Den, p.BitRate, p.ExtraData,
			p.Width, p.Height, string(p.PixelFormat), p.SampleAspectRatio.Num, p.SampleAspectRatio.Den,
			p.FrameRate.Num, p.FrameRate.Den,
			string(p.SampleFormat), p.SampleRate, p.Channels, int64(p.ChannelLayout), p.FrameSize,
		)
		if err != nil {
			return fmt.Errorf("pktdb: insert stream %d: %w", i, err)
		}
	}
	meta := map[string]string{
		metaVersion:   FormatVersion,
		metaFinalized: "0",
		metaCreated:   time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range meta {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("pktdb: write meta: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pktdb: commit header: %w", err)
	}
	w.streams = len(streams)
	w.header = true
	return nil
}

// WritePacket appends one packet. Packets are committed in batches.
func (w *Writer) WritePacket(pkt *media.Packet) error {
	if !w.header {
		return errors.New("pktdb: packet written before header")
	}
	if pkt.StreamIndex < 0 || pkt.StreamIndex >= w.streams {
		return fmt.Errorf("pktdb: packet for unknown stream %d", pkt.StreamIndex)
	}
	if w.tx == nil {
		tx, err := w.db.BeginTx(context.Background(), nil)
		if err != nil {
			return fmt.Errorf("pktdb: begin: %w", err)
		}
		stmt, err := tx.Prepare(`INSERT INTO packets (stream_index, pts, dts, duration, flags, checksum, data)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("pktdb: prepare: %w", err)
		}
		w.tx, w.stmt = tx, stmt
	}
	data := pkt.Data
	if data == nil {
		data = []byte{}
	}
	if _, err := w.stmt.Exec(pkt.StreamIndex, nullable(pkt.PTS), nullable(pkt.DTS), pkt.Duration,
		int64(pkt.Flags), checksum(data), data); err != nil {
		return fmt.Errorf("pktdb: insert packet: %w", err)
	}
	w.pending++
	w.written++
	if w.pending >= w.commitEvery {
		return w.commit()
	}
	return nil
}

// WriteTrailer commits outstanding packets and marks the file finalized.
func (w *Writer) WriteTrailer() error {
	if err := w.commit(); err != nil {
		return err
	}
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("pktdb: begin trailer: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for k, v := range map[string]string{
		metaFinalized: "1",
		metaPackets:   strconv.FormatInt(w.written, 10),
	} {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("pktdb: finalize: %w", err)
		}
	}
	return tx.Commit()
}

// Close commits what was written so far and closes the file. A file
// closed without a trailer stays readable but unfinalized.
func (w *Writer) Close() error {
	err := w.commit()
	return errors.Join(err, w.db.Close())
}

func (w *Writer) commit() error {
	if w.tx == nil {
		return nil
	}
	_ = w.stmt.Close()
	err := w.tx.Commit()
	w.tx, w.stmt, w.pending = nil, nil, 0
	if err != nil {
		return fmt.Errorf("pktdb: commit: %w", err)
	}
	return nil
}

func nullable(ts int64) any {
	if ts == media.NoPTS {
		return nil
	}
	return ts
}

func checksum(b []byte) int64 {
	return int64(xxhash.Sum64(b))
}
