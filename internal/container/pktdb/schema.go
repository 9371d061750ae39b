// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package pktdb stores demuxed packets in a single SQLite file. It is the
// native container of the transcoder: every stream descriptor is kept
// verbatim, every packet keeps its timestamps, and payloads carry an xxhash
// checksum so truncated or damaged files are detected on read.
package pktdb

import (
	"database/sql"
	"errors"
	"fmt"
)

// FormatVersion is written to the meta table and checked on open.
const FormatVersion = "1"

var (
	// ErrChecksum reports a payload whose stored checksum does not match.
	ErrChecksum = errors.New("pktdb: packet checksum mismatch")
	// ErrNotContainer reports a SQLite file without the pktdb schema.
	ErrNotContainer = errors.New("pktdb: not a packet container")
)

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS streams (
	idx            INTEGER PRIMARY KEY,
	media_type     TEXT NOT NULL,
	codec_id       TEXT NOT NULL,
	tb_num         INTEGER NOT NULL,
	tb_den         INTEGER NOT NULL,
	bit_rate       INTEGER NOT NULL DEFAULT 0,
	extradata      BLOB,
	width          INTEGER NOT NULL DEFAULT 0,
	height         INTEGER NOT NULL DEFAULT 0,
	pix_fmt        TEXT NOT NULL DEFAULT '',
	sar_num        INTEGER NOT NULL DEFAULT 0,
	sar_den        INTEGER NOT NULL DEFAULT 1,
	fr_num         INTEGER NOT NULL DEFAULT 0,
	fr_den         INTEGER NOT NULL DEFAULT 1,
	sample_fmt     TEXT NOT NULL DEFAULT '',
	sample_rate    INTEGER NOT NULL DEFAULT 0,
	channels       INTEGER NOT NULL DEFAULT 0,
	channel_layout INTEGER NOT NULL DEFAULT 0,
	frame_size     INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS packets (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	stream_index INTEGER NOT NULL REFERENCES streams(idx),
	pts          INTEGER,
	dts          INTEGER,
	duration     INTEGER NOT NULL DEFAULT 0,
	flags        INTEGER NOT NULL DEFAULT 0,
	checksum     INTEGER NOT NULL,
	data         BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_packets_stream ON packets(stream_index, seq);
`

func migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("pktdb: migrate: %w", err)
	}
	return nil
}

const (
	metaVersion   = "format_version"
	metaFinalized = "finalized"
	metaCreated   = "created_at"
	metaPackets   = "packet_count"
)
