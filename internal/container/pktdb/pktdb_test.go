// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pktdb

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/xgtranscode/internal/media"
	"github.com/ManuGH/xgtranscode/internal/persistence/sqlite"
)

func testStreams() []media.StreamDescriptor {
	return []media.StreamDescriptor{
		{
			Index:    0,
			TimeBase: media.R(1, 90000),
			Params: media.CodecParameters{
				MediaType:         media.MediaTypeVideo,
				CodecID:           "rawvideo",
				Width:             4,
				Height:            2,
				PixelFormat:       media.PixelFormatYUV420P,
				SampleAspectRatio: media.R(1, 1),
				FrameRate:         media.R(25, 1),
				ExtraData:         []byte{1, 2, 3},
			},
		},
		{
			Index:    1,
			TimeBase: media.R(1, 1000),
			Params: media.CodecParameters{
				MediaType:         media.MediaTypeSubtitle,
				CodecID:           "text",
				SampleAspectRatio: media.R(0, 1),
				FrameRate:         media.R(0, 1),
			},
		},
	}
}

func writeFile(t *testing.T, path string, pkts []*media.Packet, finalize bool) {
	t.Helper()
	w, err := Create(path)
	require.NoError(t, err)
	w.SetCommitEvery(2)
	require.NoError(t, w.WriteHeader(testStreams()))
	for _, p := range pkts {
		require.NoError(t, w.WritePacket(p))
	}
	if finalize {
		require.NoError(t, w.WriteTrailer())
	}
	require.NoError(t, w.Close())
}

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.pktdb")
	pkts := []*media.Packet{
		{StreamIndex: 0, PTS: 0, DTS: 0, Duration: 3600, Flags: media.PacketKey, Data: []byte{9, 9}},
		{StreamIndex: 1, PTS: media.NoPTS, DTS: 5, Data: []byte("hi")},
		{StreamIndex: 0, PTS: 3600, DTS: 3600, Duration: 3600, Data: []byte{}},
	}
	writeFile(t, path, pkts, true)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	assert.True(t, r.Finalized())
	if diff := cmp.Diff(testStreams(), r.Streams()); diff != "" {
		t.Errorf("streams mismatch (-want +got):\n%s", diff)
	}

	var got []*media.Packet
	for {
		p, err := r.ReadPacket(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, p)
	}
	require.Len(t, got, 3)
	assert.Equal(t, media.NoPTS, got[1].PTS)
	assert.Equal(t, int64(5), got[1].DTS)
	assert.True(t, got[0].IsKey())
	assert.Equal(t, []byte{9, 9}, got[0].Data)

	_, err = r.ReadPacket(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestUnfinalizedFileIsReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.pktdb")
	writeFile(t, path, []*media.Packet{{StreamIndex: 0, PTS: 0, DTS: 0, Data: []byte{1}}}, false)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	assert.False(t, r.Finalized())
	p, err := r.ReadPacket(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, p.Data)

	rep, err := Verify(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, rep.OK())
	assert.Equal(t, int64(1), rep.Packets)
}

func TestChecksumMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pktdb")
	writeFile(t, path, []*media.Packet{{StreamIndex: 0, PTS: 0, DTS: 0, Data: []byte{1, 2}}}, true)

	db, err := sqlite.Open(path, sqlite.DefaultConfig())
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE packets SET data = x'0102ff'`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	_, err = r.ReadPacket(context.Background())
	assert.ErrorIs(t, err, ErrChecksum)

	rep, err := Verify(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, rep.OK())
}

func TestWriterRejects(t *testing.T) {
	dir := t.TempDir()
	w, err := Create(filepath.Join(dir, "out.pktdb"))
	require.NoError(t, err)
	defer w.Close()

	assert.Error(t, w.WritePacket(&media.Packet{}), "packet before header")
	require.NoError(t, w.WriteHeader(testStreams()))
	assert.Error(t, w.WriteHeader(testStreams()))
	assert.Error(t, w.WritePacket(&media.Packet{StreamIndex: 7}))
}

func TestOpenMissingOrForeign(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(filepath.Join(dir, "missing.pktdb"))
	assert.Error(t, err)

	foreign := filepath.Join(dir, "foreign.db")
	db, err := sqlite.Open(foreign, sqlite.DefaultConfig())
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE x (a INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(foreign)
	assert.ErrorIs(t, err, ErrNotContainer)
}

func TestWriteReadReservedCharactersInName(t *testing.T) {
	dir := t.TempDir()
	pkts := []*media.Packet{
		{StreamIndex: 0, PTS: 0, DTS: 0, Duration: 3600, Flags: media.PacketKey, Data: []byte{1}},
		{StreamIndex: 0, PTS: 3600, DTS: 3600, Duration: 3600, Data: []byte{2}},
	}
	for _, name := range []string{"take#2.pktdb", "what?.pktdb", "100%.pktdb"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			writeFile(t, path, pkts, true)
			require.FileExists(t, path)

			r, err := Open(path)
			require.NoError(t, err)
			defer r.Close()
			assert.True(t, r.Finalized())
			n := 0
			for {
				_, err := r.ReadPacket(context.Background())
				if errors.Is(err, io.EOF) {
					break
				}
				require.NoError(t, err)
				n++
			}
			assert.Equal(t, len(pkts), n)

			rep, err := Verify(context.Background(), path)
			require.NoError(t, err)
			assert.True(t, rep.OK(), "%v", rep.Issues)
		})
	}
	assert.NoFileExists(t, filepath.Join(dir, "take"))
	assert.NoFileExists(t, filepath.Join(dir, "what"))
}
