// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package y4m

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/xgtranscode/internal/media"
)

func TestWriteThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.y4m")
	w, err := Create(path)
	require.NoError(t, err)

	stream := media.StreamDescriptor{
		Index:    0,
		TimeBase: media.R(1, 25),
		Params: media.CodecParameters{
			MediaType:   media.MediaTypeVideo,
			CodecID:     "rawvideo",
			Width:       4,
			Height:      2,
			PixelFormat: media.PixelFormatYUV420P,
			FrameRate:   media.R(25, 1),
		},
	}
	require.NoError(t, w.WriteHeader([]media.StreamDescriptor{stream}))
	frame := make([]byte, 12)
	for i := 0; i < 3; i++ {
		frame[0] = byte(i)
		require.NoError(t, w.WritePacket(&media.Packet{Data: append([]byte(nil), frame...)}))
	}
	assert.Error(t, w.WritePacket(&media.Packet{Data: []byte{1}}))
	require.NoError(t, w.WriteTrailer())
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "YUV4MPEG2 W4 H2 F25:1 Ip A0:0 C420jpeg\n")

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	streams := r.Streams()
	require.Len(t, streams, 1)
	assert.Equal(t, media.R(1, 25), streams[0].TimeBase)
	assert.Equal(t, 4, streams[0].Params.Width)

	for i := 0; i < 3; i++ {
		p, err := r.ReadPacket(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(i), p.PTS)
		assert.Equal(t, byte(i), p.Data[0])
	}
	_, err = r.ReadPacket(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestTruncatedFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.y4m")
	require.NoError(t, os.WriteFile(path, []byte("YUV4MPEG2 W2 H2 F30:1 C444\nFRAME\n\x01\x02"), 0o644))

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	_, err = r.ReadPacket(context.Background())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestHeaderErrors(t *testing.T) {
	tests := map[string]string{
		"signature":  "MPEG W2 H2 F30:1\n",
		"size":       "YUV4MPEG2 W0 H2 F30:1\n",
		"rate":       "YUV4MPEG2 W2 H2 F0:1\n",
		"colorspace": "YUV4MPEG2 W2 H2 F30:1 C422\n",
		"interlaced": "YUV4MPEG2 W2 H2 F30:1 It\n",
	}
	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name+".y4m")
			require.NoError(t, os.WriteFile(path, []byte(header), 0o644))
			_, err := Open(path)
			assert.Error(t, err)
		})
	}
}

func TestWriterRejectsNonRaw(t *testing.T) {
	w, err := Create(filepath.Join(t.TempDir(), "x.y4m"))
	require.NoError(t, err)
	defer w.Close()
	err = w.WriteHeader([]media.StreamDescriptor{{Params: media.CodecParameters{MediaType: media.MediaTypeVideo, CodecID: "zlib"}}})
	assert.Error(t, err)
}
