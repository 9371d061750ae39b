// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ManuGH/xgtranscode/internal/codec"
	"github.com/ManuGH/xgtranscode/internal/container/pktdb"
	"github.com/ManuGH/xgtranscode/internal/media"
)

const (
	videoFrames  = 10
	audioPackets = 3
	audioSamples = 800
)

func videoStream(id media.CodecID) media.StreamDescriptor {
	return media.StreamDescriptor{
		Index:    0,
		TimeBase: media.R(1, 30),
		Params: media.CodecParameters{
			MediaType:         media.MediaTypeVideo,
			CodecID:           id,
			Width:             4,
			Height:            2,
			PixelFormat:       media.PixelFormatYUV420P,
			SampleAspectRatio: media.R(1, 1),
			FrameRate:         media.R(30, 1),
		},
	}
}

func audioStream() media.StreamDescriptor {
	return media.StreamDescriptor{
		Index:    1,
		TimeBase: media.R(1, 8000),
		Params: media.CodecParameters{
			MediaType:  media.MediaTypeAudio,
			CodecID:    codec.PCMS16LE,
			SampleRate: 8000,
			Channels:   1,
		},
	}
}

func subtitleStream() media.StreamDescriptor {
	return media.StreamDescriptor{
		Index:    2,
		TimeBase: media.R(1, 1000),
		Params: media.CodecParameters{
			MediaType: media.MediaTypeSubtitle,
			CodecID:   "subrip",
		},
	}
}

// videoPayload is a packed 4x2 yuv420p picture filled with v.
func videoPayload(v byte) []byte {
	b := make([]byte, 12)
	for i := range b {
		b[i] = v
	}
	return b
}

func audioPayload(seed int) []byte {
	b := make([]byte, audioSamples*2)
	for i := range b {
		b[i] = byte(seed + i)
	}
	return b
}

var subtitleText = [][]byte{[]byte("hello"), []byte("world")}

// writeInput creates a pktdb file holding the given streams with a
// deterministic packet sequence: ten video frames, three audio blocks of
// 800 samples and two subtitle cues.
func writeInput(t *testing.T, streams ...media.StreamDescriptor) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.pktdb")
	w, err := pktdb.Create(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader(streams))

	has := map[media.MediaType]int{}
	for _, s := range streams {
		has[s.Params.MediaType] = s.Index
	}
	write := func(p *media.Packet) {
		require.NoError(t, w.WritePacket(p))
	}
	for i := 0; i < videoFrames; i++ {
		if idx, ok := has[media.MediaTypeVideo]; ok {
			write(&media.Packet{StreamIndex: idx, PTS: int64(i), DTS: int64(i), Duration: 1, Flags: media.PacketKey, Data: videoPayload(byte(i))})
		}
		if idx, ok := has[media.MediaTypeAudio]; ok && i%3 == 0 && i/3 < audioPackets {
			ts := int64(i / 3 * audioSamples)
			write(&media.Packet{StreamIndex: idx, PTS: ts, DTS: ts, Duration: audioSamples, Flags: media.PacketKey, Data: audioPayload(i)})
		}
		if idx, ok := has[media.MediaTypeSubtitle]; ok && (i == 3 || i == 6) {
			ts := int64(i * 100)
			write(&media.Packet{StreamIndex: idx, PTS: ts, DTS: ts, Duration: 50, Data: subtitleText[i/3-1]})
		}
	}
	require.NoError(t, w.WriteTrailer())
	require.NoError(t, w.Close())
	return path
}

// readOutput returns the packets of a pktdb file grouped by stream.
func readOutput(t *testing.T, path string) ([]media.StreamDescriptor, map[int][]*media.Packet, bool) {
	t.Helper()
	r, err := pktdb.Open(path)
	require.NoError(t, err)
	defer r.Close()
	out := map[int][]*media.Packet{}
	for {
		p, err := r.ReadPacket(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		out[p.StreamIndex] = append(out[p.StreamIndex], p)
	}
	return r.Streams(), out, r.Finalized()
}

func requireMonotonic(t *testing.T, pkts []*media.Packet) {
	t.Helper()
	for i := 1; i < len(pkts); i++ {
		require.GreaterOrEqual(t, pkts[i].DTS, pkts[i-1].DTS, "packet %d", i)
		require.GreaterOrEqual(t, pkts[i].PTS, pkts[i].DTS, "packet %d", i)
	}
}

// frameRecorder is a FrameObserver that remembers what it saw.
type frameRecorder struct {
	streams []int
	pts     []int64
	first   []byte
}

func (r *frameRecorder) ObserveFrame(_ context.Context, idx int, f *media.Frame) {
	r.streams = append(r.streams, idx)
	r.pts = append(r.pts, f.PTS)
	if len(f.Data) > 0 && len(f.Data[0]) > 0 {
		r.first = append(r.first, f.Data[0][0])
	}
}

func testOptions(in, out string) Options {
	return Options{InputPath: in, OutputPath: out}
}
