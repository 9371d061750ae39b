// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/xgtranscode/internal/codec"
	"github.com/ManuGH/xgtranscode/internal/container"
	"github.com/ManuGH/xgtranscode/internal/media"
)

func TestTranscode_VideoAudioSubtitle(t *testing.T) {
	in := writeInput(t, videoStream(codec.RawVideo), audioStream(), subtitleStream())
	out := filepath.Join(t.TempDir(), "out.pktdb")
	rec := &frameRecorder{}

	opts := testOptions(in, out)
	opts.Observer = rec
	sum, err := Transcode(context.Background(), opts)
	require.NoError(t, err)

	streams, pkts, finalized := readOutput(t, out)
	require.True(t, finalized)
	require.Len(t, streams, 3)

	// Video: ten frames, identity payloads, 1/30 clock preserved.
	assert.Equal(t, media.R(1, 30), streams[0].TimeBase)
	assert.Equal(t, codec.RawVideo, streams[0].Params.CodecID)
	require.Len(t, pkts[0], videoFrames)
	for i, p := range pkts[0] {
		assert.Equal(t, int64(i), p.PTS)
		assert.Equal(t, videoPayload(byte(i)), p.Data)
	}
	requireMonotonic(t, pkts[0])

	// Audio: 2400 samples re-chunked into 1024-sample packets.
	require.Len(t, pkts[1], 3)
	var gotPTS []int64
	var audio []byte
	for _, p := range pkts[1] {
		gotPTS = append(gotPTS, p.PTS)
		audio = append(audio, p.Data...)
	}
	if diff := cmp.Diff([]int64{0, 1024, 2048}, gotPTS); diff != "" {
		t.Errorf("audio pts mismatch (-want +got):\n%s", diff)
	}
	want := bytes.Join([][]byte{audioPayload(0), audioPayload(3), audioPayload(6)}, nil)
	assert.True(t, bytes.Equal(want, audio), "audio payload altered")
	requireMonotonic(t, pkts[1])

	// Subtitles are copied untouched.
	require.Len(t, pkts[2], 2)
	assert.Equal(t, int64(300), pkts[2][0].PTS)
	assert.Equal(t, int64(600), pkts[2][1].PTS)
	assert.Equal(t, subtitleText[0], pkts[2][0].Data)
	assert.Equal(t, subtitleText[1], pkts[2][1].Data)

	// Only video frames reach the observer, in order.
	require.Len(t, rec.pts, videoFrames)
	assert.Equal(t, []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, rec.pts)
	for _, idx := range rec.streams {
		assert.Equal(t, 0, idx)
	}

	require.Len(t, sum.Streams, 3)
	assert.Equal(t, ModeTranscode, sum.Streams[0].Mode)
	assert.Equal(t, ModeTranscode, sum.Streams[1].Mode)
	assert.Equal(t, ModeCopy, sum.Streams[2].Mode)
	for _, s := range sum.Streams {
		assert.Equal(t, StateClosed, s.State, "stream %d", s.Index)
	}
	assert.Equal(t, int64(videoFrames), sum.Streams[0].Stats.FramesFiltered)
	assert.Equal(t, int64(15), sum.PacketsOut())
	assert.NotEmpty(t, sum.RunID)
	assert.Positive(t, sum.BytesWritten)
}

func TestTranscode_ReverseFilterDrainsOnFlush(t *testing.T) {
	in := writeInput(t, videoStream(codec.RawVideo))
	out := filepath.Join(t.TempDir(), "out.pktdb")
	rec := &frameRecorder{}

	opts := testOptions(in, out)
	opts.VideoFilter = "reverse"
	opts.Observer = rec
	sum, err := Transcode(context.Background(), opts)
	require.NoError(t, err)

	_, pkts, _ := readOutput(t, out)
	require.Len(t, pkts[0], videoFrames)
	for i, p := range pkts[0] {
		assert.Equal(t, int64(i), p.PTS)
		assert.Equal(t, byte(videoFrames-1-i), p.Data[0])
	}
	assert.Equal(t, []byte{9, 8, 7, 6, 5, 4, 3, 2, 1, 0}, rec.first)
	assert.Equal(t, "reverse", sum.Streams[0].Filter)
}

func TestTranscode_OverridesAndFormatNegotiation(t *testing.T) {
	in := writeInput(t, videoStream(codec.RawVideo), audioStream())
	out := filepath.Join(t.TempDir(), "out.pktdb")

	opts := testOptions(in, out)
	opts.Overrides = Overrides{Width: 2, Height: 2, BitRate: 64_000}
	opts.VideoEncoder = codec.Zlib
	opts.AudioEncoder = codec.PCMF32LE
	sum, err := Transcode(context.Background(), opts)
	require.NoError(t, err)

	streams, pkts, _ := readOutput(t, out)
	v := streams[0].Params
	assert.Equal(t, codec.Zlib, v.CodecID)
	assert.Equal(t, 2, v.Width)
	assert.Equal(t, 2, v.Height)
	assert.Equal(t, int64(64_000), v.BitRate)
	assert.NotEmpty(t, v.ExtraData, "pktdb wants global headers")
	assert.Len(t, pkts[0], videoFrames)
	assert.Contains(t, sum.Streams[0].Filter, "scale=2:2")

	a := streams[1].Params
	assert.Equal(t, codec.PCMF32LE, a.CodecID)
	assert.Equal(t, media.SampleFormatFLT, a.SampleFormat)
	assert.Equal(t, media.LayoutMono, a.ChannelLayout)
	require.Len(t, pkts[1], 3)
	assert.Len(t, pkts[1][0].Data, 1024*4)
	assert.Contains(t, sum.Streams[1].Filter, "aformat")
}

func TestTranscode_EncoderFollowsFilterScale(t *testing.T) {
	in := writeInput(t, videoStream(codec.RawVideo))
	out := filepath.Join(t.TempDir(), "out.pktdb")

	opts := testOptions(in, out)
	opts.VideoFilter = "scale=2:2"
	sum, err := Transcode(context.Background(), opts)
	require.NoError(t, err)

	streams, pkts, _ := readOutput(t, out)
	v := streams[0].Params
	assert.Equal(t, 2, v.Width)
	assert.Equal(t, 2, v.Height)
	require.Len(t, pkts[0], videoFrames)
	assert.Len(t, pkts[0][0].Data, 6)
	assert.Equal(t, "scale=2:2", sum.Streams[0].Filter)
}

func TestTranscode_DecoderBackpressure(t *testing.T) {
	in := writeInput(t, videoStream(lazyCodec))
	out := filepath.Join(t.TempDir(), "out.pktdb")

	opts := testOptions(in, out)
	opts.Codecs = testRegistry(nil)
	opts.VideoEncoder = hoardCodec
	tr, err := New(context.Background(), opts)
	require.NoError(t, err)
	require.NoError(t, tr.Run(context.Background()))
	dec := tr.Streams()[0].dec.(*lazyDecoder)
	require.NoError(t, tr.Close())

	assert.Positive(t, dec.notYets)
	_, pkts, finalized := readOutput(t, out)
	assert.True(t, finalized)
	require.Len(t, pkts[0], videoFrames, "delayed encoder output must be flushed")
	for i, p := range pkts[0] {
		assert.Equal(t, int64(i), p.PTS)
		assert.Equal(t, byte(i), p.Data[0])
	}
}

func TestTranscode_NoProgressIsFatal(t *testing.T) {
	in := writeInput(t, videoStream(stuckCodec), subtitleStream())
	out := filepath.Join(t.TempDir(), "out.pktdb")

	opts := testOptions(in, out)
	opts.Codecs = testRegistry(nil)
	opts.VideoEncoder = hoardCodec
	sum, err := Transcode(context.Background(), opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoProgress)
	assert.Equal(t, StageDecode, StageOf(err))

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 0, se.Stream)

	// The interrupted output stays on disk, unfinalized.
	_, statErr := os.Stat(out)
	require.NoError(t, statErr)
	_, _, finalized := readOutput(t, out)
	assert.False(t, finalized)
	for _, s := range sum.Streams {
		assert.Equal(t, StateClosed, s.State)
	}
}

func TestTranscode_EncoderFailureReleasesEverything(t *testing.T) {
	in := writeInput(t, videoStream(codec.RawVideo))
	out := filepath.Join(t.TempDir(), "out.pktdb")
	closed := 0

	opts := testOptions(in, out)
	opts.Codecs = testRegistry(&closed)
	opts.VideoEncoder = brokenCodec
	_, err := Transcode(context.Background(), opts)
	require.Error(t, err)
	assert.Equal(t, StageEncode, StageOf(err))
	assert.Contains(t, err.Error(), "encoder exploded")
	assert.Equal(t, 1, closed)
}

func TestTranscode_SetupErrors(t *testing.T) {
	dir := t.TempDir()
	good := writeInput(t, videoStream(codec.RawVideo))

	cases := []struct {
		name   string
		in     string
		out    string
		target error
	}{
		{"missing decoder", writeInput(t, videoStream("h264")), filepath.Join(dir, "a.pktdb"), codec.ErrCodecNotFound},
		{"unknown output format", good, filepath.Join(dir, "out.mkv"), container.ErrUnknownFormat},
		{"unknown input format", filepath.Join(dir, "in.avi"), filepath.Join(dir, "b.pktdb"), container.ErrUnknownFormat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Transcode(context.Background(), testOptions(tc.in, tc.out))
			var se *SetupError
			require.ErrorAs(t, err, &se)
			assert.ErrorIs(t, err, tc.target)
		})
	}

	t.Run("encoder of wrong media type", func(t *testing.T) {
		opts := testOptions(good, filepath.Join(dir, "c.pktdb"))
		opts.VideoEncoder = codec.PCMS16LE
		_, err := Transcode(context.Background(), opts)
		var se *SetupError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "find encoder", se.Op)
	})

	t.Run("missing input file", func(t *testing.T) {
		_, err := Transcode(context.Background(), testOptions(filepath.Join(dir, "nope.pktdb"), filepath.Join(dir, "d.pktdb")))
		var se *SetupError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "open input", se.Op)
	})
}

func TestTranscode_Canceled(t *testing.T) {
	in := writeInput(t, videoStream(codec.RawVideo))
	out := filepath.Join(t.TempDir(), "out.pktdb")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Transcode(ctx, testOptions(in, out))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, "canceled", outcomeFor(err))
}

func TestTranscode_Y4MOutput(t *testing.T) {
	in := writeInput(t, videoStream(codec.RawVideo))
	out := filepath.Join(t.TempDir(), "out.y4m")

	_, err := Transcode(context.Background(), testOptions(in, out))
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("YUV4MPEG2 W4 H2 F30:1")))
	assert.Equal(t, videoFrames, bytes.Count(data, []byte("FRAME\n")))
}
