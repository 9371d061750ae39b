// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/xgtranscode/internal/media"
	"github.com/ManuGH/xgtranscode/internal/metrics"
)

type captureSink struct {
	pkts []*media.Packet
	err  error
}

func (c *captureSink) WritePacket(p *media.Packet) error {
	if c.err != nil {
		return c.err
	}
	c.pkts = append(c.pkts, p)
	return nil
}

func copyPipeline(inTB, outTB media.Rational) (*StreamPipeline, *captureSink) {
	in := subtitleStream()
	in.TimeBase = inTB
	sp := newStreamPipeline(in, zerolog.Nop())
	sp.out = in.Clone()
	sp.out.TimeBase = outTB
	sink := &captureSink{}
	sp.sink = sink
	return sp, sink
}

func TestStreamPipeline_CopyRescalesTimestampsOnly(t *testing.T) {
	sp, sink := copyPipeline(media.R(1, 1000), media.R(1, 30))
	ctx := context.Background()
	assert.Equal(t, ModeCopy, sp.Mode())
	assert.Equal(t, StateIdle, sp.State())

	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	cases := []struct{ pts, want int64 }{
		{0, 0},
		{1050, 32}, // 31.5 rounds away from zero
		{1000, 30},
		{1016, 30}, // 30.48
	}
	for _, tc := range cases {
		require.NoError(t, sp.HandlePacket(ctx, &media.Packet{StreamIndex: 2, PTS: tc.pts, DTS: tc.pts, Data: payload}))
	}
	require.NoError(t, sp.HandlePacket(ctx, &media.Packet{StreamIndex: 2, PTS: media.NoPTS, DTS: media.NoPTS, Data: payload}))
	assert.Equal(t, StateStreaming, sp.State())

	require.Len(t, sink.pkts, len(cases)+1)
	for i, tc := range cases {
		assert.Equal(t, tc.want, sink.pkts[i].PTS, "pts %d", tc.pts)
		assert.Equal(t, tc.want, sink.pkts[i].DTS, "dts %d", tc.pts)
		assert.Equal(t, payload, sink.pkts[i].Data)
	}
	assert.Equal(t, media.NoPTS, sink.pkts[len(cases)].PTS)

	require.NoError(t, sp.Finish(ctx))
	assert.Equal(t, StateDraining, sp.State())
	require.NoError(t, sp.release(ctx))
	assert.Equal(t, StateClosed, sp.State())
	require.NoError(t, sp.release(ctx), "release is idempotent")
}

func TestStreamPipeline_PacketAfterEndOfStream(t *testing.T) {
	sp, _ := copyPipeline(media.R(1, 1000), media.R(1, 1000))
	ctx := context.Background()
	require.NoError(t, sp.Finish(ctx))

	err := sp.HandlePacket(ctx, &media.Packet{StreamIndex: 2})
	require.Error(t, err)
	assert.Equal(t, StageDemux, StageOf(err))
}

func TestStreamPipeline_MuxErrorIsStageError(t *testing.T) {
	sp, sink := copyPipeline(media.R(1, 1000), media.R(1, 1000))
	sink.err = assert.AnError

	err := sp.HandlePacket(context.Background(), &media.Packet{StreamIndex: 2})
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, StageMux, StageOf(err))
}

func TestStreamPipeline_AbortWithoutDrain(t *testing.T) {
	before := testutil.ToFloat64(metrics.StreamTransitions.WithLabelValues(string(StateStreaming), string(StateClosed)))

	sp, _ := copyPipeline(media.R(1, 1000), media.R(1, 1000))
	ctx := context.Background()
	require.NoError(t, sp.HandlePacket(ctx, &media.Packet{StreamIndex: 2}))
	require.NoError(t, sp.release(ctx))
	assert.Equal(t, StateClosed, sp.State())

	after := testutil.ToFloat64(metrics.StreamTransitions.WithLabelValues(string(StateStreaming), string(StateClosed)))
	assert.Equal(t, before+1, after)
}

func TestStreamMachine_Transitions(t *testing.T) {
	ctx := context.Background()
	m := newStreamMachine()
	assert.False(t, m.Can(EventReleased))

	for _, step := range []struct {
		ev   StreamEvent
		want StreamState
	}{
		{EventPacket, StateStreaming},
		{EventPacket, StateStreaming},
		{EventEndOfStream, StateDraining},
		{EventReleased, StateClosed},
	} {
		got, err := m.Fire(ctx, step.ev)
		require.NoError(t, err)
		assert.Equal(t, step.want, got)
	}
	_, err := m.Fire(ctx, EventAbort)
	assert.Error(t, err, "closed is terminal")

	m = newStreamMachine()
	_, err = m.Fire(ctx, EventReleased)
	assert.Error(t, err, "idle stream cannot be released without draining")
	_, err = m.Fire(ctx, EventEndOfStream)
	require.NoError(t, err)
	_, err = m.Fire(ctx, EventPacket)
	assert.Error(t, err, "no packets after end of stream")
}

func TestErrors_Format(t *testing.T) {
	assert.Equal(t, "setup: open input: boom", setupErr("open input", noStream, errString("boom")).Error())
	assert.Equal(t, "setup: open decoder (stream 1): boom", setupErr("open decoder", 1, errString("boom")).Error())
	assert.Equal(t, "encode (stream 0): boom", stageErr(StageEncode, 0, errString("boom")).Error())
	assert.Equal(t, "mux: boom", stageErr(StageMux, noStream, errString("boom")).Error())
	assert.Equal(t, Stage(""), StageOf(errString("boom")))
}

type errString string

func (e errString) Error() string { return string(e) }
