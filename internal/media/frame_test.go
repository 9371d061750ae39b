// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPixelFormatPlanes_OddChroma(t *testing.T) {
	planes, err := PixelFormatYUV420P.Planes(5, 3)
	require.NoError(t, err)
	require.Len(t, planes, 3)
	assert.Equal(t, PlaneLayout{5, 3, 1}, planes[0])
	assert.Equal(t, PlaneLayout{3, 2, 1}, planes[1])

	size, err := PixelFormatYUV420P.FrameSize(5, 3)
	require.NoError(t, err)
	assert.Equal(t, 15+6+6, size)

	_, err = PixelFormat("nv12").Planes(2, 2)
	assert.Error(t, err)
}

func TestFrame_PackUnpackHonoursStride(t *testing.T) {
	f, err := NewVideoFrame(PixelFormatRGB24, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, 16, f.Linesize[0], "rows are padded to the stride alignment")

	payload := make([]byte, 18)
	for i := range payload {
		payload[i] = byte(i + 1)
	}
	require.NoError(t, f.Unpack(payload))
	assert.Equal(t, byte(10), f.Data[0][16], "second row starts at the stride")

	packed, err := f.Pack()
	require.NoError(t, err)
	assert.Equal(t, payload, packed)

	assert.Error(t, f.Unpack(payload[:17]))
}

func TestNewAudioFrame(t *testing.T) {
	f, err := NewAudioFrame(SampleFormatS16, 48000, LayoutStereo, 10)
	require.NoError(t, err)
	assert.Len(t, f.Data[0], 40)
	assert.Equal(t, NoPTS, f.PTS)

	_, err = NewAudioFrame(SampleFormatNone, 48000, LayoutStereo, 10)
	assert.Error(t, err)
	_, err = NewAudioFrame(SampleFormatS16, 48000, 0, 10)
	assert.Error(t, err)
}

func TestFrameClone_IsDeep(t *testing.T) {
	f, err := NewVideoFrame(PixelFormatGray, 2, 2)
	require.NoError(t, err)
	c := f.Clone()
	c.Data[0][0] = 99
	assert.Equal(t, byte(0), f.Data[0][0])
}

func TestChannelLayout(t *testing.T) {
	assert.Equal(t, 2, LayoutStereo.Channels())
	assert.Equal(t, 6, Layout5Point1.Channels())
	assert.Equal(t, LayoutMono, DefaultChannelLayout(1))
	assert.Equal(t, 5, DefaultChannelLayout(5).Channels())
	assert.Equal(t, "stereo", LayoutStereo.String())

	p := CodecParameters{Channels: 2}
	p.ResolveChannels()
	assert.Equal(t, LayoutStereo, p.ChannelLayout)
}

func TestPacketRescaleTS(t *testing.T) {
	p := &Packet{PTS: 3600, DTS: NoPTS, Duration: 3600}
	p.RescaleTS(R(1, 90000), R(1, 25))
	assert.Equal(t, int64(1), p.PTS)
	assert.Equal(t, NoPTS, p.DTS)
	assert.Equal(t, int64(1), p.Duration)

	p.Unref()
	assert.Nil(t, p.Data)
	assert.Equal(t, NoPTS, p.PTS)
}
