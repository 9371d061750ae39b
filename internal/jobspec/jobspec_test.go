// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Spec
	}{
		{
			name: "all numeric",
			args: []string{"in.pktdb", "out.pktdb", "5", "480", "640", "1000000"},
			want: Spec{Input: "in.pktdb", Output: "out.pktdb", ThumbnailIndex: 5, Height: 480, Width: 640, BitRate: 1_000_000},
		},
		{
			name: "keywords",
			args: []string{"in.y4m", "out.y4m", "disabled", "unset", "UNSET", "unset"},
			want: Spec{Input: "in.y4m", Output: "out.y4m"},
		},
		{
			name: "non-positive overrides are unset",
			args: []string{"a", "b", "0", "0", "-1", "-200"},
			want: Spec{Input: "a", Output: "b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"too few", []string{"a", "b", "1"}},
		{"negative thumbnail", []string{"a", "b", "-1", "unset", "unset", "unset"}},
		{"non-numeric thumbnail", []string{"a", "b", "first", "unset", "unset", "unset"}},
		{"non-numeric height", []string{"a", "b", "1", "tall", "unset", "unset"}},
		{"non-numeric bitrate", []string{"a", "b", "1", "unset", "unset", "1M"}},
		{"empty input", []string{"", "b", "1", "unset", "unset", "unset"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.args)
			assert.ErrorIs(t, err, ErrUsage)
		})
	}
}

func TestSpec_ArgsRoundTrip(t *testing.T) {
	s := Spec{Input: "i", Output: "o", ThumbnailIndex: 3, Width: 320}
	assert.Equal(t, []string{"i", "o", "3", "unset", "320", "unset"}, s.Args())
	back, err := Parse(s.Args())
	require.NoError(t, err)
	assert.Equal(t, s, back)
}
