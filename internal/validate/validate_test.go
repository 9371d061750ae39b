// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRange(t *testing.T) {
	tests := []struct {
		name    string
		value   int
		wantErr bool
	}{
		{"within range", 5, false},
		{"at min", 1, false},
		{"at max", 10, false},
		{"below min", 0, true},
		{"above max", 11, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			Range(v, "concurrency", tt.value, 1, 10)
			assert.Equal(t, tt.wantErr, !v.IsValid(), "err: %v", v.Err())
		})
	}

	v := New()
	Range(v, "rate", 0.5, 0, 1)
	assert.True(t, v.IsValid())
	Range(v, "rate", 1.5, 0, 1)
	require.Error(t, v.Err())
	assert.Contains(t, v.Err().Error(), "between 0 and 1, got 1.5")
}

func TestNotEmpty(t *testing.T) {
	for _, value := range []string{"", "   ", "\t"} {
		v := New()
		v.NotEmpty("dir", value)
		assert.False(t, v.IsValid(), "%q", value)
	}
	v := New()
	v.NotEmpty("dir", "x")
	assert.NoError(t, v.Err())
}

func TestOneOf(t *testing.T) {
	allowed := []string{"grpc", "http"}
	v := New()
	v.OneOf("exporter", "grpc", allowed)
	assert.True(t, v.IsValid())
	v.OneOf("exporter", "zipkin", allowed)
	assert.False(t, v.IsValid())
}

func TestCheck(t *testing.T) {
	v := New()
	v.Check("filter", "scale=a", nil)
	assert.True(t, v.IsValid())
	v.Check("filter", "scale=a", errors.New("bad width"))
	require.Error(t, v.Err())
	assert.Contains(t, v.Err().Error(), "filter: bad width")
}

func TestFilename(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"plain", "thumbnail_%d.ppm", false},
		{"empty", "", true},
		{"directory", "sub/thumb.ppm", true},
		{"traversal", "..thumb", true},
		{"backslash", `a\b.ppm`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Filename("pattern", tt.value)
			assert.Equal(t, tt.wantErr, !v.IsValid())
		})
	}
}

func TestIndexPattern(t *testing.T) {
	tests := []struct {
		pattern string
		ok      bool
	}{
		{"frame_%d.ppm", true},
		{"frame_%04d.ppm", true},
		{"100%%_frame_%d.ppm", true},
		{"frame.ppm", false},
		{"frame_%d_%d.ppm", false},
		{"frame_%s.ppm", false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			v := New()
			v.IndexPattern("pattern", tt.pattern)
			assert.Equal(t, tt.ok, v.IsValid(), "err: %v", v.Err())
		})
	}
}

func TestErrCollectsAll(t *testing.T) {
	v := New()
	v.NotEmpty("a", "")
	Range(v, "b", 100, 1, 10)

	err := v.Err()
	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors(), 2)
	assert.Contains(t, err.Error(), "; ")

	// Later failures do not leak into an error already returned.
	v.NotEmpty("c", "")
	assert.Len(t, ve.Errors(), 2)
}

func TestParseLogLevel(t *testing.T) {
	for _, s := range []string{"trace", "debug", "info", "warn", "error"} {
		l, err := ParseLogLevel(s)
		require.NoError(t, err)
		assert.Equal(t, s, string(l))
	}
	_, err := ParseLogLevel("verbose")
	assert.ErrorIs(t, err, ErrInvalidLogLevel)
}
