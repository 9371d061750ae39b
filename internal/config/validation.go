// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"strings"

	"github.com/ManuGH/xgtranscode/internal/codec"
	"github.com/ManuGH/xgtranscode/internal/filter"
	"github.com/ManuGH/xgtranscode/internal/media"
	"github.com/ManuGH/xgtranscode/internal/validate"
)

// Validate validates an AppConfig using the validate package.
func Validate(cfg AppConfig) error {
	v := validate.New()

	_, err := validate.ParseLogLevel(strings.ToLower(cfg.LogLevel))
	v.Check("LogLevel", cfg.LogLevel, err)
	v.OneOf("LogFormat", cfg.LogFormat, []string{"auto", "json", "console"})

	// Filter chains are rejected here rather than at the first packet.
	checkFilter(v, "VideoFilter", cfg.VideoFilter, true)
	checkFilter(v, "AudioFilter", cfg.AudioFilter, false)
	checkCodec(v, "VideoCodec", cfg.VideoCodec, media.MediaTypeVideo)
	checkCodec(v, "AudioCodec", cfg.AudioCodec, media.MediaTypeAudio)

	v.NotEmpty("ThumbnailDir", cfg.ThumbnailDir)
	v.Filename("ThumbnailPattern", cfg.ThumbnailPattern)
	v.IndexPattern("ThumbnailPattern", cfg.ThumbnailPattern)

	if cfg.Telemetry.Enabled {
		v.OneOf("Telemetry.Exporter", cfg.Telemetry.ExporterType, []string{"grpc", "http"})
		v.NotEmpty("Telemetry.Endpoint", cfg.Telemetry.Endpoint)
	}
	validate.Range(v, "Telemetry.SamplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	validate.Range(v, "BatchConcurrency", cfg.BatchConcurrency, 1, 64)

	return v.Err()
}

// checkFilter accepts an empty chain, which means identity.
func checkFilter(v *validate.Validator, field, spec string, video bool) {
	if strings.TrimSpace(spec) == "" {
		return
	}
	v.Check(field, spec, filter.Validate(spec, video))
}

func checkCodec(v *validate.Validator, field, id string, want media.MediaType) {
	if id == "" {
		return
	}
	f, err := codec.Default().FindEncoder(media.CodecID(id))
	if err == nil && f.MediaType != want {
		err = fmt.Errorf("%s encodes %s, want %s", id, f.MediaType, want)
	}
	v.Check(field, id, err)
}
