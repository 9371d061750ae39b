// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads xgtranscode settings with precedence
// ENV > YAML file > defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/xgtranscode/internal/telemetry"
)

// FileConfig is the on-disk YAML shape. Pointer fields distinguish
// "absent" from the zero value.
type FileConfig struct {
	Log       LogFile       `yaml:"log"`
	Filters   FiltersFile   `yaml:"filters"`
	Codecs    CodecsFile    `yaml:"codecs"`
	Thumbnail ThumbnailFile `yaml:"thumbnail"`
	Metrics   MetricsFile   `yaml:"metrics"`
	Telemetry TelemetryFile `yaml:"telemetry"`
	Batch     BatchFile     `yaml:"batch"`
}

type LogFile struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	Service string `yaml:"service"`
}

type FiltersFile struct {
	Video *string `yaml:"video"`
	Audio *string `yaml:"audio"`
}

type CodecsFile struct {
	Video string `yaml:"video"`
	Audio string `yaml:"audio"`
}

type ThumbnailFile struct {
	Dir     string `yaml:"dir"`
	Pattern string `yaml:"pattern"`
}

type MetricsFile struct {
	File string `yaml:"file"`
}

type TelemetryFile struct {
	Enabled      *bool    `yaml:"enabled"`
	Exporter     string   `yaml:"exporter"`
	Endpoint     string   `yaml:"endpoint"`
	SamplingRate *float64 `yaml:"sampling_rate"`
	Environment  string   `yaml:"environment"`
}

type BatchFile struct {
	Concurrency *int  `yaml:"concurrency"`
	FailFast    *bool `yaml:"fail_fast"`
}

// AppConfig is the effective configuration.
type AppConfig struct {
	Version string

	LogLevel   string
	LogFormat  string
	LogService string

	VideoFilter string
	AudioFilter string

	// VideoCodec and AudioCodec override the output codec; empty keeps
	// the source codec.
	VideoCodec string
	AudioCodec string

	ThumbnailDir     string
	ThumbnailPattern string

	MetricsFile string

	Telemetry telemetry.Config

	BatchConcurrency int
	BatchFailFast    bool
}

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // keys read from the environment
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults.
// Parse file (strict), apply env, then validate.
func (l *Loader) Load() (AppConfig, error) {
	cfg := AppConfig{}

	// 1. Defaults
	l.setDefaults(&cfg)

	// 2. File
	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		mergeFileConfig(&cfg, fileCfg)
	}

	// 3. Environment
	l.mergeEnvConfig(&cfg)

	cfg.Version = l.version
	cfg.Telemetry.ServiceVersion = l.version
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.LogService
	}

	// 4. Validate
	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (l *Loader) setDefaults(cfg *AppConfig) {
	*cfg = Defaults()
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:         "info",
		LogFormat:        "auto",
		LogService:       "xgtranscode",
		VideoFilter:      "null",
		AudioFilter:      "anull",
		ThumbnailDir:     ".",
		ThumbnailPattern: "thumbnail_frame_%d.ppm",
		Telemetry: telemetry.Config{
			ServiceName:  "xgtranscode",
			Environment:  "batch",
			ExporterType: "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
		BatchConcurrency: 2,
	}
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields are fatal.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("%w: %q (only YAML is read)", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return parseFile(data)
}

func parseFile(data []byte) (*FileConfig, error) {
	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, ErrTrailingContent
	}
	return &fileCfg, nil
}

func mergeFileConfig(dst *AppConfig, src *FileConfig) {
	setString(&dst.LogLevel, src.Log.Level)
	setString(&dst.LogFormat, src.Log.Format)
	setString(&dst.LogService, src.Log.Service)

	// An explicit empty filter is meaningful: identity.
	if src.Filters.Video != nil {
		dst.VideoFilter = *src.Filters.Video
	}
	if src.Filters.Audio != nil {
		dst.AudioFilter = *src.Filters.Audio
	}

	setString(&dst.VideoCodec, src.Codecs.Video)
	setString(&dst.AudioCodec, src.Codecs.Audio)
	setString(&dst.ThumbnailDir, src.Thumbnail.Dir)
	setString(&dst.ThumbnailPattern, src.Thumbnail.Pattern)
	setString(&dst.MetricsFile, src.Metrics.File)

	if src.Telemetry.Enabled != nil {
		dst.Telemetry.Enabled = *src.Telemetry.Enabled
	}
	setString(&dst.Telemetry.ExporterType, src.Telemetry.Exporter)
	setString(&dst.Telemetry.Endpoint, src.Telemetry.Endpoint)
	setString(&dst.Telemetry.Environment, src.Telemetry.Environment)
	if src.Telemetry.SamplingRate != nil {
		dst.Telemetry.SamplingRate = *src.Telemetry.SamplingRate
	}

	if src.Batch.Concurrency != nil {
		dst.BatchConcurrency = *src.Batch.Concurrency
	}
	if src.Batch.FailFast != nil {
		dst.BatchFailFast = *src.Batch.FailFast
	}
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.LogLevel = l.envString("XGT_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = l.envString("XGT_LOG_FORMAT", cfg.LogFormat)
	cfg.LogService = l.envString("XGT_LOG_SERVICE", cfg.LogService)

	cfg.VideoFilter = l.envString("XGT_VIDEO_FILTER", cfg.VideoFilter)
	cfg.AudioFilter = l.envString("XGT_AUDIO_FILTER", cfg.AudioFilter)
	cfg.VideoCodec = l.envString("XGT_VIDEO_CODEC", cfg.VideoCodec)
	cfg.AudioCodec = l.envString("XGT_AUDIO_CODEC", cfg.AudioCodec)

	cfg.ThumbnailDir = l.envString("XGT_THUMBNAIL_DIR", cfg.ThumbnailDir)
	cfg.ThumbnailPattern = l.envString("XGT_THUMBNAIL_PATTERN", cfg.ThumbnailPattern)
	cfg.MetricsFile = l.envString("XGT_METRICS_FILE", cfg.MetricsFile)

	cfg.Telemetry.Enabled = l.envBool("XGT_TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.ExporterType = l.envString("XGT_TELEMETRY_EXPORTER", cfg.Telemetry.ExporterType)
	cfg.Telemetry.Endpoint = l.envString("XGT_TELEMETRY_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat("XGT_TELEMETRY_SAMPLING_RATE", cfg.Telemetry.SamplingRate)

	cfg.BatchConcurrency = l.envInt("XGT_BATCH_CONCURRENCY", cfg.BatchConcurrency)
	cfg.BatchFailFast = l.envBool("XGT_BATCH_FAIL_FAST", cfg.BatchFailFast)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// String renders the effective configuration for diagnostics.
func (c AppConfig) String() string {
	return fmt.Sprintf("log=%s/%s filters=%q/%q codecs=%q/%q thumbnail=%s metrics=%q telemetry=%t batch=%d fail_fast=%t",
		c.LogLevel, c.LogFormat, c.VideoFilter, c.AudioFilter, c.VideoCodec, c.AudioCodec,
		filepath.Join(c.ThumbnailDir, c.ThumbnailPattern), c.MetricsFile, c.Telemetry.Enabled,
		c.BatchConcurrency, c.BatchFailFast)
}
