// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package batch runs many independent transcode jobs with bounded
// concurrency.
package batch

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/xgtranscode/internal/filter"
	"github.com/ManuGH/xgtranscode/internal/jobspec"
	"github.com/ManuGH/xgtranscode/internal/validate"
)

// Manifest lists the jobs of one batch.
type Manifest struct {
	// Concurrency and FailFast override the configured values when set.
	Concurrency *int  `yaml:"concurrency"`
	FailFast    *bool `yaml:"fail_fast"`
	Jobs        []Job `yaml:"jobs"`
}

// Job is one manifest entry. Numeric fields are strings so the
// "disabled" and "unset" keywords can be used.
type Job struct {
	Name        string `yaml:"name"`
	Input       string `yaml:"input"`
	Output      string `yaml:"output"`
	Thumbnail   string `yaml:"thumbnail"`
	Height      string `yaml:"height"`
	Width       string `yaml:"width"`
	BitRate     string `yaml:"bitrate"`
	VideoFilter string `yaml:"video_filter"`
	AudioFilter string `yaml:"audio_filter"`
	// ThumbnailDir overrides the per-job thumbnail directory.
	ThumbnailDir string `yaml:"thumbnail_dir"`
}

// ThumbnailDirIn returns the directory the job writes its thumbnail to:
// ThumbnailDir when set, otherwise a directory named after the job under
// base, so jobs asking for the same frame index do not share a file.
func (j Job) ThumbnailDirIn(base string) string {
	if j.ThumbnailDir != "" {
		return j.ThumbnailDir
	}
	return filepath.Join(base, j.Name)
}

// CheckThumbnailTargets rejects jobs that would write the same thumbnail
// file when base is the configured thumbnail directory.
func CheckThumbnailTargets(jobs []Job, base string) error {
	targets := make(map[string]string, len(jobs))
	for _, j := range jobs {
		spec, err := j.Spec()
		if err != nil {
			return fmt.Errorf("job %q: %w", j.Name, err)
		}
		if spec.ThumbnailIndex == 0 {
			continue
		}
		key := filepath.Clean(j.ThumbnailDirIn(base)) + "#" + strconv.Itoa(spec.ThumbnailIndex)
		if prev, dup := targets[key]; dup {
			return fmt.Errorf("job %q: thumbnail %d in %s already written by job %q",
				j.Name, spec.ThumbnailIndex, j.ThumbnailDirIn(base), prev)
		}
		targets[key] = j.Name
	}
	return nil
}

// Spec converts the job into validated positional parameters.
func (j Job) Spec() (jobspec.Spec, error) {
	return jobspec.Parse([]string{j.Input, j.Output, j.Thumbnail, j.Height, j.Width, j.BitRate})
}

// LoadManifest reads a YAML manifest strictly. Relative job paths are
// resolved against the manifest directory.
func LoadManifest(path string) (*Manifest, error) {
	// #nosec G304 -- manifest paths are provided by the operator via CLI
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	base := filepath.Dir(path)
	for i := range m.Jobs {
		m.Jobs[i].Input = resolve(base, m.Jobs[i].Input)
		m.Jobs[i].Output = resolve(base, m.Jobs[i].Output)
		m.Jobs[i].ThumbnailDir = resolve(base, m.Jobs[i].ThumbnailDir)
	}
	return m, nil
}

// ParseManifest decodes and validates a manifest document.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("manifest is empty")
		}
		return nil, fmt.Errorf("strict manifest parse error: %w", err)
	}
	if len(m.Jobs) == 0 {
		return nil, errors.New("manifest has no jobs")
	}
	outputs := make(map[string]int, len(m.Jobs))
	names := make(map[string]bool, len(m.Jobs))
	for i := range m.Jobs {
		j := &m.Jobs[i]
		if j.Name == "" {
			j.Name = "job-" + strconv.Itoa(i+1)
		}
		if names[j.Name] {
			return nil, fmt.Errorf("job %q: duplicate job name", j.Name)
		}
		names[j.Name] = true
		if _, err := j.Spec(); err != nil {
			return nil, fmt.Errorf("job %q: %w", j.Name, err)
		}
		v := validate.New()
		v.Filename("name", j.Name)
		checkFilter(v, "video_filter", j.VideoFilter, true)
		checkFilter(v, "audio_filter", j.AudioFilter, false)
		if err := v.Err(); err != nil {
			return nil, fmt.Errorf("job %q: %w", j.Name, err)
		}
		if prev, dup := outputs[j.Output]; dup {
			return nil, fmt.Errorf("job %q: output %s already written by job %q", j.Name, j.Output, m.Jobs[prev].Name)
		}
		outputs[j.Output] = i
	}
	return &m, nil
}

func checkFilter(v *validate.Validator, field, spec string, video bool) {
	if spec != "" {
		v.Check(field, spec, filter.Validate(spec, video))
	}
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
