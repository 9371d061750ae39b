// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package jobspec parses the six positional job parameters shared by the
// command line and batch manifests.
package jobspec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUsage marks malformed job parameters.
var ErrUsage = errors.New("usage error")

// Keywords accepted in place of numbers.
const (
	Disabled = "disabled"
	Unset    = "unset"
)

// NArgs is the number of positional parameters of a job.
const NArgs = 6

// Spec is one fully parsed job.
type Spec struct {
	Input  string
	Output string
	// ThumbnailIndex is the 1-based frame ordinal to capture, 0 when disabled.
	ThumbnailIndex int
	// Height, Width and BitRate are 0 when unset.
	Height  int
	Width   int
	BitRate int64
}

// Parse reads input, output, thumbnail index, height, width and bit rate.
func Parse(args []string) (Spec, error) {
	if len(args) != NArgs {
		return Spec{}, fmt.Errorf("%w: want %d arguments (input output thumbnail height width bitrate), got %d", ErrUsage, NArgs, len(args))
	}
	s := Spec{Input: args[0], Output: args[1]}
	if s.Input == "" || s.Output == "" {
		return Spec{}, fmt.Errorf("%w: input and output paths are required", ErrUsage)
	}

	var err error
	if s.ThumbnailIndex, err = ParseThumbnail(args[2]); err != nil {
		return Spec{}, err
	}
	h, err := ParseOverride("height", args[3])
	if err != nil {
		return Spec{}, err
	}
	w, err := ParseOverride("width", args[4])
	if err != nil {
		return Spec{}, err
	}
	br, err := ParseOverride("bitrate", args[5])
	if err != nil {
		return Spec{}, err
	}
	s.Height, s.Width, s.BitRate = int(h), int(w), br
	return s, nil
}

// ParseThumbnail accepts a non-negative integer or "disabled".
func ParseThumbnail(v string) (int, error) {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, Disabled) || v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: thumbnail index %q is not a number", ErrUsage, v)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: thumbnail index %d is negative", ErrUsage, n)
	}
	return n, nil
}

// ParseOverride accepts an integer or "unset". Zero and negative values
// also mean unset.
func ParseOverride(name, v string) (int64, error) {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, Unset) || v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a number", ErrUsage, name, v)
	}
	if n <= 0 {
		return 0, nil
	}
	return n, nil
}

// Args renders s back into positional form.
func (s Spec) Args() []string {
	thumb := Disabled
	if s.ThumbnailIndex > 0 {
		thumb = strconv.Itoa(s.ThumbnailIndex)
	}
	override := func(n int64) string {
		if n <= 0 {
			return Unset
		}
		return strconv.FormatInt(n, 10)
	}
	return []string{s.Input, s.Output, thumb, override(int64(s.Height)), override(int64(s.Width)), override(s.BitRate)}
}
