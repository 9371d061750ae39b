// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package container opens inputs and creates outputs by file extension and
// enforces the muxing rules shared by every output format.
package container

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ManuGH/xgtranscode/internal/container/pktdb"
	"github.com/ManuGH/xgtranscode/internal/container/y4m"
	"github.com/ManuGH/xgtranscode/internal/media"
)

// ErrUnknownFormat is returned when no format claims a path.
var ErrUnknownFormat = errors.New("unknown container format")

// Flags describe format requirements.
type Flags uint32

const (
	// FlagGlobalHeader means stream headers live in the container, so
	// encoders must publish them as extradata.
	FlagGlobalHeader Flags = 1 << iota
)

// Demuxer reads packets from an input.
type Demuxer interface {
	Streams() []media.StreamDescriptor
	// ReadPacket returns io.EOF once the input is exhausted.
	ReadPacket(ctx context.Context) (*media.Packet, error)
	Close() error
}

// Muxer is the format-specific writer behind an Output.
type Muxer interface {
	WriteHeader(streams []media.StreamDescriptor) error
	WritePacket(pkt *media.Packet) error
	WriteTrailer() error
	Close() error
}

// Format describes one container format.
type Format struct {
	Name       string
	Extensions []string
	Flags      Flags
	Open       func(path string) (Demuxer, error)
	Create     func(path string) (Muxer, error)
}

// Registry maps file extensions to formats.
type Registry struct {
	mu      sync.RWMutex
	formats []Format
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a format. Later registrations win on extension clashes.
func (r *Registry) Register(f Format) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formats = append([]Format{f}, r.formats...)
}

// FormatFor picks the format claiming path's extension.
func (r *Registry) FormatFor(path string) (Format, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.formats {
		for _, e := range f.Extensions {
			if e == ext {
				return f, nil
			}
		}
	}
	return Format{}, fmt.Errorf("%w: %q", ErrUnknownFormat, path)
}

// OpenInput opens path for demuxing.
func (r *Registry) OpenInput(path string) (Demuxer, error) {
	f, err := r.FormatFor(path)
	if err != nil {
		return nil, err
	}
	if f.Open == nil {
		return nil, fmt.Errorf("%s: format cannot be read", f.Name)
	}
	return f.Open(path)
}

// CreateOutput creates path for muxing.
func (r *Registry) CreateOutput(path string) (*Output, error) {
	f, err := r.FormatFor(path)
	if err != nil {
		return nil, err
	}
	if f.Create == nil {
		return nil, fmt.Errorf("%s: format cannot be written", f.Name)
	}
	m, err := f.Create(path)
	if err != nil {
		return nil, err
	}
	return newOutput(f, path, m), nil
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the registry holding the built-in formats.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = NewRegistry()
		RegisterBuiltins(defaultReg)
	})
	return defaultReg
}

// RegisterBuiltins adds the pktdb and y4m formats.
func RegisterBuiltins(r *Registry) {
	r.Register(Format{
		Name:       "pktdb",
		Extensions: []string{"pktdb", "xgt"},
		Flags:      FlagGlobalHeader,
		Open: func(path string) (Demuxer, error) {
			v, err := pktdb.Open(path)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
		Create: func(path string) (Muxer, error) {
			v, err := pktdb.Create(path)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
	})
	r.Register(Format{
		Name:       "yuv4mpegpipe",
		Extensions: []string{"y4m"},
		Open: func(path string) (Demuxer, error) {
			v, err := y4m.Open(path)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
		Create: func(path string) (Muxer, error) {
			v, err := y4m.Create(path)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
	})
}
