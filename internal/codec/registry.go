// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package codec

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ManuGH/xgtranscode/internal/media"
)

// Registry maps codec IDs to factories.
type Registry struct {
	mu       sync.RWMutex
	decoders map[media.CodecID]DecoderFactory
	encoders map[media.CodecID]EncoderFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		decoders: make(map[media.CodecID]DecoderFactory),
		encoders: make(map[media.CodecID]EncoderFactory),
	}
}

// RegisterDecoder adds or replaces a decoder.
func (r *Registry) RegisterDecoder(f DecoderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[f.ID] = f
}

// RegisterEncoder adds or replaces an encoder.
func (r *Registry) RegisterEncoder(f EncoderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encoders[f.ID] = f
}

// FindDecoder looks up a decoder by codec ID.
func (r *Registry) FindDecoder(id media.CodecID) (DecoderFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.decoders[id]
	if !ok {
		return DecoderFactory{}, fmt.Errorf("%w: decoder %q", ErrCodecNotFound, id)
	}
	return f, nil
}

// FindEncoder looks up an encoder by codec ID.
func (r *Registry) FindEncoder(id media.CodecID) (EncoderFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.encoders[id]
	if !ok {
		return EncoderFactory{}, fmt.Errorf("%w: encoder %q", ErrCodecNotFound, id)
	}
	return f, nil
}

// Encoders lists registered encoder IDs in sorted order.
func (r *Registry) Encoders() []media.CodecID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]media.CodecID, 0, len(r.encoders))
	for id := range r.encoders {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide registry holding the built-in codecs.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = NewRegistry()
		RegisterBuiltins(defaultReg)
	})
	return defaultReg
}

// RegisterBuiltins adds every codec shipped with this package.
func RegisterBuiltins(r *Registry) {
	registerRawVideo(r)
	registerZlib(r)
	registerPCM(r, pcmS16LE)
	registerPCM(r, pcmF32LE)
}
