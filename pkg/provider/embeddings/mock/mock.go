// Package mock provides a deterministic test double for the
// embeddings.Provider interface.
//
// Vectors are derived from a hash of the input text, so the same text always
// embeds to the same vector and different texts land in (almost certainly)
// different directions. No network calls are made.
package mock

import (
	"context"
	"hash/fnv"
	"math"
	"sync"

	"github.com/nipun-marak/realtime-avatar-chat/pkg/provider/embeddings"
)

var _ embeddings.Provider = (*Provider)(nil)

// Provider is a deterministic in-process embeddings provider.
type Provider struct {
	mu sync.Mutex

	// Dims is the vector length. Defaults to 8 when zero.
	Dims int

	// EmbedErr, if non-nil, is returned by Embed and EmbedBatch.
	EmbedErr error

	// Fixed, when set, overrides hashing: every text embeds to Fixed[text]
	// when present. Texts absent from the map fall back to hashing.
	Fixed map[string][]float32

	// EmbedCalls records every text passed to Embed or EmbedBatch, in order.
	EmbedCalls []string
}

func (p *Provider) dims() int {
	if p.Dims > 0 {
		return p.Dims
	}
	return 8
}

// Embed implements embeddings.Provider.
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = append(p.EmbedCalls, text)
	if p.EmbedErr != nil {
		return nil, p.EmbedErr
	}
	return p.vector(text), nil
}

// EmbedBatch implements embeddings.Provider.
func (p *Provider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = append(p.EmbedCalls, texts...)
	if p.EmbedErr != nil {
		return nil, p.EmbedErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.vector(t)
	}
	return out, nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int { return p.dims() }

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string { return "mock" }

// vector derives a unit-norm vector from the FNV hash of text.
func (p *Provider) vector(text string) []float32 {
	if v, ok := p.Fixed[text]; ok {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	dims := p.dims()
	out := make([]float32, dims)
	var norm float64
	for i := range out {
		// xorshift over the seed gives a stable pseudo-random component.
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		out[i] = float32(int64(seed%2000)-1000) / 1000
		norm += float64(out[i]) * float64(out[i])
	}
	if norm == 0 {
		out[0] = 1
		return out
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range out {
		out[i] *= scale
	}
	return out
}
