package similarity

import (
	"context"
	"fmt"

	"github.com/kalambet/skillgap/internal/engine"
)

// Source produces embedding vectors for one similarity signal. ID must be
// stable across restarts because it is part of the cache key.
type Source interface {
	ID() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Embedder wraps an Engine to generate text embeddings with one model.
type Embedder struct {
	engine engine.Engine
	model  string
}

// NewEmbedder creates an Embedder using the given Engine and model name.
func NewEmbedder(e engine.Engine, model string) *Embedder {
	return &Embedder{engine: e, model: model}
}

// ID returns "provider:model".
func (e *Embedder) ID() string {
	return e.engine.Name() + ":" + e.model
}

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.engine.Embed(ctx, e.model, text)
	if err != nil {
		return nil, fmt.Errorf("embedding with %s: %w", e.ID(), err)
	}
	return vec, nil
}
