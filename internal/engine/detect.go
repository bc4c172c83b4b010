package engine

import (
	"context"
	"fmt"
	"strings"
)

// Providers.
const (
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

// Options holds the connection settings for every provider.
type Options struct {
	OllamaBaseURL string
	GeminiAPIKey  string
}

// New returns the engine for provider.
func New(ctx context.Context, provider string, opts Options) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", ProviderOllama:
		return NewOllamaEngine(opts.OllamaBaseURL), nil
	case ProviderGemini:
		return NewGeminiEngine(ctx, opts.GeminiAPIKey)
	default:
		return nil, fmt.Errorf("unknown inference provider %q", provider)
	}
}

// ParseModelRef splits "provider:model" into its parts. A reference without
// a known provider prefix is an Ollama model, so "nomic-embed-text:v1.5"
// keeps its tag.
func ParseModelRef(ref string) (provider, model string) {
	ref = strings.TrimSpace(ref)
	if p, m, ok := strings.Cut(ref, ":"); ok {
		switch strings.ToLower(p) {
		case ProviderOllama, ProviderGemini:
			return strings.ToLower(p), m
		}
	}
	return ProviderOllama, ref
}
