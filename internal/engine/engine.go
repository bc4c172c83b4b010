package engine

import "context"

// Engine abstracts an inference backend (a local Ollama server or the hosted
// Gemini API). Requirement extraction, suggestion writing and embedding go
// through this interface instead of a concrete client.
type Engine interface {
	// Name identifies the backend, e.g. "ollama" or "gemini".
	Name() string

	// Chat sends messages to the given model and returns the assistant's response.
	// When jsonSchema is non-nil, structured JSON output is requested.
	Chat(ctx context.Context, model string, messages []Message, jsonSchema *Schema) (string, error)

	// Embed returns the embedding vector for the given text using the specified model.
	Embed(ctx context.Context, model string, text string) ([]float32, error)

	// IsRunning reports whether the backend is reachable.
	IsRunning(ctx context.Context) bool

	// HasModel reports whether the given model can be used without a download.
	HasModel(ctx context.Context, name string) bool

	// PullModel downloads a model. The optional callback receives progress updates.
	PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error
}
