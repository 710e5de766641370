// Package memory provides the vector-memory augmentation used by the chat
// service: similarity search over previously indexed conversation text,
// with pluggable backends selected by configuration.
package memory

import "context"

// EmbeddingDimension is the vector size produced by the embedder. The
// pgvector schema is created with this dimension.
const EmbeddingDimension = 1536

// Result is a single similarity-search hit.
type Result struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Score    float64           `json:"score"`
}

// Index is the memory-augmentation contract consumed by chat orchestration.
// Callers treat Search failures as empty context and Add failures as no-ops;
// implementations still return errors so callers can log them. Writes are
// only eventually visible to searches.
type Index interface {
	Search(ctx context.Context, query string, k int) ([]Result, error)
	Add(ctx context.Context, text string, metadata map[string]string) error
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NopIndex disables memory augmentation.
type NopIndex struct{}

func (NopIndex) Search(ctx context.Context, query string, k int) ([]Result, error) {
	return nil, nil
}

func (NopIndex) Add(ctx context.Context, text string, metadata map[string]string) error {
	return nil
}
