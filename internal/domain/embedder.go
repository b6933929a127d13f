package domain

import "context"

// EmbeddingProvider defines the capability to turn text into a dense vector.
// Implementations call an external inference service; the embedding cache is
// the only component that invokes this directly.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// ModelName returns the model identifier for logging/debugging.
	ModelName() string
}
