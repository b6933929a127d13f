package domain

import "context"

// CrossEncoderScorer defines the interface for cross-encoder relevance
// scoring. Scoring a single query/document pair is expensive relative to
// embedding similarity, so the reranking cascade calls it candidate by
// candidate and stops as soon as its early-exit policy allows.
//
// If a call errors, callers should sink that candidate rather than fail the
// whole batch.
type CrossEncoderScorer interface {
	Score(ctx context.Context, query, documentText string) (float32, error)

	// ModelName returns the model identifier for logging/debugging.
	ModelName() string
}
