package domain

import "context"

// DenseSearchPort is a thin capability interface over an external vector
// store (nearest-neighbor search over embeddings). Returned candidates carry
// 1-based ranks in result order and Source set to SourceDense.
type DenseSearchPort interface {
	Search(ctx context.Context, vector []float32, topK int) ([]Candidate, error)
}

// SparseSearchPort is a thin capability interface over an external keyword
// (BM25-style) index. Returned candidates carry 1-based ranks in result order
// and Source set to SourceSparse.
type SparseSearchPort interface {
	Search(ctx context.Context, queryText string, topK int) ([]Candidate, error)
}
