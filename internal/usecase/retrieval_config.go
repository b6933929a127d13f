package usecase

import (
	"fmt"
	"time"

	"retrieval-orchestrator/internal/usecase/retrieval"
)

// HybridConfig holds tunable parameters for one hybrid retrieval call.
type HybridConfig struct {
	// DenseTopK and SparseTopK bound each source's candidate list.
	DenseTopK  int
	SparseTopK int
	// FinalTopK truncates the fused ranking.
	FinalTopK int
	// DenseWeight and SparseWeight scale each source's RRF contribution.
	DenseWeight  float64
	SparseWeight float64
	// RRFK is the Reciprocal Rank Fusion constant. Standard value is 60.0.
	RRFK float64
	// MinScore drops fused results scoring below it.
	MinScore float64
	// SearchTimeout bounds the combined dense+sparse wait. On expiry the
	// call degrades to whichever sources responded in time.
	SearchTimeout time.Duration
}

// DefaultHybridConfig returns the production defaults. The weights favor
// semantic search (0.7 dense / 0.3 sparse).
func DefaultHybridConfig() HybridConfig {
	return HybridConfig{
		DenseTopK:     20,
		SparseTopK:    20,
		FinalTopK:     5,
		DenseWeight:   0.7,
		SparseWeight:  0.3,
		RRFK:          60.0,
		MinScore:      0.0,
		SearchTimeout: 80 * time.Millisecond,
	}
}

// Validate checks the configuration values.
func (c HybridConfig) Validate() error {
	if c.DenseTopK <= 0 {
		return fmt.Errorf("denseTopK must be positive, got %d", c.DenseTopK)
	}
	if c.SparseTopK <= 0 {
		return fmt.Errorf("sparseTopK must be positive, got %d", c.SparseTopK)
	}
	if c.FinalTopK <= 0 {
		return fmt.Errorf("finalTopK must be positive, got %d", c.FinalTopK)
	}
	if c.DenseWeight < 0 || c.SparseWeight < 0 {
		return fmt.Errorf("source weights must be non-negative, got dense=%f sparse=%f", c.DenseWeight, c.SparseWeight)
	}
	if c.DenseWeight == 0 && c.SparseWeight == 0 {
		return fmt.Errorf("at least one source weight must be positive")
	}
	if c.RRFK <= 0 {
		return fmt.Errorf("rrfK must be positive, got %f", c.RRFK)
	}
	if c.SearchTimeout <= 0 {
		return fmt.Errorf("searchTimeout must be positive, got %v", c.SearchTimeout)
	}
	return nil
}

func (c HybridConfig) fusionConfig() retrieval.FusionConfig {
	return retrieval.FusionConfig{
		K:            c.RRFK,
		DenseWeight:  c.DenseWeight,
		SparseWeight: c.SparseWeight,
	}
}

// AgenticConfig holds parameters for the iterative retrieval loop.
type AgenticConfig struct {
	// MaxIterations is a hard cap on retrieval rounds.
	MaxIterations int
	// SufficiencyThreshold is the coverage level at which evidence is
	// judged sufficient.
	SufficiencyThreshold float64
	// QueryRewritingEnabled gates the rewrite step between rounds.
	QueryRewritingEnabled bool
}

// DefaultAgenticConfig returns the production defaults.
func DefaultAgenticConfig() AgenticConfig {
	return AgenticConfig{
		MaxIterations:         3,
		SufficiencyThreshold:  0.8,
		QueryRewritingEnabled: true,
	}
}

// Validate checks the configuration values.
func (c AgenticConfig) Validate() error {
	if c.MaxIterations <= 0 {
		return fmt.Errorf("maxIterations must be positive, got %d", c.MaxIterations)
	}
	if c.SufficiencyThreshold < 0 || c.SufficiencyThreshold > 1 {
		return fmt.Errorf("sufficiencyThreshold must be in [0,1], got %f", c.SufficiencyThreshold)
	}
	return nil
}
