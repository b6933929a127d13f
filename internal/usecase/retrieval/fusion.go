package retrieval

import (
	"log/slog"
	"sort"

	"retrieval-orchestrator/internal/domain"
)

// FusionConfig holds Reciprocal Rank Fusion parameters.
type FusionConfig struct {
	// K is the RRF constant. Standard value is 60.0.
	K float64
	// DenseWeight and SparseWeight scale each list's rank contribution.
	// Equal weights give pure RRF.
	DenseWeight  float64
	SparseWeight float64
}

// DefaultFusionConfig returns pure RRF with the standard constant.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{K: 60.0, DenseWeight: 1.0, SparseWeight: 1.0}
}

// Fuse merges dense and sparse candidate lists with Reciprocal Rank Fusion:
// each document scores the sum over lists containing it of w/(k+rank), rank
// 1-based. Output is sorted by fused score descending with deterministic
// tie-breaks, and final ranks form a dense 1..N sequence.
//
// Ties are broken by: presence in both lists first, then better (lower)
// minimum source rank, then document ID ascending. Identical inputs always
// produce identical orderings.
func Fuse(dense, sparse []domain.Candidate, cfg FusionConfig, logger *slog.Logger) []domain.FusedResult {
	fusedMap := make(map[string]*domain.FusedResult, len(dense)+len(sparse))

	for i, c := range dense {
		rank := i + 1
		fr, ok := fusedMap[c.DocID]
		if !ok {
			fr = &domain.FusedResult{DocID: c.DocID, Text: c.Text}
			fusedMap[c.DocID] = fr
		}
		fr.DenseRank = rank
		fr.Score += cfg.DenseWeight / (cfg.K + float64(rank))
	}

	for i, c := range sparse {
		rank := i + 1
		fr, ok := fusedMap[c.DocID]
		if !ok {
			fr = &domain.FusedResult{DocID: c.DocID, Text: c.Text}
			fusedMap[c.DocID] = fr
		}
		if fr.Text == "" {
			fr.Text = c.Text
		}
		fr.SparseRank = rank
		fr.Score += cfg.SparseWeight / (cfg.K + float64(rank))
	}

	results := make([]domain.FusedResult, 0, len(fusedMap))
	for _, fr := range fusedMap {
		results = append(results, *fr)
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.InBothSources() != b.InBothSources() {
			return a.InBothSources()
		}
		if a.MinSourceRank() != b.MinSourceRank() {
			return a.MinSourceRank() < b.MinSourceRank()
		}
		return a.DocID < b.DocID
	})

	for i := range results {
		results[i].Rank = i + 1
	}

	if logger != nil {
		logger.Debug("rrf_fusion_completed",
			slog.Int("dense_count", len(dense)),
			slog.Int("sparse_count", len(sparse)),
			slog.Int("fused_count", len(results)))
	}

	return results
}
