package retrieval_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retrieval-orchestrator/internal/domain"
	"retrieval-orchestrator/internal/usecase/retrieval"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func denseCandidates(ids ...string) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(ids))
	for i, id := range ids {
		out = append(out, domain.Candidate{
			DocID:  id,
			Text:   "text " + id,
			Source: domain.SourceDense,
			Rank:   i + 1,
		})
	}
	return out
}

func sparseCandidates(ids ...string) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(ids))
	for i, id := range ids {
		out = append(out, domain.Candidate{
			DocID:  id,
			Text:   "text " + id,
			Source: domain.SourceSparse,
			Rank:   i + 1,
		})
	}
	return out
}

func TestFuse_DocumentInBothListsSumsContributions(t *testing.T) {
	dense := denseCandidates("A", "B", "C")
	sparse := sparseCandidates("B", "A", "D")

	results := retrieval.Fuse(dense, sparse, retrieval.DefaultFusionConfig(), testLogger())
	require.Len(t, results, 4)

	// With k=60 both A and B score 1/61 + 1/62. Both are in both lists with
	// min source rank 1, so doc ID ascending puts A first.
	assert.Equal(t, "A", results[0].DocID)
	assert.Equal(t, "B", results[1].DocID)

	aScore := 1.0/61.0 + 1.0/62.0
	assert.InDelta(t, aScore, results[0].Score, 1e-12)
	assert.InDelta(t, aScore, results[1].Score, 1e-12)
}

func TestFuse_RankOrdering(t *testing.T) {
	// Dense: A, B, C. Sparse: B, D. B appears in both lists and wins.
	// A (dense 1) beats D (sparse 2), D beats C (dense 3).
	dense := denseCandidates("A", "B", "C")
	sparse := sparseCandidates("B", "D")

	results := retrieval.Fuse(dense, sparse, retrieval.DefaultFusionConfig(), testLogger())
	require.Len(t, results, 4)

	order := make([]string, 0, 4)
	for _, r := range results {
		order = append(order, r.DocID)
	}
	assert.Equal(t, []string{"B", "A", "D", "C"}, order)
}

func TestFuse_SharedDocsOutrankSingleSourceDocs(t *testing.T) {
	// Dense A,B,C against sparse B,D,A. B (dense 2 + sparse 1) edges out
	// A (dense 1 + sparse 3); D (sparse 2, 1/62) outranks C (dense 3, 1/63).
	dense := denseCandidates("A", "B", "C")
	sparse := sparseCandidates("B", "D", "A")

	results := retrieval.Fuse(dense, sparse, retrieval.DefaultFusionConfig(), testLogger())
	require.Len(t, results, 4)

	order := make([]string, 0, 4)
	for _, r := range results {
		order = append(order, r.DocID)
	}
	assert.Equal(t, []string{"B", "A", "D", "C"}, order)

	assert.InDelta(t, 1.0/62.0+1.0/61.0, results[0].Score, 1e-12)
	assert.InDelta(t, 1.0/61.0+1.0/63.0, results[1].Score, 1e-12)
	assert.InDelta(t, 1.0/62.0, results[2].Score, 1e-12)
	assert.InDelta(t, 1.0/63.0, results[3].Score, 1e-12)
}

func TestFuse_WeightsSkewTowardDense(t *testing.T) {
	dense := denseCandidates("A")
	sparse := sparseCandidates("B")

	cfg := retrieval.FusionConfig{K: 60, DenseWeight: 0.7, SparseWeight: 0.3}
	results := retrieval.Fuse(dense, sparse, cfg, testLogger())
	require.Len(t, results, 2)

	assert.Equal(t, "A", results[0].DocID)
	assert.InDelta(t, 0.7/61.0, results[0].Score, 1e-12)
	assert.InDelta(t, 0.3/61.0, results[1].Score, 1e-12)
}

func TestFuse_EmptySparsePreservesDenseOrder(t *testing.T) {
	dense := denseCandidates("X", "Y", "Z")

	results := retrieval.Fuse(dense, nil, retrieval.DefaultFusionConfig(), testLogger())
	require.Len(t, results, 3)

	for i, want := range []string{"X", "Y", "Z"} {
		assert.Equal(t, want, results[i].DocID)
		assert.Equal(t, i+1, results[i].DenseRank)
		assert.Zero(t, results[i].SparseRank)
	}
}

func TestFuse_BothEmpty(t *testing.T) {
	results := retrieval.Fuse(nil, nil, retrieval.DefaultFusionConfig(), testLogger())
	assert.Empty(t, results)
}

func TestFuse_TieBreakByDocID(t *testing.T) {
	// B at dense rank 1 and A at sparse rank 1 score identically; neither is
	// in both lists and both have min source rank 1, so doc ID decides.
	dense := denseCandidates("B")
	sparse := sparseCandidates("A")

	cfg := retrieval.FusionConfig{K: 60, DenseWeight: 1.0, SparseWeight: 1.0}
	results := retrieval.Fuse(dense, sparse, cfg, testLogger())
	require.Len(t, results, 2)

	assert.Equal(t, "A", results[0].DocID)
	assert.Equal(t, "B", results[1].DocID)
}

func TestFuse_FinalRanksAreDense(t *testing.T) {
	dense := denseCandidates("A", "B", "C", "D", "E")
	sparse := sparseCandidates("C", "A", "F")

	results := retrieval.Fuse(dense, sparse, retrieval.DefaultFusionConfig(), testLogger())
	require.Len(t, results, 6)

	for i, r := range results {
		assert.Equal(t, i+1, r.Rank)
	}
}

func TestFuse_Deterministic(t *testing.T) {
	dense := denseCandidates("A", "B", "C", "D")
	sparse := sparseCandidates("D", "C", "B", "A")

	first := retrieval.Fuse(dense, sparse, retrieval.DefaultFusionConfig(), testLogger())
	for i := 0; i < 10; i++ {
		again := retrieval.Fuse(dense, sparse, retrieval.DefaultFusionConfig(), testLogger())
		assert.Equal(t, first, again)
	}
}

func TestFuse_SparseTextFillsMissingDenseText(t *testing.T) {
	dense := []domain.Candidate{{DocID: "A", Text: "", Source: domain.SourceDense, Rank: 1}}
	sparse := []domain.Candidate{{DocID: "A", Text: "sparse text", Source: domain.SourceSparse, Rank: 1}}

	results := retrieval.Fuse(dense, sparse, retrieval.DefaultFusionConfig(), testLogger())
	require.Len(t, results, 1)
	assert.Equal(t, "sparse text", results[0].Text)
}
