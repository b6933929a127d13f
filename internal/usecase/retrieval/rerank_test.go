package retrieval_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"retrieval-orchestrator/internal/domain"
	"retrieval-orchestrator/internal/usecase/retrieval"
	"retrieval-orchestrator/internal/worker"
)

// MockScorer
type MockScorer struct {
	mock.Mock
}

func (m *MockScorer) Score(ctx context.Context, query, documentText string) (float32, error) {
	args := m.Called(ctx, query, documentText)
	return args.Get(0).(float32), args.Error(1)
}

func (m *MockScorer) ModelName() string {
	return "mock-cross-encoder"
}

func fusedCandidates(texts map[string]string, order ...string) []domain.FusedResult {
	out := make([]domain.FusedResult, 0, len(order))
	for i, id := range order {
		out = append(out, domain.FusedResult{
			DocID: id,
			Text:  texts[id],
			Score: 1.0 / float64(61+i),
			Rank:  i + 1,
		})
	}
	return out
}

func newTestReranker(scorer domain.CrossEncoderScorer) *retrieval.CascadedReranker {
	pool := worker.NewComputePool(4, testLogger())
	return retrieval.NewCascadedReranker(scorer, pool, testLogger())
}

func TestRerank_ScoresAndReorders(t *testing.T) {
	scorer := new(MockScorer)
	texts := map[string]string{
		"doc1": "refund policy overview",
		"doc2": "refund policy details",
		"doc3": "refund policy exceptions",
	}
	candidates := fusedCandidates(texts, "doc1", "doc2", "doc3")

	scorer.On("Score", mock.Anything, "refund policy", texts["doc1"]).Return(float32(0.2), nil)
	scorer.On("Score", mock.Anything, "refund policy", texts["doc2"]).Return(float32(0.8), nil)
	scorer.On("Score", mock.Anything, "refund policy", texts["doc3"]).Return(float32(0.5), nil)

	results := newTestReranker(scorer).Rerank(context.Background(), "refund policy", candidates, retrieval.DefaultRerankConfig())
	require.Len(t, results, 3)

	assert.Equal(t, "doc2", results[0].DocID)
	assert.Equal(t, "doc3", results[1].DocID)
	assert.Equal(t, "doc1", results[2].DocID)
	for _, r := range results {
		assert.Equal(t, domain.ExitFullModel, r.Reason)
	}
	scorer.AssertExpectations(t)
}

func TestRerank_EarlyExitStopsScoring(t *testing.T) {
	scorer := new(MockScorer)
	texts := map[string]string{
		"doc1": "refund policy a",
		"doc2": "refund policy b",
		"doc3": "refund policy c",
		"doc4": "refund policy d",
		"doc5": "refund policy e",
	}
	candidates := fusedCandidates(texts, "doc1", "doc2", "doc3", "doc4", "doc5")

	scorer.On("Score", mock.Anything, "refund policy", texts["doc1"]).Return(float32(0.95), nil)
	scorer.On("Score", mock.Anything, "refund policy", texts["doc2"]).Return(float32(0.93), nil)
	scorer.On("Score", mock.Anything, "refund policy", texts["doc3"]).Return(float32(0.91), nil)

	cfg := retrieval.DefaultRerankConfig() // threshold 0.9, min results 3
	results := newTestReranker(scorer).Rerank(context.Background(), "refund policy", candidates, cfg)
	require.Len(t, results, 5)

	// Three strong scores trigger the exit; doc4 and doc5 keep fused order.
	assert.Equal(t, "doc1", results[0].DocID)
	assert.Equal(t, "doc2", results[1].DocID)
	assert.Equal(t, "doc3", results[2].DocID)
	assert.Equal(t, "doc4", results[3].DocID)
	assert.Equal(t, "doc5", results[4].DocID)
	assert.Equal(t, domain.ExitEarly, results[3].Reason)
	assert.Equal(t, domain.ExitEarly, results[4].Reason)

	scorer.AssertNumberOfCalls(t, "Score", 3)
}

func TestRerank_EarlyExitSkipsWeakIntermediateScore(t *testing.T) {
	scorer := new(MockScorer)
	texts := map[string]string{
		"doc1": "refund policy a",
		"doc2": "refund policy b",
		"doc3": "refund policy c",
		"doc4": "refund policy d",
		"doc5": "refund policy e",
	}
	candidates := fusedCandidates(texts, "doc1", "doc2", "doc3", "doc4", "doc5")

	scorer.On("Score", mock.Anything, "refund policy", texts["doc1"]).Return(float32(0.95), nil)
	scorer.On("Score", mock.Anything, "refund policy", texts["doc2"]).Return(float32(0.93), nil)
	scorer.On("Score", mock.Anything, "refund policy", texts["doc3"]).Return(float32(0.91), nil)
	scorer.On("Score", mock.Anything, "refund policy", texts["doc4"]).Return(float32(0.94), nil)

	// doc3 at 0.91 falls below the 0.92 threshold, so the third strong score
	// only arrives with doc4; the exit fires after the fourth call.
	cfg := retrieval.DefaultRerankConfig()
	cfg.EarlyExitThreshold = 0.92
	results := newTestReranker(scorer).Rerank(context.Background(), "refund policy", candidates, cfg)
	require.Len(t, results, 5)

	assert.Equal(t, "doc1", results[0].DocID)
	assert.Equal(t, "doc4", results[1].DocID)
	assert.Equal(t, "doc2", results[2].DocID)
	assert.Equal(t, "doc3", results[3].DocID)
	assert.Equal(t, "doc5", results[4].DocID)
	assert.InDelta(t, 0.94, results[1].Score, 1e-6)
	assert.Equal(t, domain.ExitEarly, results[4].Reason)

	scorer.AssertNumberOfCalls(t, "Score", 4)
}

func TestRerank_MaxFullModelDocsCap(t *testing.T) {
	scorer := new(MockScorer)
	texts := map[string]string{}
	order := []string{"doc1", "doc2", "doc3", "doc4"}
	for _, id := range order {
		texts[id] = "refund policy " + id
	}
	candidates := fusedCandidates(texts, order...)

	scorer.On("Score", mock.Anything, "refund policy", mock.Anything).Return(float32(0.5), nil)

	cfg := retrieval.DefaultRerankConfig()
	cfg.MaxFullModelDocs = 2
	results := newTestReranker(scorer).Rerank(context.Background(), "refund policy", candidates, cfg)
	require.Len(t, results, 4)

	scorer.AssertNumberOfCalls(t, "Score", 2)
	assert.Equal(t, domain.ExitEarly, results[2].Reason)
	assert.Equal(t, domain.ExitEarly, results[3].Reason)
}

func TestRerank_PrefilterExcludesLexicalMisses(t *testing.T) {
	scorer := new(MockScorer)
	texts := map[string]string{
		"doc1": "refund policy overview",
		"doc2": "shipping times by region",
	}
	candidates := fusedCandidates(texts, "doc1", "doc2")

	scorer.On("Score", mock.Anything, "refund policy", texts["doc1"]).Return(float32(0.6), nil)

	results := newTestReranker(scorer).Rerank(context.Background(), "refund policy", candidates, retrieval.DefaultRerankConfig())
	require.Len(t, results, 2)

	assert.Equal(t, "doc1", results[0].DocID)
	assert.Equal(t, "doc2", results[1].DocID)
	assert.Equal(t, domain.ExitPrefiltered, results[1].Reason)
	scorer.AssertNumberOfCalls(t, "Score", 1)
}

func TestRerank_ScoringFailureSinksCandidate(t *testing.T) {
	scorer := new(MockScorer)
	texts := map[string]string{
		"doc1": "refund policy a",
		"doc2": "refund policy b",
	}
	candidates := fusedCandidates(texts, "doc1", "doc2")

	scorer.On("Score", mock.Anything, "refund policy", texts["doc1"]).Return(float32(0), errors.New("inference backend down"))
	scorer.On("Score", mock.Anything, "refund policy", texts["doc2"]).Return(float32(0.4), nil)

	results := newTestReranker(scorer).Rerank(context.Background(), "refund policy", candidates, retrieval.DefaultRerankConfig())
	require.Len(t, results, 2)

	assert.Equal(t, "doc2", results[0].DocID)
	assert.Equal(t, "doc1", results[1].DocID)
	assert.True(t, math.IsInf(results[1].Score, -1))
}

func TestRerank_EmptyInput(t *testing.T) {
	scorer := new(MockScorer)
	results := newTestReranker(scorer).Rerank(context.Background(), "anything", nil, retrieval.DefaultRerankConfig())
	assert.Empty(t, results)
	scorer.AssertNotCalled(t, "Score")
}
