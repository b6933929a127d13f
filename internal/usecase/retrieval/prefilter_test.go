package retrieval_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"retrieval-orchestrator/internal/usecase/retrieval"
)

func TestPrefilterScore_FullOverlap(t *testing.T) {
	score := retrieval.PrefilterScore("refund policy", "our refund policy lasts 30 days")
	assert.Equal(t, 1.0, score)
}

func TestPrefilterScore_PartialOverlap(t *testing.T) {
	score := retrieval.PrefilterScore("refund policy details", "the refund process takes a week")
	assert.InDelta(t, 1.0/3.0, score, 1e-12)
}

func TestPrefilterScore_NoOverlap(t *testing.T) {
	score := retrieval.PrefilterScore("refund policy", "shipping times vary by region")
	assert.Equal(t, 0.0, score)
}

func TestPrefilterScore_CaseInsensitive(t *testing.T) {
	score := retrieval.PrefilterScore("Refund POLICY", "REFUND policy")
	assert.Equal(t, 1.0, score)
}

func TestPrefilterScore_DuplicateQueryTermsCountOnce(t *testing.T) {
	score := retrieval.PrefilterScore("refund refund policy", "refund only")
	assert.Equal(t, 0.5, score)
}

func TestPrefilterScore_EmptyQuery(t *testing.T) {
	assert.Equal(t, 0.0, retrieval.PrefilterScore("", "some document"))
	assert.Equal(t, 0.0, retrieval.PrefilterScore("!!!", "some document"))
}

func TestPrefilterScore_PunctuationSplitting(t *testing.T) {
	score := retrieval.PrefilterScore("annual-billing", "annual billing explained")
	assert.Equal(t, 1.0, score)
}
