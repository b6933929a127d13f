package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"retrieval-orchestrator/internal/domain"
)

func TestNewQuery_NormalizesWhitespace(t *testing.T) {
	q := domain.NewQuery("  refund   policy \t details ")
	assert.Equal(t, "refund policy details", q.Text)
	assert.Equal(t, "en", q.Language)
}

func TestNewQuery_DetectsJapanese(t *testing.T) {
	q := domain.NewQuery("返金ポリシーについて")
	assert.Equal(t, "ja", q.Language)

	q = domain.NewQuery("refund ポリシー")
	assert.Equal(t, "ja", q.Language)
}

func TestNewQuery_EmptyInput(t *testing.T) {
	q := domain.NewQuery("   ")
	assert.Empty(t, q.Text)
}

func TestContainsJapanese(t *testing.T) {
	assert.True(t, domain.ContainsJapanese("ひらがな"))
	assert.True(t, domain.ContainsJapanese("カタカナ"))
	assert.True(t, domain.ContainsJapanese("漢字"))
	assert.False(t, domain.ContainsJapanese("english only"))
	assert.False(t, domain.ContainsJapanese(""))
}

func TestFusedResult_InBothSources(t *testing.T) {
	both := domain.FusedResult{DenseRank: 2, SparseRank: 5}
	assert.True(t, both.InBothSources())
	assert.Equal(t, 2, both.MinSourceRank())

	denseOnly := domain.FusedResult{DenseRank: 3}
	assert.False(t, denseOnly.InBothSources())
	assert.Equal(t, 3, denseOnly.MinSourceRank())

	sparseOnly := domain.FusedResult{SparseRank: 4}
	assert.False(t, sparseOnly.InBothSources())
	assert.Equal(t, 4, sparseOnly.MinSourceRank())
}
