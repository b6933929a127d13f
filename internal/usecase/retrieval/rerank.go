package retrieval

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"retrieval-orchestrator/internal/domain"
	"retrieval-orchestrator/internal/worker"
)

// RerankConfig holds cascade parameters.
type RerankConfig struct {
	// PrefilterThreshold excludes candidates whose lexical score falls below
	// it from cross-encoder scoring.
	PrefilterThreshold float64
	// MaxFullModelDocs caps how many candidates the cross-encoder may score.
	MaxFullModelDocs int
	// EarlyExitThreshold and EarlyExitMinResults stop scoring once enough
	// candidates exceed the threshold.
	EarlyExitThreshold  float64
	EarlyExitMinResults int
}

// DefaultRerankConfig returns the standard cascade settings.
func DefaultRerankConfig() RerankConfig {
	return RerankConfig{
		PrefilterThreshold:  0.1,
		MaxFullModelDocs:    10,
		EarlyExitThreshold:  0.9,
		EarlyExitMinResults: 3,
	}
}

// CascadedReranker re-scores fused candidates in two stages: a cheap lexical
// prefilter, then one-at-a-time cross-encoder scoring with an early-exit
// policy that bounds worst-case latency.
type CascadedReranker struct {
	scorer domain.CrossEncoderScorer
	pool   *worker.ComputePool
	logger *slog.Logger
}

// NewCascadedReranker creates a CascadedReranker. The compute pool bounds
// concurrent cross-encoder inference across requests.
func NewCascadedReranker(scorer domain.CrossEncoderScorer, pool *worker.ComputePool, logger *slog.Logger) *CascadedReranker {
	return &CascadedReranker{scorer: scorer, pool: pool, logger: logger}
}

// Rerank reorders candidates under the cascade policy. Candidates arrive in
// fused order (best first) and that order is the fallback ordering for
// everything the cross-encoder does not score.
//
// A scoring failure on one candidate sinks that candidate to the bottom of
// the output instead of failing the batch. Empty input returns empty with no
// scorer calls.
func (r *CascadedReranker) Rerank(ctx context.Context, query string, candidates []domain.FusedResult, cfg RerankConfig) []domain.RerankedResult {
	if len(candidates) == 0 {
		return []domain.RerankedResult{}
	}

	start := time.Now()

	// Stage 1: lexical prefilter. Excluded candidates keep their fused order
	// as the fallback ordering key.
	survivors := make([]domain.FusedResult, 0, len(candidates))
	prefiltered := make([]domain.RerankedResult, 0)
	for _, c := range candidates {
		if PrefilterScore(query, c.Text) < cfg.PrefilterThreshold {
			prefiltered = append(prefiltered, domain.RerankedResult{
				DocID:  c.DocID,
				Text:   c.Text,
				Score:  c.Score,
				Reason: domain.ExitPrefiltered,
				Fused:  c,
			})
			continue
		}
		survivors = append(survivors, c)
	}

	// Stage 2: cross-encoder scoring, best fused rank first, early exit once
	// enough strong matches are found.
	scored := make([]domain.RerankedResult, 0, len(survivors))
	sunk := make([]domain.RerankedResult, 0)
	unscored := make([]domain.RerankedResult, 0)
	aboveThreshold := 0
	earlyExit := false

	for i, c := range survivors {
		if earlyExit || len(scored)+len(sunk) >= cfg.MaxFullModelDocs {
			unscored = append(unscored, domain.RerankedResult{
				DocID:  c.DocID,
				Text:   c.Text,
				Score:  c.Score,
				Reason: domain.ExitEarly,
				Fused:  c,
			})
			continue
		}

		var score float32
		err := r.pool.Do(ctx, "cross_encoder_score", func(ctx context.Context) error {
			var scoreErr error
			score, scoreErr = r.scorer.Score(ctx, query, c.Text)
			return scoreErr
		})
		if err != nil {
			r.logger.Warn("candidate_scoring_failed",
				slog.String("doc_id", c.DocID),
				slog.Int("position", i+1),
				slog.String("error", err.Error()))
			sunk = append(sunk, domain.RerankedResult{
				DocID:  c.DocID,
				Text:   c.Text,
				Score:  math.Inf(-1),
				Reason: domain.ExitFullModel,
				Fused:  c,
			})
			continue
		}

		scored = append(scored, domain.RerankedResult{
			DocID:  c.DocID,
			Text:   c.Text,
			Score:  float64(score),
			Reason: domain.ExitFullModel,
			Fused:  c,
		})
		if float64(score) > cfg.EarlyExitThreshold {
			aboveThreshold++
			if aboveThreshold >= cfg.EarlyExitMinResults {
				earlyExit = true
			}
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	// Scored head first, then unscored survivors and prefiltered candidates
	// in their fused order, with failed candidates at the very bottom.
	out := make([]domain.RerankedResult, 0, len(candidates))
	out = append(out, scored...)
	out = append(out, unscored...)
	out = append(out, prefiltered...)
	out = append(out, sunk...)

	r.logger.Info("reranking_completed",
		slog.Int("candidate_count", len(candidates)),
		slog.Int("scored_count", len(scored)),
		slog.Int("prefiltered_count", len(prefiltered)),
		slog.Int("failed_count", len(sunk)),
		slog.Bool("early_exit", earlyExit),
		slog.String("model", r.scorer.ModelName()),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return out
}
