package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"retrieval-orchestrator/internal/domain"
	"retrieval-orchestrator/internal/infra/embedcache"
	"retrieval-orchestrator/internal/infra/logger"
	"retrieval-orchestrator/internal/usecase/retrieval"
)

// RetrievalResult is the output of one hybrid retrieval call.
type RetrievalResult struct {
	// Results is the fused ranking, min-score filtered and truncated.
	Results []domain.FusedResult
	// Partial is set when one source failed or timed out and the ranking
	// was built from the surviving source alone.
	Partial bool
	// RetrievalID correlates log events across pipeline stages.
	RetrievalID string
}

// HybridRetriever orchestrates embedding, parallel dense+sparse search, and
// rank fusion into a single retrieval call.
type HybridRetriever struct {
	cache  *embedcache.Cache
	dense  domain.DenseSearchPort
	sparse domain.SparseSearchPort
	logger *logger.ContextLogger
}

// NewHybridRetriever wires the retrieval graph for one call path.
func NewHybridRetriever(
	cache *embedcache.Cache,
	dense domain.DenseSearchPort,
	sparse domain.SparseSearchPort,
	log *slog.Logger,
) *HybridRetriever {
	return &HybridRetriever{
		cache:  cache,
		dense:  dense,
		sparse: sparse,
		logger: logger.NewContextLoggerFrom(log, "retrieval-orchestrator"),
	}
}

// sourceOutcome tags one search branch's result so partial failure degrades
// instead of short-circuiting the call.
type sourceOutcome struct {
	source     domain.SearchSource
	candidates []domain.Candidate
	err        error
	elapsed    time.Duration
}

// Retrieve runs the hybrid pipeline: embed the query through the cache, run
// dense and sparse search concurrently bounded by cfg.SearchTimeout, fuse
// with RRF, filter by MinScore, truncate to FinalTopK.
//
// If one source fails the call degrades to the survivor and marks the result
// partial; if both fail it returns domain.ErrRetrieval. A timeout uses
// whatever arrived in time.
func (r *HybridRetriever) Retrieve(ctx context.Context, query domain.Query, cfg HybridConfig) (*RetrievalResult, error) {
	if query.Text == "" {
		return nil, fmt.Errorf("query is empty")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retrieval config: %w", err)
	}

	retrievalID := uuid.NewString()
	start := time.Now()

	// Stash the ID in the context so every event this call emits, here and
	// in downstream stages, carries it without manual threading.
	ctx = logger.WithRetrievalID(ctx, retrievalID)
	log := r.logger.WithContext(ctx)

	vector, err := r.cache.GetOrCompute(ctx, query.Text)
	if err != nil {
		// Dense search is impossible without the vector; sparse can still
		// answer, so treat this like a dense-source failure below.
		log.Warn("query_embedding_failed",
			slog.String("error", err.Error()))
		vector = nil
	}

	searchCtx, cancel := context.WithTimeout(ctx, cfg.SearchTimeout)
	defer cancel()

	outcomes := make(chan sourceOutcome, 2)
	branches := 0

	if vector != nil {
		branches++
		go func() {
			branchStart := time.Now()
			candidates, searchErr := r.dense.Search(searchCtx, vector, cfg.DenseTopK)
			if searchErr != nil {
				searchErr = fmt.Errorf("%w: %v", domain.ErrVectorStore, searchErr)
			}
			outcomes <- sourceOutcome{domain.SourceDense, candidates, searchErr, time.Since(branchStart)}
		}()
	}

	branches++
	go func() {
		branchStart := time.Now()
		candidates, searchErr := r.sparse.Search(searchCtx, query.Text, cfg.SparseTopK)
		if searchErr != nil {
			searchErr = fmt.Errorf("%w: %v", domain.ErrSparseIndex, searchErr)
		}
		outcomes <- sourceOutcome{domain.SourceSparse, candidates, searchErr, time.Since(branchStart)}
	}()

	var dense, sparse []domain.Candidate
	denseOK, sparseOK := false, false
	partial := vector == nil
	received := 0

collect:
	for received < branches {
		select {
		case out := <-outcomes:
			received++
			if out.err != nil {
				partial = true
				log.Warn("search_source_failed",
					slog.String("source", string(out.source)),
					slog.String("error", out.err.Error()),
					slog.Int64("duration_ms", out.elapsed.Milliseconds()))
				continue
			}
			switch out.source {
			case domain.SourceDense:
				dense, denseOK = out.candidates, true
			case domain.SourceSparse:
				sparse, sparseOK = out.candidates, true
			}
		case <-searchCtx.Done():
			// Late branches are cancelled; use whatever arrived in time.
			partial = true
			log.Warn("search_timeout_partial_results",
				slog.Int("responded", received),
				slog.Int("expected", branches),
				slog.Int64("timeout_ms", cfg.SearchTimeout.Milliseconds()))
			break collect
		}
	}

	if !denseOK && !sparseOK {
		if received == branches {
			return nil, fmt.Errorf("%w: dense and sparse sources both failed", domain.ErrRetrieval)
		}
		// Timed out before anything arrived: degraded empty result rather
		// than a hard failure, since nothing actually errored.
		return &RetrievalResult{Results: []domain.FusedResult{}, Partial: true, RetrievalID: retrievalID}, nil
	}

	fused := retrieval.Fuse(dense, sparse, cfg.fusionConfig(), log)

	filtered := fused[:0]
	for _, fr := range fused {
		if fr.Score >= cfg.MinScore {
			filtered = append(filtered, fr)
		}
	}
	if len(filtered) > cfg.FinalTopK {
		filtered = filtered[:cfg.FinalTopK]
	}
	for i := range filtered {
		filtered[i].Rank = i + 1
	}

	log.Info("hybrid_retrieval_completed",
		slog.Int("dense_count", len(dense)),
		slog.Int("sparse_count", len(sparse)),
		slog.Int("result_count", len(filtered)),
		slog.Bool("partial", partial),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return &RetrievalResult{
		Results:     filtered,
		Partial:     partial,
		RetrievalID: retrievalID,
	}, nil
}
