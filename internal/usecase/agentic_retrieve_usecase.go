package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"retrieval-orchestrator/internal/domain"
	"retrieval-orchestrator/internal/infra/logger"
	"retrieval-orchestrator/internal/usecase/retrieval"
)

// ConversationContext carries the dialogue state relevant to retrieval.
type ConversationContext struct {
	Stage   domain.ConversationStage
	History []string
}

func (c ConversationContext) format() string {
	return strings.Join(c.History, "\n")
}

// AgenticRetriever wraps the hybrid retriever and reranking cascade in an
// iterative loop: retrieve, judge sufficiency, rewrite, re-retrieve, bounded
// by a hard iteration cap.
//
// Sufficiency: when a judge is configured it is authoritative; the average
// relevance of the top three reranked results is the fallback heuristic.
type AgenticRetriever struct {
	retriever *HybridRetriever
	reranker  *retrieval.CascadedReranker
	rewriter  domain.QueryRewriter
	judge     domain.SufficiencyJudge
	budget    *BudgetManager
	hybridCfg HybridConfig
	rerankCfg retrieval.RerankConfig
	logger    *logger.ContextLogger
}

// NewAgenticRetriever wires the agentic loop. rewriter and judge may be nil;
// without a rewriter the loop cannot iterate, without a judge it falls back
// to the relevance heuristic.
func NewAgenticRetriever(
	retriever *HybridRetriever,
	reranker *retrieval.CascadedReranker,
	rewriter domain.QueryRewriter,
	judge domain.SufficiencyJudge,
	budget *BudgetManager,
	hybridCfg HybridConfig,
	rerankCfg retrieval.RerankConfig,
	log *slog.Logger,
) *AgenticRetriever {
	return &AgenticRetriever{
		retriever: retriever,
		reranker:  reranker,
		rewriter:  rewriter,
		judge:     judge,
		budget:    budget,
		hybridCfg: hybridCfg,
		rerankCfg: rerankCfg,
		logger:    logger.NewContextLoggerFrom(log, "retrieval-orchestrator"),
	}
}

// roundResult is one completed retrieve+rerank round.
type roundResult struct {
	documents []domain.Document
	partial   bool
}

// Retrieve runs a single retrieve+rerank round and applies the stage budget.
// This is the non-agentic operation exposed to the agent.
func (a *AgenticRetriever) Retrieve(ctx context.Context, rawQuery string, stage domain.ConversationStage) ([]domain.Document, bool, error) {
	round, err := a.runRound(ctx, domain.NewQuery(rawQuery))
	if err != nil {
		return nil, false, err
	}
	selected := a.budget.Select(round.documents, a.budget.BudgetFor(stage))
	return selected, round.partial, nil
}

// RetrieveAgentic runs the bounded retrieval loop. It performs at most
// cfg.MaxIterations retrieval rounds; the cap is enforced structurally by
// the loop bound. Rewriter or judge failures terminate the loop with the
// best results obtained so far rather than propagating: evidence already
// retrieved is still useful to the agent.
func (a *AgenticRetriever) RetrieveAgentic(ctx context.Context, rawQuery string, conv ConversationContext, cfg AgenticConfig) (*domain.AgenticSearchResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agentic config: %w", err)
	}

	start := time.Now()
	log := a.logger.WithContext(ctx)
	query := domain.NewQuery(rawQuery)
	rewritten := false

	var last roundResult

	for iteration := 1; iteration <= cfg.MaxIterations; iteration++ {
		round, err := a.runRound(ctx, query)
		if err != nil {
			// A fully failed round after a successful one keeps the earlier
			// evidence; a first-round failure has nothing to fall back on.
			if iteration == 1 {
				return nil, err
			}
			log.Warn("agentic_round_failed_keeping_previous",
				slog.Int("iteration", iteration),
				slog.String("error", err.Error()))
			return a.finish(log, last, iteration-1, rewritten, domain.TerminalMaxIterations, conv, start), nil
		}
		last = round

		sufficient, coverage, missing := a.assess(ctx, log, query.Text, round.documents, cfg.SufficiencyThreshold)
		log.Info("sufficiency_assessed",
			slog.Int("iteration", iteration),
			slog.Bool("sufficient", sufficient),
			slog.Float64("coverage", coverage),
			slog.Int("document_count", len(round.documents)))

		if sufficient {
			return a.finish(log, round, iteration, rewritten, domain.TerminalSufficient, conv, start), nil
		}
		if iteration == cfg.MaxIterations {
			break
		}
		if !cfg.QueryRewritingEnabled || a.rewriter == nil {
			return a.finish(log, round, iteration, rewritten, domain.TerminalMaxIterations, conv, start), nil
		}

		next, err := a.rewriter.Rewrite(ctx, query.Text, conv.format(), missing)
		if err != nil {
			log.Warn("query_rewrite_failed",
				slog.Int("iteration", iteration),
				slog.String("error", fmt.Errorf("%w: %v", domain.ErrRewrite, err).Error()))
			return a.finish(log, round, iteration, rewritten, domain.TerminalMaxIterations, conv, start), nil
		}
		nextQuery := domain.NewQuery(next)
		if nextQuery.Text == "" || nextQuery.Text == query.Text {
			// An ineffective rewrite would loop on an unchanged query.
			log.Info("rewrite_ineffective_terminating",
				slog.Int("iteration", iteration))
			return a.finish(log, round, iteration, rewritten, domain.TerminalMaxIterations, conv, start), nil
		}

		log.Info("query_rewritten",
			slog.Int("iteration", iteration),
			slog.String("from", query.Text),
			slog.String("to", nextQuery.Text))
		query = nextQuery
		rewritten = true
	}

	return a.finish(log, last, cfg.MaxIterations, rewritten, domain.TerminalMaxIterations, conv, start), nil
}

func (a *AgenticRetriever) runRound(ctx context.Context, query domain.Query) (roundResult, error) {
	result, err := a.retriever.Retrieve(ctx, query, a.hybridCfg)
	if err != nil {
		return roundResult{}, err
	}

	reranked := a.reranker.Rerank(ctx, query.Text, result.Results, a.rerankCfg)

	documents := make([]domain.Document, 0, len(reranked))
	for _, rr := range reranked {
		documents = append(documents, domain.Document{
			ID:    rr.DocID,
			Text:  rr.Text,
			Score: rr.Score,
		})
	}
	return roundResult{documents: documents, partial: result.Partial}, nil
}

// assess produces the sufficiency verdict for one round. The configured
// judge is authoritative: its boolean verdict decides, and its coverage score
// is carried for logging. Without a judge (or when it fails, which falls back
// rather than aborting the round) the heuristic compares the average top-3
// relevance against the threshold.
func (a *AgenticRetriever) assess(ctx context.Context, log *slog.Logger, query string, documents []domain.Document, threshold float64) (bool, float64, string) {
	if a.judge != nil {
		top := documents
		if len(top) > 3 {
			top = top[:3]
		}
		assessment, err := a.judge.Assess(ctx, query, top)
		if err == nil {
			return assessment.Sufficient, assessment.Coverage, assessment.MissingInfo
		}
		log.Warn("sufficiency_judge_failed_using_heuristic",
			slog.String("error", fmt.Errorf("%w: %v", domain.ErrJudge, err).Error()))
	}
	coverage := heuristicCoverage(documents)
	return coverage >= threshold, coverage, ""
}

// heuristicCoverage averages the relevance of the top three documents,
// clamping each score into [0,1] (failed-scoring sentinels clamp to zero).
func heuristicCoverage(documents []domain.Document) float64 {
	n := len(documents)
	if n == 0 {
		return 0
	}
	if n > 3 {
		n = 3
	}
	sum := 0.0
	for _, doc := range documents[:n] {
		s := doc.Score
		if s < 0 {
			s = 0
		}
		if s > 1 {
			s = 1
		}
		sum += s
	}
	return sum / float64(n)
}

func (a *AgenticRetriever) finish(
	log *slog.Logger,
	round roundResult,
	iterations int,
	rewritten bool,
	reason domain.TerminalReason,
	conv ConversationContext,
	start time.Time,
) *domain.AgenticSearchResult {
	selected := a.budget.Select(round.documents, a.budget.BudgetFor(conv.Stage))

	log.Info("agentic_retrieval_completed",
		slog.Int("iterations", iterations),
		slog.Bool("rewritten", rewritten),
		slog.String("terminal_reason", string(reason)),
		slog.Int("document_count", len(selected)),
		slog.Bool("partial", round.partial),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return &domain.AgenticSearchResult{
		Documents:  selected,
		Iterations: iterations,
		Rewritten:  rewritten,
		Reason:     reason,
		Partial:    round.partial,
	}
}
