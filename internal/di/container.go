package di

import (
	"fmt"
	"log/slog"
	"time"

	"retrieval-orchestrator/internal/adapter/httpapi"
	"retrieval-orchestrator/internal/adapter/ollama"
	"retrieval-orchestrator/internal/adapter/reranker"
	"retrieval-orchestrator/internal/adapter/sparse"
	"retrieval-orchestrator/internal/domain"
	"retrieval-orchestrator/internal/infra/config"
	"retrieval-orchestrator/internal/infra/embedcache"
	"retrieval-orchestrator/internal/infra/httpclient"
	"retrieval-orchestrator/internal/usecase"
	"retrieval-orchestrator/internal/usecase/retrieval"
	"retrieval-orchestrator/internal/worker"
)

// ApplicationComponents holds all wired dependencies for the application.
type ApplicationComponents struct {
	EmbeddingCache *embedcache.Cache
	ComputePool    *worker.ComputePool

	HybridRetriever  *usecase.HybridRetriever
	AgenticRetriever *usecase.AgenticRetriever
	Prefetcher       *usecase.Prefetcher

	Handler *httpapi.Handler
}

// NewApplicationComponents wires all dependencies from config. The dense
// search backend is selected by the caller so connection lifecycle stays in
// main.
func NewApplicationComponents(cfg *config.Config, dense domain.DenseSearchPort, log *slog.Logger) (*ApplicationComponents, error) {
	// Shared HTTP clients with connection pooling
	embedderHTTP := httpclient.NewPooledClient(time.Duration(cfg.Embedder.Timeout) * time.Second)
	sparseHTTP := httpclient.NewPooledClient(time.Duration(cfg.Sparse.Timeout) * time.Second)
	rerankHTTP := httpclient.NewPooledClient(time.Duration(cfg.Rerank.Timeout) * time.Second)
	llmHTTP := httpclient.NewPooledClient(time.Duration(cfg.LLM.Timeout) * time.Second)

	// Bound CPU-heavy embed and rerank work to one pool sized to the host.
	computePool := worker.NewComputePool(0, log)

	embedder := ollama.NewEmbedder(cfg.Embedder.URL, cfg.Embedder.Model, log, embedderHTTP)
	cache, err := embedcache.New(cfg.Cache.Capacity, embedder, computePool, log)
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}

	sparseClient := sparse.NewClient(cfg.Sparse.URL, time.Duration(cfg.Sparse.Timeout)*time.Second, sparseHTTP)

	hybridCfg := usecase.HybridConfig{
		DenseTopK:     cfg.Retrieval.DenseTopK,
		SparseTopK:    cfg.Retrieval.SparseTopK,
		FinalTopK:     cfg.Retrieval.FinalTopK,
		DenseWeight:   cfg.Retrieval.DenseWeight,
		SparseWeight:  cfg.Retrieval.SparseWeight,
		RRFK:          cfg.Retrieval.RRFK,
		MinScore:      cfg.Retrieval.MinScore,
		SearchTimeout: time.Duration(cfg.Retrieval.SearchTimeoutMS) * time.Millisecond,
	}
	if err := hybridCfg.Validate(); err != nil {
		return nil, fmt.Errorf("hybrid config: %w", err)
	}

	hybridRetriever := usecase.NewHybridRetriever(cache, dense, sparseClient, log)

	rerankCfg := retrieval.RerankConfig{
		PrefilterThreshold:  cfg.Rerank.PrefilterThreshold,
		MaxFullModelDocs:    cfg.Rerank.MaxFullModelDocs,
		EarlyExitThreshold:  cfg.Rerank.EarlyExitThreshold,
		EarlyExitMinResults: cfg.Rerank.EarlyExitMinResults,
	}
	scorer := reranker.NewClient(
		cfg.Rerank.URL,
		cfg.Rerank.Model,
		time.Duration(cfg.Rerank.Timeout)*time.Second,
		log,
		rerankHTTP,
	)
	cascaded := retrieval.NewCascadedReranker(scorer, computePool, log)

	generator := ollama.NewGenerator(cfg.LLM.URL, cfg.LLM.Model, llmHTTP)
	var rewriter domain.QueryRewriter
	if cfg.Agentic.QueryRewritingEnabled {
		rewriter = ollama.NewRewriterClient(generator, log)
	}
	var judge domain.SufficiencyJudge
	if cfg.LLM.JudgeEnabled {
		judge = ollama.NewJudgeClient(generator, log)
		log.Info("sufficiency_judge_enabled",
			slog.String("url", cfg.LLM.URL),
			slog.String("model", cfg.LLM.Model))
	}

	budgets := usecase.DefaultStageBudgets()
	if cfg.StageBudgetsFile != "" {
		budgets, err = usecase.LoadStageBudgets(cfg.StageBudgetsFile)
		if err != nil {
			return nil, fmt.Errorf("stage budgets: %w", err)
		}
		log.Info("stage_budgets_loaded", slog.String("path", cfg.StageBudgetsFile))
	}
	budget := usecase.NewBudgetManager(budgets, nil)

	agenticRetriever := usecase.NewAgenticRetriever(
		hybridRetriever, cascaded, rewriter, judge, budget,
		hybridCfg, rerankCfg, log,
	)

	prefetchCfg := usecase.DefaultPrefetchConfig()
	prefetchCfg.ConfidenceThreshold = cfg.Prefetch.ConfidenceThreshold
	prefetchCfg.MinWords = cfg.Prefetch.MinWords
	if err := prefetchCfg.Validate(); err != nil {
		return nil, fmt.Errorf("prefetch config: %w", err)
	}
	prefetcher := usecase.NewPrefetcher(agenticRetriever, prefetchCfg, log)

	agenticCfg := usecase.AgenticConfig{
		MaxIterations:         cfg.Agentic.MaxIterations,
		SufficiencyThreshold:  cfg.Agentic.SufficiencyThreshold,
		QueryRewritingEnabled: cfg.Agentic.QueryRewritingEnabled,
	}
	if err := agenticCfg.Validate(); err != nil {
		return nil, fmt.Errorf("agentic config: %w", err)
	}

	handler := httpapi.NewHandler(agenticRetriever, prefetcher, agenticCfg)

	return &ApplicationComponents{
		EmbeddingCache:   cache,
		ComputePool:      computePool,
		HybridRetriever:  hybridRetriever,
		AgenticRetriever: agenticRetriever,
		Prefetcher:       prefetcher,
		Handler:          handler,
	}, nil
}
