package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"retrieval-orchestrator/internal/domain"
)

// PrefetchConfig gates speculative retrieval on partial transcripts.
type PrefetchConfig struct {
	// ConfidenceThreshold is the minimum transcription confidence.
	ConfidenceThreshold float64
	// MinWords skips prefetch for very short partials.
	MinWords int
	// RefreshTTL suppresses a new prefetch while a fresh entry covers the
	// partial.
	RefreshTTL time.Duration
	// ReuseTTL bounds how old a cached entry may be when served.
	ReuseTTL time.Duration
	// RatePerSecond and Burst bound prefetch frequency across the session.
	RatePerSecond float64
	Burst         int
}

// DefaultPrefetchConfig returns the production defaults.
func DefaultPrefetchConfig() PrefetchConfig {
	return PrefetchConfig{
		ConfidenceThreshold: 0.6,
		MinWords:            2,
		RefreshTTL:          2 * time.Second,
		ReuseTTL:            10 * time.Second,
		RatePerSecond:       2,
		Burst:               2,
	}
}

// Validate checks the configuration values.
func (c PrefetchConfig) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidenceThreshold must be in [0,1], got %f", c.ConfidenceThreshold)
	}
	if c.MinWords < 1 {
		return fmt.Errorf("minWords must be at least 1, got %d", c.MinWords)
	}
	if c.RefreshTTL <= 0 || c.ReuseTTL <= 0 {
		return fmt.Errorf("prefetch TTLs must be positive")
	}
	if c.RatePerSecond <= 0 || c.Burst < 1 {
		return fmt.Errorf("prefetch rate must be positive")
	}
	return nil
}

type prefetchEntry struct {
	query     string
	documents []domain.Document
	at        time.Time
}

// Prefetcher runs speculative hybrid retrieval on partial transcripts so
// results are warm by the time the utterance completes. Bursty partials are
// rate-limited so speech-rate transcription updates cannot stampede the
// search backends.
type Prefetcher struct {
	retriever *AgenticRetriever
	cfg       PrefetchConfig
	limiter   *rate.Limiter
	logger    *slog.Logger

	mu    sync.RWMutex
	cache *prefetchEntry
}

// NewPrefetcher creates a Prefetcher over the retrieval pipeline.
func NewPrefetcher(retriever *AgenticRetriever, cfg PrefetchConfig, logger *slog.Logger) *Prefetcher {
	return &Prefetcher{
		retriever: retriever,
		cfg:       cfg,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		logger:    logger,
	}
}

// Prefetch speculatively retrieves for a partial transcript. It reports
// whether a prefetch actually ran; low confidence, short partials, a fresh
// covering cache entry, or rate limiting all skip the work.
func (p *Prefetcher) Prefetch(ctx context.Context, partial string, confidence float64, stage domain.ConversationStage) (bool, error) {
	partial = domain.NormalizeQueryText(partial)
	if confidence < p.cfg.ConfidenceThreshold {
		return false, nil
	}
	if len(strings.Fields(partial)) < p.cfg.MinWords {
		return false, nil
	}

	p.mu.RLock()
	entry := p.cache
	p.mu.RUnlock()
	if entry != nil && time.Since(entry.at) < p.cfg.RefreshTTL && strings.Contains(partial, entry.query) {
		return false, nil
	}

	if !p.limiter.Allow() {
		p.logger.Debug("prefetch_rate_limited", slog.String("partial", partial))
		return false, nil
	}

	documents, _, err := p.retriever.Retrieve(ctx, partial, stage)
	if err != nil {
		p.logger.Warn("prefetch_failed",
			slog.String("partial", partial),
			slog.String("error", err.Error()))
		return false, err
	}
	if len(documents) == 0 {
		return false, nil
	}

	p.mu.Lock()
	p.cache = &prefetchEntry{query: partial, documents: documents, at: time.Now()}
	p.mu.Unlock()

	p.logger.Debug("prefetch_completed",
		slog.String("partial", partial),
		slog.Int("document_count", len(documents)))
	return true, nil
}

// PrefetchBackground fires Prefetch without waiting for results.
func (p *Prefetcher) PrefetchBackground(partial string, confidence float64, stage domain.ConversationStage) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = p.Prefetch(ctx, partial, confidence, stage)
	}()
}

// CachedFor returns prefetched documents when the cached query and the final
// query contain one another and the entry is still fresh.
func (p *Prefetcher) CachedFor(query string) ([]domain.Document, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.cache == nil || time.Since(p.cache.at) > p.cfg.ReuseTTL {
		return nil, false
	}
	q := strings.ToLower(domain.NormalizeQueryText(query))
	cached := strings.ToLower(p.cache.query)
	if strings.Contains(q, cached) || strings.Contains(cached, q) {
		return p.cache.documents, true
	}
	return nil, false
}

// Clear drops the prefetch cache.
func (p *Prefetcher) Clear() {
	p.mu.Lock()
	p.cache = nil
	p.mu.Unlock()
}
