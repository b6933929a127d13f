// Package embedcache memoizes text-to-vector lookups so repeated queries
// never pay for a second embedding call.
package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"retrieval-orchestrator/internal/domain"
	"retrieval-orchestrator/internal/worker"
)

// Cache is a fixed-capacity, strictly-LRU embedding cache shared by all
// concurrent retrieval calls. Reads count as uses for eviction. Lookups for
// the same uncached key are collapsed to a single in-flight provider call;
// the provider itself runs on the compute pool, never under any cache lock.
type Cache struct {
	entries  *lru.Cache[string, []float32]
	provider domain.EmbeddingProvider
	pool     *worker.ComputePool
	group    singleflight.Group
	logger   *slog.Logger
}

// New creates a Cache with the given capacity.
func New(capacity int, provider domain.EmbeddingProvider, pool *worker.ComputePool, logger *slog.Logger) (*Cache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", capacity)
	}
	entries, err := lru.New[string, []float32](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru: %w", err)
	}
	return &Cache{
		entries:  entries,
		provider: provider,
		pool:     pool,
		logger:   logger,
	}, nil
}

// GetOrCompute returns the embedding for text, invoking the provider only on
// a miss. Concurrent callers for the same key share one provider call; the
// winning caller's context governs the shared computation, so a cancelled
// loser still receives the vector if the winner completes.
//
// The cache never fabricates a vector: provider failures surface as
// domain.ErrEmbedding and nothing is inserted.
func (c *Cache) GetOrCompute(ctx context.Context, text string) ([]float32, error) {
	key := Fingerprint(text)

	if vec, ok := c.entries.Get(key); ok {
		c.logger.Debug("embedding_cache_hit", slog.String("fingerprint", key[:12]))
		return vec, nil
	}

	result, err, shared := c.group.Do(key, func() (any, error) {
		// A racing caller may have inserted while we queued.
		if vec, ok := c.entries.Get(key); ok {
			return vec, nil
		}

		var vec []float32
		poolErr := c.pool.Do(ctx, "embed", func(ctx context.Context) error {
			var embedErr error
			vec, embedErr = c.provider.Embed(ctx, text)
			return embedErr
		})
		if poolErr != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrEmbedding, poolErr)
		}
		if len(vec) == 0 {
			return nil, fmt.Errorf("%w: provider returned empty vector", domain.ErrEmbedding)
		}

		c.entries.Add(key, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("embedding_cache_miss",
		slog.String("fingerprint", key[:12]),
		slog.Bool("shared", shared),
		slog.String("model", c.provider.ModelName()))
	return result.([]float32), nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Fingerprint hashes normalized query text into a stable cache key.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(domain.NormalizeQueryText(text)))
	return hex.EncodeToString(sum[:])
}
