package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/semaphore"
)

// ComputePool bounds concurrent CPU/accelerator-bound work (embedding and
// cross-encoder inference) so provider-bound calls cannot saturate the
// goroutines serving concurrent retrieval requests. Acquisition respects the
// caller's context, so a cancelled retrieval never queues new compute.
type ComputePool struct {
	sem    *semaphore.Weighted
	size   int64
	logger *slog.Logger
}

// NewComputePool creates a pool admitting at most size concurrent tasks.
// size <= 0 defaults to the CPU count.
func NewComputePool(size int64, logger *slog.Logger) *ComputePool {
	if size <= 0 {
		size = int64(runtime.NumCPU())
	}
	return &ComputePool{
		sem:    semaphore.NewWeighted(size),
		size:   size,
		logger: logger,
	}
}

// Size returns the pool's admission limit.
func (p *ComputePool) Size() int64 {
	return p.size
}

// Do runs fn once a slot is available. The wait is cancellable through ctx;
// a long wait is logged so saturation shows up in traces.
func (p *ComputePool) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	waitStart := time.Now()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("compute pool acquire for %s: %w", name, err)
	}
	defer p.sem.Release(1)

	if wait := time.Since(waitStart); wait > 10*time.Millisecond {
		p.logger.Warn("compute_pool_contended",
			slog.String("task", name),
			slog.Int64("wait_ms", wait.Milliseconds()))
	}

	return fn(ctx)
}
