package worker_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retrieval-orchestrator/internal/worker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestComputePool_RunsTask(t *testing.T) {
	pool := worker.NewComputePool(2, testLogger())

	ran := false
	err := pool.Do(context.Background(), "test", func(ctx context.Context) error {
		ran = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
}

func TestComputePool_PropagatesTaskError(t *testing.T) {
	pool := worker.NewComputePool(2, testLogger())

	wantErr := errors.New("inference failed")
	err := pool.Do(context.Background(), "test", func(ctx context.Context) error {
		return wantErr
	})

	assert.ErrorIs(t, err, wantErr)
}

func TestComputePool_BoundsConcurrency(t *testing.T) {
	pool := worker.NewComputePool(2, testLogger())

	var active, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.Do(context.Background(), "test", func(ctx context.Context) error {
				now := active.Add(1)
				for {
					p := peak.Load()
					if now <= p || peak.CompareAndSwap(p, now) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				active.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(2))
}

func TestComputePool_CancelledWhileWaiting(t *testing.T) {
	pool := worker.NewComputePool(1, testLogger())

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = pool.Do(context.Background(), "holder", func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pool.Do(ctx, "waiter", func(ctx context.Context) error {
		t.Error("task should not run after cancellation")
		return nil
	})
	close(release)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewComputePool_DefaultsToCPUCount(t *testing.T) {
	pool := worker.NewComputePool(0, testLogger())
	assert.Equal(t, int64(runtime.NumCPU()), pool.Size())

	pool = worker.NewComputePool(7, testLogger())
	assert.Equal(t, int64(7), pool.Size())
}
