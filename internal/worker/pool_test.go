package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ai-reconciliation-backend/internal/worker"
)

type recordingProcessor struct {
	mu        sync.Mutex
	processed []uuid.UUID
	err       error
	block     chan struct{}
}

func (p *recordingProcessor) Process(_ context.Context, jobID uuid.UUID) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	p.processed = append(p.processed, jobID)
	p.mu.Unlock()
	return p.err
}

func (p *recordingProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.processed)
}

func TestPool_ProcessesEnqueuedJobs(t *testing.T) {
	proc := &recordingProcessor{}
	pool := worker.NewPool(2, proc, zap.NewNop())
	pool.Start(context.Background())

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		require.NoError(t, pool.Enqueue(id))
	}
	pool.Stop()

	assert.Equal(t, len(ids), proc.count())
	proc.mu.Lock()
	defer proc.mu.Unlock()
	assert.ElementsMatch(t, ids, proc.processed)
}

func TestPool_ProcessorErrorDoesNotStopWorkers(t *testing.T) {
	proc := &recordingProcessor{err: errors.New("job failed")}
	pool := worker.NewPool(1, proc, zap.NewNop())
	pool.Start(context.Background())

	require.NoError(t, pool.Enqueue(uuid.New()))
	require.NoError(t, pool.Enqueue(uuid.New()))
	pool.Stop()

	assert.Equal(t, 2, proc.count())
}

func TestPool_EnqueueAfterStop(t *testing.T) {
	pool := worker.NewPool(1, &recordingProcessor{}, zap.NewNop())
	pool.Start(context.Background())
	pool.Stop()

	assert.ErrorIs(t, pool.Enqueue(uuid.New()), worker.ErrStopped)
}

func TestPool_QueueFull(t *testing.T) {
	// Workers never started, so the buffer fills without draining.
	pool := worker.NewPool(1, &recordingProcessor{}, zap.NewNop())

	var err error
	for i := 0; i < 200; i++ {
		if err = pool.Enqueue(uuid.New()); err != nil {
			break
		}
	}
	assert.ErrorIs(t, err, worker.ErrQueueFull)
}

func TestPool_ContextCancelStopsWorkers(t *testing.T) {
	block := make(chan struct{})
	proc := &recordingProcessor{block: block}
	pool := worker.NewPool(1, proc, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	require.NoError(t, pool.Enqueue(uuid.New()))
	// Let the worker pick the job up, then release it and cancel.
	time.Sleep(20 * time.Millisecond)
	close(block)
	cancel()
	pool.Stop()

	assert.Equal(t, 1, proc.count())
}

func TestPool_ConcurrentEnqueueDuringStop(t *testing.T) {
	proc := &recordingProcessor{}
	pool := worker.NewPool(2, proc, zap.NewNop())
	pool.Start(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				err := pool.Enqueue(uuid.New())
				if err != nil && !errors.Is(err, worker.ErrStopped) && !errors.Is(err, worker.ErrQueueFull) {
					t.Errorf("unexpected enqueue error: %v", err)
				}
			}
		}()
	}
	pool.Stop()
	wg.Wait()
}

func TestPool_StartIdempotent(t *testing.T) {
	proc := &recordingProcessor{}
	pool := worker.NewPool(2, proc, zap.NewNop())
	pool.Start(context.Background())
	pool.Start(context.Background())

	require.NoError(t, pool.Enqueue(uuid.New()))
	pool.Stop()
	assert.Equal(t, 1, proc.count())
}
