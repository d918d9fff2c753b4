// Package worker dispatches reconciliation jobs onto a fixed pool of
// workers. Jobs are independent and may run concurrently across workers;
// within a job all steps are sequential.
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrQueueFull is returned when the dispatch buffer is saturated.
var ErrQueueFull = errors.New("job queue is full")

// ErrStopped is returned when enqueueing after shutdown.
var ErrStopped = errors.New("worker pool is stopped")

// Processor runs one job end to end.
type Processor interface {
	Process(ctx context.Context, jobID uuid.UUID) error
}

type Pool struct {
	jobs      chan uuid.UUID
	processor Processor
	logger    *zap.Logger
	size      int

	mu      sync.Mutex
	wg      sync.WaitGroup
	started bool
	stopped bool
}

func NewPool(size int, processor Processor, logger *zap.Logger) *Pool {
	if size <= 0 {
		size = 2
	}
	return &Pool{
		jobs:      make(chan uuid.UUID, 64),
		processor: processor,
		logger:    logger,
		size:      size,
	}
}

// Start launches the workers. Workers drain the queue until Stop is called
// or the context is cancelled.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.work(ctx, i)
	}
	p.logger.Info("worker pool started", zap.Int("workers", p.size))
}

func (p *Pool) work(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case jobID, ok := <-p.jobs:
			if !ok {
				return
			}
			// Process reports its own failure states; a returned error here
			// means the job was marked FAILED or was not runnable. No retry.
			if err := p.processor.Process(ctx, jobID); err != nil {
				p.logger.Warn("job processing returned error",
					zap.Int("worker", id),
					zap.String("job_id", jobID.String()),
					zap.Error(err))
			}
		}
	}
}

// Enqueue hands a job id to the pool. Non-blocking; a saturated queue is
// surfaced to the caller instead of stalling the request path. The send
// happens under the lock Stop closes the channel under, so a concurrent
// Stop cannot close it between the stopped check and the send.
func (p *Pool) Enqueue(jobID uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.jobs <- jobID:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
