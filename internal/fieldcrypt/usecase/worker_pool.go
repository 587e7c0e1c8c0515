package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/semaphore"
)

// ErrWorkerPoolClosed is returned by Submit after Close.
var ErrWorkerPoolClosed = errors.New("worker pool closed")

const workerPoolReleaseTimeout = 5 * time.Second

// WorkerPool runs crypto calls on a bounded set of goroutines.
type WorkerPool struct {
	pool  *ants.Pool
	slots *semaphore.Weighted
}

// NewWorkerPool creates a pool running at most size calls at once.
func NewWorkerPool(size int) (*WorkerPool, error) {
	if size < 1 {
		size = 1
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	return &WorkerPool{pool: pool, slots: semaphore.NewWeighted(int64(size))}, nil
}

// Submit runs fn on the pool and returns its error. The context only bounds
// the wait for a free worker: once fn is dispatched, Submit returns when fn
// does.
func (p *WorkerPool) Submit(ctx context.Context, fn func() error) error {
	if p.pool.IsClosed() {
		return ErrWorkerPoolClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return err
	}

	result := make(chan error, 1)
	err := p.pool.Submit(func() {
		defer p.slots.Release(1)
		result <- fn()
	})
	if err != nil {
		p.slots.Release(1)
		if errors.Is(err, ants.ErrPoolClosed) {
			return ErrWorkerPoolClosed
		}
		return err
	}

	return <-result
}

// Running reports how many calls are in flight.
func (p *WorkerPool) Running() int {
	return p.pool.Running()
}

// Close rejects new work and waits for in-flight calls to finish.
func (p *WorkerPool) Close() error {
	if p.pool.IsClosed() {
		return nil
	}
	if err := p.pool.ReleaseTimeout(workerPoolReleaseTimeout); err != nil {
		return fmt.Errorf("failed to release worker pool: %w", err)
	}
	return nil
}
