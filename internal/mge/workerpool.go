package mge

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// WorkerPool bounds how many blocking calls into the engine (state
// transitions, subprocess starts) run concurrently, so a burst of
// attach/detach calls across many sessions can't spawn an unbounded
// number of goroutines blocked on native work — each is instead
// dispatched to a dedicated blocking-task pool so it doesn't stall the
// cooperative scheduler. Generalizes the lineage's bounded worker pool for
// hardware-facing blocking calls to the graph engine instead.
type WorkerPool struct {
	sem chan struct{}
}

// NewWorkerPool creates a pool admitting at most maxWorkers concurrent
// Submit calls.
func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = 8
	}
	return &WorkerPool{sem: make(chan struct{}, maxWorkers)}
}

// Submit runs fn on a pool slot, blocking until one is free or ctx is
// done. The call itself is not canceled by ctx once started — request
// cancellation must never cancel an in-flight session mutation — ctx
// only bounds the wait for a free slot.
func (p *WorkerPool) Submit(ctx context.Context, fn func() error) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.sem }()
	return fn()
}

// SubmitAll runs every fn concurrently, each through the pool, and
// returns the first error encountered (if any), via errgroup.
func (p *WorkerPool) SubmitAll(ctx context.Context, fns ...func() error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, fn := range fns {
		fn := fn
		g.Go(func() error { return p.Submit(gctx, fn) })
	}
	return g.Wait()
}

var (
	defaultPool     *WorkerPool
	defaultPoolOnce sync.Once
)

// DefaultPool returns the process-global worker pool, initialized once on
// first use (the engine itself is process-global).
func DefaultPool() *WorkerPool {
	defaultPoolOnce.Do(func() {
		defaultPool = NewWorkerPool(16)
	})
	return defaultPool
}
