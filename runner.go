package ankigen

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// NewLimitedRunner creates a runner with bounded concurrency. Every task gets
// its goroutine immediately and acquires the semaphore inside it, so Go never
// blocks the submitter; waiting tasks are serviced by channel order so none
// starves.
func NewLimitedRunner(ctx context.Context, maxConcurrency int) Runner {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	eg, ctx := errgroup.WithContext(ctx)
	return &errGroupRunner{
		ctx: ctx,
		eg:  eg,
		sem: make(chan struct{}, maxConcurrency),
	}
}

// errGroupRunner is the default Runner backed by errgroup.Group.
type errGroupRunner struct {
	ctx context.Context // derived ctx shared by all tasks
	eg  *errgroup.Group
	sem chan struct{} // concurrency gate
}

func (r *errGroupRunner) Go(fn func() error) {
	r.eg.Go(func() error {
		r.sem <- struct{}{}        // acquire
		defer func() { <-r.sem }() // release
		return fn()
	})
}

func (r *errGroupRunner) Wait() error { return r.eg.Wait() }

// runnerContext returns the derived context shared by a runner's tasks, or
// the fallback for custom runners.
func runnerContext(r Runner, fallback context.Context) context.Context {
	if d, ok := r.(*errGroupRunner); ok {
		return d.ctx
	}
	return fallback
}
