package assistant

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// pool bounds how many blocking calls (capture, recognition, speech, OS
// commands) run at once.
type pool struct {
	sem *semaphore.Weighted
}

func newPool(size int) *pool {
	return &pool{sem: semaphore.NewWeighted(int64(max(size, 1)))}
}

// offload runs fn on a worker and waits for it. If ctx ends first the call
// keeps its worker until it returns, and its result is dropped.
func offload[T any](ctx context.Context, p *pool, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)

	go func() {
		defer p.sem.Release(1)
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
