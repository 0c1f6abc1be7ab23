package governor

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// TokenPool limits concurrent search operations across all users using a
// weighted semaphore. Queuing is unfair-but-bounded; per-user fairness is
// not provided.
type TokenPool struct {
	sem         *semaphore.Weighted
	outstanding atomic.Int64
}

// NewTokenPool creates a pool allowing at most limit concurrent searches.
func NewTokenPool(limit int) *TokenPool {
	if limit < 1 {
		limit = 1
	}
	return &TokenPool{sem: semaphore.NewWeighted(int64(limit))}
}

// Acquire blocks until a token is available or ctx is done. On success it
// returns a release function that is safe to call more than once; only the
// first call returns the token. On failure nothing was acquired and there
// is nothing to release.
func (p *TokenPool) Acquire(ctx context.Context) (release func(), err error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	p.outstanding.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			p.outstanding.Add(-1)
			p.sem.Release(1)
		})
	}, nil
}

// Run acquires a token, runs fn, and releases the token on every exit path.
// Returns ctx.Err() if the context is cancelled while waiting.
func (p *TokenPool) Run(ctx context.Context, fn func() error) error {
	release, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// Outstanding returns the number of acquired, not yet released tokens
// (for metrics and testing).
func (p *TokenPool) Outstanding() int64 {
	return p.outstanding.Load()
}
