// Package search wraps the raw document search primitives with the
// safeguards the reasoning engine must not be trusted to apply itself:
// the global concurrency budget, per-call time-boxing, output size caps,
// and a cache for repeated identical calls.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/rulescribe/rulescribe/internal/config"
	"github.com/rulescribe/rulescribe/internal/domain"
	"github.com/rulescribe/rulescribe/internal/governor"
	"github.com/rulescribe/rulescribe/internal/port/cache"
	"github.com/rulescribe/rulescribe/internal/port/searchtool"
)

// Guard implements searchtool.Tools over an unguarded implementation.
type Guard struct {
	tools searchtool.Tools
	pool  *governor.TokenPool
	cache cache.Cache // optional
	cfg   config.Search
	calls metric.Int64Counter // optional
}

// NewGuard wraps tools with the pool's concurrency budget and the limits in
// cfg. c may be nil to disable result caching.
func NewGuard(tools searchtool.Tools, pool *governor.TokenPool, c cache.Cache, cfg config.Search) *Guard {
	return &Guard{tools: tools, pool: pool, cache: c, cfg: cfg}
}

// SetCallCounter attaches a counter incremented on every underlying tool
// call. Cache hits do not count.
func (g *Guard) SetCallCounter(c metric.Int64Counter) {
	g.calls = c
}

// LookupFilenames implements searchtool.Tools.
func (g *Guard) LookupFilenames(ctx context.Context, query string) (string, error) {
	key := "lookup\x00" + query
	return g.guarded(ctx, key, g.cfg.MaxSearchBytes, func(ctx context.Context) (string, error) {
		return g.tools.LookupFilenames(ctx, query)
	})
}

// SearchInDocument implements searchtool.Tools.
func (g *Guard) SearchInDocument(ctx context.Context, documentRef, keywords string) (string, error) {
	key := "search\x00" + documentRef + "\x00" + keywords
	return g.guarded(ctx, key, g.cfg.MaxSearchBytes, func(ctx context.Context) (string, error) {
		return g.tools.SearchInDocument(ctx, documentRef, keywords)
	})
}

// ExtractDocument implements searchtool.Tools.
func (g *Guard) ExtractDocument(ctx context.Context, documentRef string) (string, error) {
	key := "extract\x00" + documentRef
	return g.guarded(ctx, key, g.cfg.MaxExtractBytes, func(ctx context.Context) (string, error) {
		return g.tools.ExtractDocument(ctx, documentRef)
	})
}

// guarded runs fn under a search token with a call deadline, serving and
// filling the cache around it. Failure strings from the underlying tool are
// propagated upward intact; the engine decides how to fall back.
func (g *Guard) guarded(ctx context.Context, key string, maxBytes int, fn func(context.Context) (string, error)) (string, error) {
	if g.cache != nil {
		if data, ok, err := g.cache.Get(ctx, key); err == nil && ok {
			return string(data), nil
		}
	}

	acquireCtx, cancel := context.WithTimeout(ctx, g.cfg.AcquireTimeout)
	defer cancel()

	release, err := g.pool.Acquire(acquireCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: concurrency budget not acquired within %v", domain.ErrSearchTimeout, g.cfg.AcquireTimeout)
		}
		return "", err // parent context cancelled
	}
	defer release()

	callCtx, cancelCall := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancelCall()

	if g.calls != nil {
		g.calls.Add(ctx, 1)
	}
	out, err := fn(callCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: call exceeded %v", domain.ErrSearchTimeout, g.cfg.CallTimeout)
		}
		return "", fmt.Errorf("%w: %s", domain.ErrSearchFailed, err.Error())
	}

	out = capOutput(out, maxBytes)

	if g.cache != nil {
		if err := g.cache.Set(ctx, key, []byte(out), g.cfg.CacheTTL); err != nil {
			slog.Debug("search cache set failed", "error", err)
		}
	}

	return out, nil
}

// capOutput truncates s to maxBytes with a marker, so oversized tool output
// cannot blow up the reasoning engine's context.
func capOutput(s string, maxBytes int) string {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return s
	}
	return s[:maxBytes] + "\n...(truncated)"
}

// WarmupProbe exercises one cheap lookup to verify the tool backend responds
// within the configured deadline. Used at startup; failures are advisory.
func (g *Guard) WarmupProbe(ctx context.Context) error {
	start := time.Now()
	_, err := g.LookupFilenames(ctx, "")
	if err != nil {
		return err
	}
	slog.Debug("search warmup probe ok", "elapsed", time.Since(start))
	return nil
}
