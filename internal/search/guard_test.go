package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rulescribe/rulescribe/internal/config"
	"github.com/rulescribe/rulescribe/internal/domain"
	"github.com/rulescribe/rulescribe/internal/governor"
)

type fakeTools struct {
	mu      sync.Mutex
	calls   int
	result  string
	err     error
	blockOn chan struct{} // when set, calls block until closed or ctx done
}

func (f *fakeTools) run(ctx context.Context) (string, error) {
	f.mu.Lock()
	f.calls++
	block := f.blockOn
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.result, f.err
}

func (f *fakeTools) LookupFilenames(ctx context.Context, _ string) (string, error) {
	return f.run(ctx)
}

func (f *fakeTools) SearchInDocument(ctx context.Context, _, _ string) (string, error) {
	return f.run(ctx)
}

func (f *fakeTools) ExtractDocument(ctx context.Context, _ string) (string, error) {
	return f.run(ctx)
}

func (f *fakeTools) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type mapCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{m: make(map[string][]byte)} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
	return nil
}

func testCfg() config.Search {
	cfg := config.Defaults().Search
	cfg.AcquireTimeout = 100 * time.Millisecond
	cfg.CallTimeout = 100 * time.Millisecond
	return cfg
}

func TestGuardPassesThroughResult(t *testing.T) {
	tools := &fakeTools{result: "p.12: a unit may move twice"}
	g := NewGuard(tools, governor.NewTokenPool(2), nil, testCfg())

	out, err := g.SearchInDocument(context.Background(), "wh40k.pdf", "movement")
	if err != nil {
		t.Fatal(err)
	}
	if out != "p.12: a unit may move twice" {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestGuardCapsOutput(t *testing.T) {
	cfg := testCfg()
	cfg.MaxSearchBytes = 10
	tools := &fakeTools{result: strings.Repeat("x", 50)}
	g := NewGuard(tools, governor.NewTokenPool(2), nil, cfg)

	out, err := g.SearchInDocument(context.Background(), "doc.pdf", "q")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, strings.Repeat("x", 10)) || !strings.HasSuffix(out, "(truncated)") {
		t.Errorf("expected capped output, got %q", out)
	}
}

func TestGuardReportsToolFailureIntact(t *testing.T) {
	tools := &fakeTools{err: errors.New("file not found: 'zork.pdf'")}
	g := NewGuard(tools, governor.NewTokenPool(2), nil, testCfg())

	_, err := g.ExtractDocument(context.Background(), "zork.pdf")
	if !errors.Is(err, domain.ErrSearchFailed) {
		t.Fatalf("expected ErrSearchFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "file not found: 'zork.pdf'") {
		t.Errorf("failure string must survive intact, got %q", err.Error())
	}
}

func TestGuardTimesOutSlowCalls(t *testing.T) {
	tools := &fakeTools{blockOn: make(chan struct{})}
	g := NewGuard(tools, governor.NewTokenPool(2), nil, testCfg())

	_, err := g.SearchInDocument(context.Background(), "doc.pdf", "q")
	if !errors.Is(err, domain.ErrSearchTimeout) {
		t.Fatalf("expected ErrSearchTimeout, got %v", err)
	}
}

func TestGuardAcquireTimeoutWhenBudgetExhausted(t *testing.T) {
	pool := governor.NewTokenPool(1)
	release, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	tools := &fakeTools{result: "ok"}
	g := NewGuard(tools, pool, nil, testCfg())

	_, err = g.LookupFilenames(context.Background(), "chess")
	if !errors.Is(err, domain.ErrSearchTimeout) {
		t.Fatalf("expected ErrSearchTimeout, got %v", err)
	}
	if tools.callCount() != 0 {
		t.Error("tool must not run without a token")
	}
}

func TestGuardReleasesTokenOnEveryPath(t *testing.T) {
	pool := governor.NewTokenPool(1)
	tools := &fakeTools{err: errors.New("boom")}
	g := NewGuard(tools, pool, nil, testCfg())

	_, _ = g.SearchInDocument(context.Background(), "doc.pdf", "q")

	if n := pool.Outstanding(); n != 0 {
		t.Errorf("token leaked on failure path, outstanding %d", n)
	}
}

func TestGuardServesRepeatedCallsFromCache(t *testing.T) {
	tools := &fakeTools{result: "cached answer"}
	g := NewGuard(tools, governor.NewTokenPool(2), newMapCache(), testCfg())
	ctx := context.Background()

	for range 3 {
		out, err := g.SearchInDocument(ctx, "doc.pdf", "scoring")
		if err != nil {
			t.Fatal(err)
		}
		if out != "cached answer" {
			t.Errorf("unexpected output: %q", out)
		}
	}

	if tools.callCount() != 1 {
		t.Errorf("expected 1 underlying call, got %d", tools.callCount())
	}
}
