// Package governor bounds the resources a conversation may consume: a
// per-user sliding-window rate limit on turns and a global concurrency
// budget on expensive search operations. The two are independent — the
// rate limit protects against one user flooding the system with turns,
// the token pool protects the shared search budget regardless of who asks.
package governor

import (
	"sync"
	"time"
)

// Verdict is the result of an admission check.
type Verdict struct {
	Allowed    bool
	RetryAfter time.Duration // seconds until the oldest entry leaves the window; zero when allowed
}

// RateLimiter is a per-user sliding-window rate limiter. Admission never
// blocks; entries older than the window are pruned before every check.
type RateLimiter struct {
	mu          sync.Mutex
	windows     map[string][]time.Time
	maxRequests int
	window      time.Duration
	now         func() time.Time // for testing
}

// NewRateLimiter creates a limiter allowing maxRequests turns per user per window.
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	if maxRequests < 1 {
		maxRequests = 1
	}
	return &RateLimiter{
		windows:     make(map[string][]time.Time),
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
}

// Admit checks whether the user may start another turn. If allowed, the turn
// is recorded immediately; otherwise the verdict carries how long the user
// must wait for the oldest recorded turn to expire from the window.
func (rl *RateLimiter) Admit(userID string) Verdict {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	kept := rl.windows[userID][:0]
	for _, ts := range rl.windows[userID] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	rl.windows[userID] = kept

	if len(kept) >= rl.maxRequests {
		return Verdict{RetryAfter: kept[0].Sub(cutoff)}
	}

	rl.windows[userID] = append(kept, now)
	return Verdict{Allowed: true}
}

// WindowLen returns the number of recorded turns for the user after pruning
// (for metrics and testing).
func (rl *RateLimiter) WindowLen(userID string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window)
	n := 0
	for _, ts := range rl.windows[userID] {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}

// StartCleanup spawns a goroutine that removes fully-expired user windows
// every interval, so idle users do not accumulate memory. Returns a cancel
// function that stops the goroutine.
func (rl *RateLimiter) StartCleanup(interval time.Duration) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				rl.cleanup()
			}
		}
	}()
	return func() { close(done) }
}

// cleanup drops windows whose every entry has expired.
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-rl.window)
	for userID, window := range rl.windows {
		stale := true
		for _, ts := range window {
			if ts.After(cutoff) {
				stale = false
				break
			}
		}
		if stale {
			delete(rl.windows, userID)
		}
	}
}
