// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrMalformedDecision indicates the reasoning engine returned a structurally
// invalid decision. The turn is resolved without mutating conversation state.
var ErrMalformedDecision = errors.New("malformed decision")

// ErrEngineUnavailable indicates the reasoning engine could not be reached
// or timed out. Recoverable; the user is told to retry.
var ErrEngineUnavailable = errors.New("reasoning engine unavailable")

// ErrSearchTimeout indicates a search tool call exceeded its deadline or the
// concurrency budget could not be acquired in time.
var ErrSearchTimeout = errors.New("search timed out")

// ErrSearchFailed indicates a search tool call failed. The failure string is
// propagated upward intact for the engine to fall back on.
var ErrSearchFailed = errors.New("search tool failed")
