// Package history defines the per-user durable turn log port (interface).
package history

import "context"

// Handle is an opaque snapshot of one user's turn history, passed through
// to the reasoning engine. Ordering within a handle follows the order the
// router wrote the turns, which the per-user dispatcher guarantees.
type Handle interface {
	UserID() string
	Turns() []Turn
}

// Turn is one recorded inbound-input / outbound-output pair.
type Turn struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// Log is the port interface for the per-user append-only turn log.
type Log interface {
	// Append records one completed turn for the user.
	Append(ctx context.Context, userID, turnInput, turnOutput string) error

	// Read returns an opaque handle over the user's history.
	Read(ctx context.Context, userID string) (Handle, error)
}
