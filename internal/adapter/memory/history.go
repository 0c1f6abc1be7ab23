// Package memory implements the history port in process memory, for tests
// and for running without PostgreSQL.
package memory

import (
	"context"
	"sync"

	"github.com/rulescribe/rulescribe/internal/port/history"
)

// HistoryLog is an in-memory per-user append-only turn log.
type HistoryLog struct {
	mu    sync.Mutex
	turns map[string][]history.Turn
}

// NewHistoryLog creates an empty log.
func NewHistoryLog() *HistoryLog {
	return &HistoryLog{turns: make(map[string][]history.Turn)}
}

// Append implements history.Log.
func (l *HistoryLog) Append(_ context.Context, userID, turnInput, turnOutput string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns[userID] = append(l.turns[userID], history.Turn{Input: turnInput, Output: turnOutput})
	return nil
}

// Read implements history.Log.
func (l *HistoryLog) Read(_ context.Context, userID string) (history.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	turns := make([]history.Turn, len(l.turns[userID]))
	copy(turns, l.turns[userID])
	return &handle{userID: userID, turns: turns}, nil
}

type handle struct {
	userID string
	turns  []history.Turn
}

func (h *handle) UserID() string { return h.userID }

// Turns returns the recorded turns in write order.
func (h *handle) Turns() []history.Turn { return h.turns }
