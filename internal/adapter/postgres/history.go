package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rulescribe/rulescribe/internal/port/history"
)

// historyLimit caps how many recent turns a handle carries to the engine.
const historyLimit = 50

// HistoryLog implements history.Log on a pgx connection pool.
type HistoryLog struct {
	pool *pgxpool.Pool
}

// NewHistoryLog creates a PostgreSQL-backed turn log.
func NewHistoryLog(pool *pgxpool.Pool) *HistoryLog {
	return &HistoryLog{pool: pool}
}

// Append implements history.Log.
func (l *HistoryLog) Append(ctx context.Context, userID, turnInput, turnOutput string) error {
	_, err := l.pool.Exec(ctx,
		`INSERT INTO turns (user_id, turn_input, turn_output) VALUES ($1, $2, $3)`,
		userID, turnInput, turnOutput,
	)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// Read implements history.Log. The handle snapshots the most recent turns in
// write order.
func (l *HistoryLog) Read(ctx context.Context, userID string) (history.Handle, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT turn_input, turn_output FROM (
		     SELECT id, turn_input, turn_output FROM turns
		     WHERE user_id = $1 ORDER BY id DESC LIMIT $2
		 ) recent ORDER BY id ASC`,
		userID, historyLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("read turns: %w", err)
	}
	defer rows.Close()

	var turns []history.Turn
	for rows.Next() {
		var t history.Turn
		if err := rows.Scan(&t.Input, &t.Output); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	return &handle{userID: userID, turns: turns}, nil
}

type handle struct {
	userID string
	turns  []history.Turn
}

func (h *handle) UserID() string        { return h.userID }
func (h *handle) Turns() []history.Turn { return h.turns }
