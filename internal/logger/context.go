package logger

import "context"

// contextKey is a private type to prevent collisions with other context keys.
type contextKey struct{}

// turnIDKey is the context key for the turn ID.
var turnIDKey = contextKey{}

// WithTurnID returns a new context with the given turn ID stored.
func WithTurnID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, turnIDKey, id)
}

// TurnID extracts the turn ID from the context.
// Returns an empty string if no turn ID is set.
func TurnID(ctx context.Context) string {
	id, _ := ctx.Value(turnIDKey).(string)
	return id
}
