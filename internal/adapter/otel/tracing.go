package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer(meterName)

// StartTurnSpan opens the span covering one pipeline turn.
func StartTurnSpan(ctx context.Context, turnID, userID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "pipeline.turn",
		trace.WithAttributes(
			attribute.String("turn.id", turnID),
			attribute.String("user.id", userID),
		))
}
