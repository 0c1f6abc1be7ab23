// Package reasoner defines the reasoning engine port (interface).
package reasoner

import (
	"context"

	"github.com/rulescribe/rulescribe/internal/domain/decision"
	"github.com/rulescribe/rulescribe/internal/port/history"
)

// TurnInput carries one turn's input plus the conversational context the
// engine needs to produce a Decision.
type TurnInput struct {
	UserID               string
	Input                string
	ActiveSubjectRef     string
	PendingClarification string
	History              history.Handle
}

// Engine is the port interface for the external reasoning service. Infer may
// invoke search tools as a side effect; those calls go through the search
// guard, not through this interface. Failures surface as wrapped
// domain.ErrEngineUnavailable or domain.ErrMalformedDecision.
type Engine interface {
	Infer(ctx context.Context, in TurnInput) (*decision.Decision, error)
}
