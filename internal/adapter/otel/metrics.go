// Package otel provides OpenTelemetry instruments for RuleScribe.
package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "rulescribe"

// Metrics holds all RuleScribe metric instruments.
type Metrics struct {
	TurnsStarted     metric.Int64Counter
	TurnsResolved    metric.Int64Counter
	TurnsFailed      metric.Int64Counter
	TurnsRateLimited metric.Int64Counter
	SearchCalls      metric.Int64Counter
	TurnDuration     metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TurnsStarted, err = meter.Int64Counter("rulescribe.turns.started",
		metric.WithDescription("Number of turns started"))
	if err != nil {
		return nil, err
	}

	m.TurnsResolved, err = meter.Int64Counter("rulescribe.turns.resolved",
		metric.WithDescription("Number of turns resolved"))
	if err != nil {
		return nil, err
	}

	m.TurnsFailed, err = meter.Int64Counter("rulescribe.turns.failed",
		metric.WithDescription("Number of turns that ended in an error"))
	if err != nil {
		return nil, err
	}

	m.TurnsRateLimited, err = meter.Int64Counter("rulescribe.turns.rate_limited",
		metric.WithDescription("Number of turns denied admission"))
	if err != nil {
		return nil, err
	}

	m.SearchCalls, err = meter.Int64Counter("rulescribe.search.calls",
		metric.WithDescription("Number of guarded search tool calls"))
	if err != nil {
		return nil, err
	}

	m.TurnDuration, err = meter.Float64Histogram("rulescribe.turn.duration_seconds",
		metric.WithDescription("Turn duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
