// Package pipeline drives a user turn from inbound message to resolution:
// admission, engine inference, decision dispatch, and outbound delivery.
// Per-user ordering is enforced by the Dispatcher; the Router itself handles
// one turn at a time for a given user.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/rulescribe/rulescribe/internal/adapter/otel"
	"github.com/rulescribe/rulescribe/internal/domain"
	"github.com/rulescribe/rulescribe/internal/domain/decision"
	"github.com/rulescribe/rulescribe/internal/governor"
	"github.com/rulescribe/rulescribe/internal/logger"
	"github.com/rulescribe/rulescribe/internal/port/history"
	"github.com/rulescribe/rulescribe/internal/port/messagequeue"
	"github.com/rulescribe/rulescribe/internal/port/reasoner"
	"github.com/rulescribe/rulescribe/internal/port/transport"
	"github.com/rulescribe/rulescribe/internal/progress"
	"github.com/rulescribe/rulescribe/internal/state"
)

// Router resolves one turn at a time. It owns no goroutines; concurrency and
// per-user ordering live in the Dispatcher.
type Router struct {
	engine    reasoner.Engine
	transport transport.Transport
	states    *state.Store
	limiter   *governor.RateLimiter
	reporter  *progress.Reporter
	history   history.Log
	metrics   *otel.Metrics
	logger    *slog.Logger

	lowConfidenceThreshold float64

	newTurnID func() string    // for testing
	now       func() time.Time // for testing
}

// RouterParams bundles the collaborators a Router needs.
type RouterParams struct {
	Engine    reasoner.Engine
	Transport transport.Transport
	States    *state.Store
	Limiter   *governor.RateLimiter
	Reporter  *progress.Reporter
	History   history.Log
	Metrics   *otel.Metrics
	Logger    *slog.Logger

	LowConfidenceThreshold float64
}

// NewRouter creates a Router. Metrics may be nil.
func NewRouter(p RouterParams) *Router {
	log := p.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		engine:                 p.Engine,
		transport:              p.Transport,
		states:                 p.States,
		limiter:                p.Limiter,
		reporter:               p.Reporter,
		history:                p.History,
		metrics:                p.Metrics,
		logger:                 log,
		lowConfidenceThreshold: p.LowConfidenceThreshold,
		newTurnID:              uuid.NewString,
		now:                    time.Now,
	}
}

// HandleTurn processes one inbound message end to end. It never returns an
// error for user-level failures; everything the user must know is delivered
// over the transport, and operational detail goes to the log.
func (rt *Router) HandleTurn(ctx context.Context, msg messagequeue.InboundMessage) {
	turnID := rt.newTurnID()
	ctx = logger.WithTurnID(ctx, turnID)
	ctx, span := otel.StartTurnSpan(ctx, turnID, msg.UserID)
	defer span.End()
	log := rt.logger.With("turn_id", turnID, "user_id", msg.UserID)

	if msg.SelectionRef != "" {
		rt.handleSelection(ctx, log, msg)
		return
	}

	start := rt.now()
	if rt.metrics != nil {
		rt.metrics.TurnsStarted.Add(ctx, 1)
	}

	if verdict := rt.limiter.Admit(msg.UserID); !verdict.Allowed {
		seconds := int(math.Ceil(verdict.RetryAfter.Seconds()))
		log.Info("turn denied by rate limiter", "retry_after_s", seconds)
		if rt.metrics != nil {
			rt.metrics.TurnsRateLimited.Add(ctx, 1)
		}
		rt.send(ctx, log, msg.UserID, rateLimitText(seconds), nil)
		return
	}

	snapshot := rt.states.Get(msg.UserID)
	handle := rt.reporter.Begin(turnID, msg.UserID)

	if err := rt.transport.SendTyping(ctx, msg.UserID); err != nil {
		log.Debug("typing indicator failed", "error", err)
	}

	hist, err := rt.history.Read(ctx, msg.UserID)
	if err != nil {
		// A missing history degrades the answer, it does not block the turn.
		log.Warn("history read failed", "error", err)
		hist = nil
	}

	d, err := rt.engine.Infer(ctx, reasoner.TurnInput{
		UserID:               msg.UserID,
		Input:                msg.Text,
		ActiveSubjectRef:     snapshot.ActiveSubjectRef,
		PendingClarification: snapshot.PendingClarification,
		History:              hist,
	})
	if err != nil {
		rt.failTurn(ctx, log, handle, msg.UserID, err)
		return
	}

	rt.dispatch(ctx, log, handle, msg, d)
	if rt.metrics != nil {
		rt.metrics.TurnDuration.Record(ctx, rt.now().Sub(start).Seconds(),
			metric.WithAttributes(attribute.String("action", string(d.Action))))
	}
}

// handleSelection merges an inline selection reply into the conversation
// state. Selection replies bypass admission: the turn that produced the
// candidate list already paid for itself.
func (rt *Router) handleSelection(ctx context.Context, log *slog.Logger, msg messagequeue.InboundMessage) {
	rt.states.SetSubject(msg.UserID, msg.SelectionRef)
	rt.states.SetPendingClarification(msg.UserID, "")
	log.Info("subject selected", "subject_ref", msg.SelectionRef)

	text := "Got it. Ask me anything about it."
	if msg.Text != "" {
		text = "📖 " + msg.Text + " selected. Ask me anything about it."
	}
	rt.send(ctx, log, msg.UserID, text, nil)
}

// dispatch drives the decision's terminal action. State is only mutated here,
// after the engine produced a valid decision; failed turns leave the
// snapshot untouched.
func (rt *Router) dispatch(ctx context.Context, log *slog.Logger, handle *progress.Handle, msg messagequeue.InboundMessage, d *decision.Decision) {
	switch d.Action {
	case decision.ActionClarify:
		rt.reporter.Finish(ctx, handle)
		text := formatClarification(d.Clarification)
		rt.send(ctx, log, msg.UserID, text, nil)
		rt.states.SetPendingClarification(msg.UserID, d.Clarification.Question)
		rt.append(ctx, log, msg.UserID, msg.Text, d.Clarification.Question)
		rt.resolved(ctx, log, d.Action)

	case decision.ActionSelect:
		rt.reporter.Finish(ctx, handle)
		if len(d.Selection.Candidates) == 0 {
			// Contract violation by the engine; degrade to a plain question
			// rather than showing the user an empty keyboard.
			log.Error("selection decision with no candidates")
			rt.send(ctx, log, msg.UserID, selectionFallbackText, nil)
			rt.states.SetPendingClarification(msg.UserID, selectionFallbackText)
			rt.append(ctx, log, msg.UserID, msg.Text, selectionFallbackText)
			rt.resolved(ctx, log, d.Action)
			return
		}
		candidates := d.Selection.SortedCandidates()
		options := make([]transport.Option, 0, len(candidates))
		for _, c := range candidates {
			options = append(options, transport.Option{
				Label: candidateLabel(c),
				Value: c.DocumentRef,
			})
		}
		question := d.Selection.Question
		if question == "" {
			question = "Which one do you mean?"
		}
		rt.send(ctx, log, msg.UserID, question, options)
		rt.states.SetPendingClarification(msg.UserID, "")
		rt.append(ctx, log, msg.UserID, msg.Text, question)
		rt.resolved(ctx, log, d.Action)

	case decision.ActionProgress:
		p := d.Progress
		if err := rt.reporter.Update(ctx, handle, formatProgress(p)); err != nil {
			log.Error("progress update on retired handle", "error", err)
		}
		if p.SubjectRef != "" {
			rt.states.SetSubject(msg.UserID, p.SubjectRef)
		}
		if p.NeedsMoreInput && p.FollowUpQuestion != "" {
			rt.send(ctx, log, msg.UserID, "❓ "+p.FollowUpQuestion, nil)
			rt.states.SetPendingClarification(msg.UserID, p.FollowUpQuestion)
		}
		// The turn stays logically open; the next inbound message picks it up.

	case decision.ActionAnswer:
		rt.reporter.Finish(ctx, handle)
		text := formatAnswer(d.Answer, rt.lowConfidenceThreshold)
		rt.send(ctx, log, msg.UserID, text, nil)
		rt.states.SetPendingClarification(msg.UserID, "")
		rt.append(ctx, log, msg.UserID, msg.Text, d.Answer.Text)
		rt.resolved(ctx, log, d.Action)
	}
}

// failTurn maps an engine failure onto the error taxonomy, retires the
// progress handle, and tells the user something actionable. Conversation
// state is never mutated on a failed turn.
func (rt *Router) failTurn(ctx context.Context, log *slog.Logger, handle *progress.Handle, userID string, err error) {
	rt.reporter.Finish(ctx, handle)
	if rt.metrics != nil {
		rt.metrics.TurnsFailed.Add(ctx, 1)
	}

	switch {
	case errors.Is(err, domain.ErrMalformedDecision):
		log.Error("engine produced malformed decision", "error", err)
		rt.send(ctx, log, userID, genericFailureText, nil)
	case errors.Is(err, domain.ErrEngineUnavailable):
		log.Error("reasoning engine unavailable", "error", err)
		rt.send(ctx, log, userID, engineUnavailableText, nil)
	case errors.Is(err, domain.ErrSearchTimeout), errors.Is(err, domain.ErrSearchFailed):
		log.Error("search tool failure surfaced from engine", "error", err)
		rt.send(ctx, log, userID, genericFailureText, nil)
	default:
		log.Error("turn failed", "error", err)
		rt.send(ctx, log, userID, genericFailureText, nil)
	}
}

// send delivers text over the transport, best-effort. Transport failures are
// logged; there is nothing further to unwind because state mutations happen
// after delivery is attempted.
func (rt *Router) send(ctx context.Context, log *slog.Logger, userID, text string, options []transport.Option) {
	if _, err := rt.transport.Send(ctx, userID, text, options); err != nil {
		log.Error("outbound delivery failed", "error", err)
		if rt.metrics != nil {
			rt.metrics.TurnsFailed.Add(ctx, 1)
		}
	}
}

func (rt *Router) append(ctx context.Context, log *slog.Logger, userID, input, output string) {
	if err := rt.history.Append(ctx, userID, input, output); err != nil {
		log.Warn("history append failed", "error", err)
	}
}

func (rt *Router) resolved(ctx context.Context, log *slog.Logger, action decision.Action) {
	log.Info("turn resolved", "action", string(action))
	if rt.metrics != nil {
		rt.metrics.TurnsResolved.Add(ctx, 1,
			metric.WithAttributes(attribute.String("action", string(action))))
	}
}
