// Package progress manages the single ephemeral "working on it" message a
// long-running turn shows the user. Updates are debounced; the message is
// deleted once the turn's terminal action has been emitted.
package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rulescribe/rulescribe/internal/port/transport"
)

// ErrRetired is returned when Update is called on a finished handle. This is
// a programming error in the caller: the router drove the turn past its
// terminal state.
var ErrRetired = errors.New("progress: handle already retired")

// Handle tracks the progress message of one turn.
type Handle struct {
	mu           sync.Mutex
	turnID       string
	userID       string
	ref          transport.MessageRef
	lastText     string
	lastUpdateAt time.Time
	retired      bool
}

// TurnID returns the turn this handle belongs to.
func (h *Handle) TurnID() string { return h.turnID }

// Retired reports whether Finish has been called.
func (h *Handle) Retired() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.retired
}

// Reporter creates and drives progress handles over the message transport.
type Reporter struct {
	transport transport.Transport
	debounce  time.Duration
	now       func() time.Time // for testing
}

// NewReporter creates a Reporter with the given debounce interval.
func NewReporter(tr transport.Transport, debounce time.Duration) *Reporter {
	return &Reporter{
		transport: tr,
		debounce:  debounce,
		now:       time.Now,
	}
}

// Begin creates a handle for a turn expected to be long-running. No message
// is sent yet; the first Update creates it.
func (r *Reporter) Begin(turnID, userID string) *Handle {
	return &Handle{turnID: turnID, userID: userID}
}

// Update shows the given summary to the user. Calls within the debounce
// interval of the previous delivered update are dropped, as are calls that
// would not change the visible text. The progress message is created on the
// first delivered update and edited afterwards. Transport failures are
// best-effort and logged, not propagated.
func (r *Reporter) Update(ctx context.Context, h *Handle, summary string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.retired {
		return fmt.Errorf("%w: turn %s", ErrRetired, h.turnID)
	}

	now := r.now()
	if !h.lastUpdateAt.IsZero() && now.Sub(h.lastUpdateAt) < r.debounce {
		return nil
	}
	if summary == h.lastText {
		return nil
	}

	// Keep the typing indicator alive; the transport cancels it on its own.
	if err := r.transport.SendTyping(ctx, h.userID); err != nil {
		slog.Debug("progress typing indicator failed", "turn_id", h.turnID, "error", err)
	}

	if h.ref == "" {
		ref, err := r.transport.Send(ctx, h.userID, summary, nil)
		if err != nil {
			slog.Warn("progress message send failed", "turn_id", h.turnID, "error", err)
			return nil
		}
		h.ref = ref
	} else {
		if err := r.transport.Edit(ctx, h.ref, summary); err != nil {
			slog.Warn("progress message edit failed", "turn_id", h.turnID, "error", err)
			return nil
		}
	}

	h.lastText = summary
	h.lastUpdateAt = now
	return nil
}

// Finish retires the handle and deletes the progress message if one was ever
// created. A turn that resolved before the first update has no message, and
// Finish is then a pure state change. Calling Finish again is a no-op: no
// second delete reaches the transport.
func (r *Reporter) Finish(ctx context.Context, h *Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.retired {
		return
	}
	h.retired = true

	if h.ref == "" {
		return
	}

	if err := r.transport.Delete(ctx, h.ref); err != nil && !errors.Is(err, transport.ErrNotFound) {
		slog.Warn("progress message delete failed", "turn_id", h.turnID, "error", err)
	}
	h.ref = ""
}
