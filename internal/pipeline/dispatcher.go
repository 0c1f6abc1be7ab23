package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rulescribe/rulescribe/internal/port/messagequeue"
)

// TurnHandler consumes one inbound message. *Router.HandleTurn satisfies it.
type TurnHandler func(ctx context.Context, msg messagequeue.InboundMessage)

// Dispatcher fans inbound messages out to per-user actor goroutines. Each
// user has at most one actor, so that user's turns run strictly in arrival
// order while different users proceed in parallel. Actors are created on
// demand and retire after sitting idle.
type Dispatcher struct {
	handler     TurnHandler
	idleTimeout time.Duration
	queueSize   int
	logger      *slog.Logger

	mu     sync.Mutex
	actors map[string]*actor

	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type actor struct {
	userID string
	inbox  chan messagequeue.InboundMessage
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(handler TurnHandler, idleTimeout time.Duration, queueSize int, log *slog.Logger) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		handler:     handler,
		idleTimeout: idleTimeout,
		queueSize:   queueSize,
		logger:      log,
		actors:      make(map[string]*actor),
		quit:        make(chan struct{}),
	}
}

// Dispatch routes a message to its user's actor, creating one if needed.
// When the actor's inbox is full, Dispatch blocks until there is room; that
// backpressure is per user and does not stall other users' actors. Messages
// dispatched after Close are dropped.
func (d *Dispatcher) Dispatch(msg messagequeue.InboundMessage) {
	select {
	case <-d.quit:
		d.logger.Warn("message dropped, dispatcher closed", "user_id", msg.UserID)
		return
	default:
	}

	d.mu.Lock()
	a, ok := d.actors[msg.UserID]
	if !ok {
		a = &actor{
			userID: msg.UserID,
			inbox:  make(chan messagequeue.InboundMessage, d.queueSize),
		}
		d.actors[msg.UserID] = a
		d.wg.Add(1)
		go d.run(a)
	}

	// Fast path while holding the lock: a non-blocking send cannot race with
	// retirement, because retirement re-checks the inbox under this lock.
	select {
	case a.inbox <- msg:
		d.mu.Unlock()
		return
	default:
	}
	d.mu.Unlock()

	// Inbox full. The actor cannot retire while its inbox is non-empty, so
	// blocking outside the lock is safe.
	select {
	case a.inbox <- msg:
	case <-d.quit:
		d.logger.Warn("message dropped during shutdown", "user_id", msg.UserID)
	}
}

// run is the actor loop: process messages in order, retire after idling,
// drain the inbox on shutdown.
func (d *Dispatcher) run(a *actor) {
	defer d.wg.Done()

	idle := time.NewTimer(d.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-d.quit:
			d.drain(a)
			return

		case msg := <-a.inbox:
			d.handler(context.Background(), msg)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(d.idleTimeout)

		case <-idle.C:
			// Retirement and enqueue synchronize on d.mu: if a message
			// slipped in after the timer fired, keep going.
			d.mu.Lock()
			if len(a.inbox) > 0 {
				d.mu.Unlock()
				idle.Reset(d.idleTimeout)
				continue
			}
			delete(d.actors, a.userID)
			d.mu.Unlock()
			d.logger.Debug("actor retired", "user_id", a.userID)
			return
		}
	}
}

// drain processes whatever is left in the inbox, then deregisters the actor.
// The final emptiness check runs under the lock so no enqueue slips into a
// deregistering actor.
func (d *Dispatcher) drain(a *actor) {
	for {
		select {
		case msg := <-a.inbox:
			d.handler(context.Background(), msg)
		default:
			d.mu.Lock()
			if len(a.inbox) > 0 {
				d.mu.Unlock()
				continue
			}
			delete(d.actors, a.userID)
			d.mu.Unlock()
			return
		}
	}
}

// ActorCount returns the number of live actors (for metrics and testing).
func (d *Dispatcher) ActorCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.actors)
}

// Close stops accepting messages, lets every actor drain its inbox, and
// waits for in-flight turns to finish. Idempotent.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() { close(d.quit) })
	d.wg.Wait()
}
