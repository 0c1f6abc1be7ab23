// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes a message received from the queue.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Close shuts down the queue connection.
	Close() error
}

// Subject constants for the subjects RuleScribe uses.
const (
	// SubjectIngressMessage carries inbound user messages from the chat gateway.
	SubjectIngressMessage = "ingress.message"

	// SubjectIngressSelection carries selection replies (inline button taps).
	SubjectIngressSelection = "ingress.selection"
)

// InboundMessage is the payload published on the ingress subjects.
type InboundMessage struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`

	// SelectionRef is set on ingress.selection: the document_ref the user picked.
	SelectionRef string `json:"selection_ref,omitempty"`
}
