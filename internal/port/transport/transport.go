// Package transport defines the message-delivery port (interface).
package transport

import (
	"context"
	"errors"
)

// ErrNotFound is returned when editing or deleting a message that no longer
// exists on the transport side.
var ErrNotFound = errors.New("transport: message not found")

// MessageRef is an opaque handle to a delivered message.
type MessageRef string

// Option is one selectable choice rendered alongside a message.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Transport is the port interface for delivering chat messages.
type Transport interface {
	// Send delivers text to the user, optionally with selectable options,
	// and returns a reference for later edits or deletion.
	Send(ctx context.Context, userID, text string, options []Option) (MessageRef, error)

	// Edit replaces the text of a previously sent message.
	Edit(ctx context.Context, ref MessageRef, text string) error

	// Delete removes a previously sent message.
	Delete(ctx context.Context, ref MessageRef) error

	// SendTyping shows a transient typing indicator to the user.
	SendTyping(ctx context.Context, userID string) error
}
