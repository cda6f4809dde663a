// SPDX-License-Identifier: MIT

// Package transport delivers wire messages to renderer-side consumers.
package transport

import "errors"

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport closed")

// Transport defines a generic interface for sending wire messages.
// Implementations must be safe for concurrent use and must not block the
// caller for longer than a queue insert.
type Transport interface {
	Send(data any) error
	Close() error
}

// Typed is implemented by messages that carry a "type" discriminator.
type Typed interface {
	MessageType() string
}

// messageType names data for logs and metric labels.
func messageType(data any) string {
	if t, ok := data.(Typed); ok {
		return t.MessageType()
	}
	return "unknown"
}
