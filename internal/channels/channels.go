// Package channels defines the transport contract. The core never
// talks to a messaging protocol directly; adapters deliver inbound
// events and accept outbound replies.
package channels

import "context"

// InboundMessage is one event delivered by a transport adapter.
type InboundMessage struct {
	// Identity is the sender's display name before canonicalization.
	Identity string
	// Text is the raw utterance.
	Text string
	// Target is where the reply should go (adapter-specific).
	Target string
	// HasAttachment marks media the core does not process.
	HasAttachment bool
	// Group marks group-context messages.
	Group bool
	// Mentioned is set when the assistant was mentioned in a group.
	Mentioned bool
}

// OutboundMessage is one reply handed back to the adapter.
type OutboundMessage struct {
	Target string
	Text   string
}

// Adapter is a pluggable transport. The core does not retry adapter
// delivery; transports own their reconnect behavior.
type Adapter interface {
	// ID returns the adapter identifier (e.g. "console", "http").
	ID() string
	// Connect starts delivering inbound messages until ctx ends.
	Connect(ctx context.Context) error
	// Disconnect stops the adapter.
	Disconnect() error
	// Send delivers one outbound message.
	Send(ctx context.Context, msg OutboundMessage) error
	// SetHandler registers the inbound callback. The handler returns
	// the reply text; empty means no reply.
	SetHandler(fn func(ctx context.Context, msg InboundMessage) string)
}

// StatusSetter is implemented by adapters that can expose a profile
// status line (used by the daily thought refresh).
type StatusSetter interface {
	SetStatus(ctx context.Context, text string) error
}
