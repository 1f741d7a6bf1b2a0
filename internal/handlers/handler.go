// Package handlers implements one response generator per dispatch
// category behind a single Handler interface, replacing the
// near-duplicate per-category modules this design grew out of.
package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/dostlabs/dost/internal/credential"
	"github.com/dostlabs/dost/internal/inference"
	"github.com/dostlabs/dost/internal/store"
)

// Handler produces the reply for one category.
type Handler interface {
	// Handle consumes the dispatch payload and the canonical identity
	// and returns reply text. An error means upstream failure; the
	// engine converts it to an apologetic fallback and still records
	// the turn.
	Handle(ctx context.Context, payload, id string) (string, error)
}

// LLM is the completion surface handlers share. Satisfied by
// *inference.Client.
type LLM interface {
	Complete(ctx context.Context, cred credential.Credential, req inference.ChatRequest) (string, error)
	CollectStream(ctx context.Context, cred credential.Credential, req inference.ChatRequest) (string, error)
}

// localTime renders the assistant's notion of "now". The assistant's
// audience runs on IST; fall back to host time when the zone database
// lacks it.
func localTime() string {
	now := time.Now()
	if loc, err := time.LoadLocation("Asia/Kolkata"); err == nil {
		now = now.In(loc)
	}
	return now.Format("2 January 2006, 3:04:05 PM")
}

// contextLines renders recent turns for prompt injection.
func contextLines(msgs []store.Message) string {
	if len(msgs) == 0 {
		return "(none)"
	}
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, m.Role+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

// lastN returns the trailing n entries of msgs.
func lastN(msgs []store.Message, n int) []store.Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
