// Package engine owns the per-turn control flow: gate on session
// state, route the utterance, dispatch to a category handler, and
// commit the turn to the conversation store only once the reply is
// known.
package engine

import (
	"context"
	"time"

	"github.com/dostlabs/dost/internal/channels"
	"github.com/dostlabs/dost/internal/handlers"
	"github.com/dostlabs/dost/internal/identity"
	"github.com/dostlabs/dost/internal/logging"
	"github.com/dostlabs/dost/internal/router"
	"github.com/dostlabs/dost/internal/session"
	"github.com/dostlabs/dost/internal/store"
)

const (
	contextWindow = 5

	apologyReply = "Yaar, kuchh gadbad ho gayi. Ek baar phir se bol?"
)

// Engine wires the session gate, the router, the handler set and the
// store into one turn processor. Safe for concurrent turns; all
// per-identity serialization lives in the store and session layers.
type Engine struct {
	sessions *session.Manager
	router   *router.Router
	history  store.Store
	chat     *handlers.Chat
	handlers map[router.Category]handlers.Handler
}

// New builds the engine. chat is both the default handler and the
// target for start/end turns; extra maps the remaining categories.
func New(sessions *session.Manager, r *router.Router, history store.Store, chat *handlers.Chat, extra map[router.Category]handlers.Handler) *Engine {
	return &Engine{
		sessions: sessions,
		router:   r,
		history:  history,
		chat:     chat,
		handlers: extra,
	}
}

// Handle processes one inbound message and returns the reply text.
// An empty reply means the turn was dropped and nothing was written.
func (e *Engine) Handle(ctx context.Context, msg channels.InboundMessage) string {
	if msg.Group && !msg.Mentioned {
		return ""
	}
	if msg.Text == "" {
		if msg.HasAttachment {
			logging.Debugf("engine: dropping attachment-only message from %q", msg.Identity)
		}
		return ""
	}

	id := identity.Canonicalize(msg.Identity)

	if e.sessions.Get(id) == session.StateIdle {
		return e.handleIdle(ctx, id, msg.Text)
	}
	return e.handleEngaged(ctx, id, msg.Text)
}

// handleIdle only reacts to greetings. Anything else is dropped with
// no reply and no store write.
func (e *Engine) handleIdle(ctx context.Context, id, text string) string {
	if !router.IsGreeting(text) {
		logging.Debugf("engine: %s idle, ignoring %q", id, text)
		return ""
	}
	if err := e.sessions.Engage(id); err != nil {
		logging.Errorf("engine: engage %s: %v", id, err)
	}
	return e.dispatch(ctx, id, e.chat, text, text)
}

func (e *Engine) handleEngaged(ctx context.Context, id, text string) string {
	recent, err := e.history.Recent(id, contextWindow)
	if err != nil {
		logging.Warnf("engine: recent history for %s: %v", id, err)
	}

	decision := e.router.Classify(ctx, text, recent)
	logging.Debugf("engine: %s classified %q as %s", id, text, decision.Category)

	if decision.Category == router.CategoryEnd {
		// Disengage first so a crash mid-reply still leaves the gate
		// closed; the farewell reply is produced regardless.
		if err := e.sessions.Disengage(id); err != nil {
			logging.Errorf("engine: disengage %s: %v", id, err)
		}
		return e.dispatch(ctx, id, e.chat, text, text)
	}

	h := e.handlerFor(decision.Category)
	return e.dispatch(ctx, id, h, decision.Payload, text)
}

// handlerFor maps a category to its handler; unmapped categories fall
// through to the conversational default.
func (e *Engine) handlerFor(c router.Category) handlers.Handler {
	if h, ok := e.handlers[c]; ok {
		return h
	}
	return e.chat
}

// dispatch runs the handler and commits the turn. The user text and
// the reply land in one Append so the turn is atomic; a storage
// failure is logged and the reply still goes out.
func (e *Engine) dispatch(ctx context.Context, id string, h handlers.Handler, payload, raw string) string {
	reply, err := h.Handle(ctx, payload, id)
	if err != nil {
		logging.Errorf("engine: handler failed for %s: %v", id, err)
		reply = apologyReply
	}
	if reply == "" {
		return ""
	}

	now := time.Now()
	if err := e.history.Append(id,
		store.Message{Role: "user", Content: raw, Timestamp: now},
		store.Message{Role: "assistant", Content: reply, Timestamp: now},
	); err != nil {
		logging.Errorf("engine: record turn for %s: %v", id, err)
	}
	return reply
}
