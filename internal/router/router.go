// Package router classifies engaged utterances into dispatch
// categories, with deterministic keyword guardrails over the model's
// output.
package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dostlabs/dost/internal/credential"
	"github.com/dostlabs/dost/internal/inference"
	"github.com/dostlabs/dost/internal/invoker"
	"github.com/dostlabs/dost/internal/logging"
	"github.com/dostlabs/dost/internal/store"
)

// LLM is the completion surface the router classifies through.
// Satisfied by *inference.Client.
type LLM interface {
	Complete(ctx context.Context, cred credential.Credential, req inference.ChatRequest) (string, error)
}

// Router turns an utterance plus recent context into a Decision. It
// never drops an engaged turn: any classification problem resolves to
// the general category with the original utterance as payload.
type Router struct {
	inv   *invoker.Invoker
	llm   LLM
	model string
}

// New builds a router. model may be empty to use the client default.
func New(inv *invoker.Invoker, llm LLM, model string) *Router {
	return &Router{inv: inv, llm: llm, model: model}
}

const classifierPrompt = `You are a classifier. Decide which category the user's query belongs to.
Date: %s.
Query: %q
Recent conversation:
%s
Categories:
- start: greetings that open a conversation (hello, hi, hey, namaste, good morning, ...)
- general: casual chat or unclear intent
- realtime: time-sensitive or factual queries needing fresh information (news, dates, sports, search requests)
- play: music or song requests
- reminder: setting a reminder
- lyrics: song lyrics requests
- end: closing the conversation (bye, stop, good night, ...)
Return ONLY the category followed by the query, e.g. "general how are you".
No explanations.`

// Classify runs the classification operation through the resilient
// invoker and applies the guardrails. Parse failures, hard failures
// and rate limiting all default to general.
func (r *Router) Classify(ctx context.Context, query string, recent []store.Message) Decision {
	prompt := fmt.Sprintf(classifierPrompt, time.Now().Format("2 January 2006, 15:04"), query, formatRecent(recent))

	out := r.inv.Do(ctx, func(ctx context.Context, cred credential.Credential) (string, error) {
		return r.llm.Complete(ctx, cred, inference.ChatRequest{
			System:      prompt,
			Model:       r.model,
			Temperature: 0.5,
			MaxTokens:   50,
		})
	})

	fallback := Decision{Category: CategoryGeneral, Payload: query}
	if !out.Success() {
		if out.Err != nil {
			logging.Warnf("router: classification failed, defaulting to general: %v", out.Err)
		}
		return fallback
	}

	d, ok := ParseDecision(out.Text)
	if !ok {
		logging.Debugf("router: unparseable decision %q, defaulting to general", out.Text)
		return fallback
	}
	if d.Payload == "" {
		d.Payload = query
	}
	return ApplyGuardrail(d, query)
}

func formatRecent(msgs []store.Message) string {
	if len(msgs) == 0 {
		return "(none)"
	}
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, m.Role+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}
