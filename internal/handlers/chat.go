package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/dostlabs/dost/internal/credential"
	"github.com/dostlabs/dost/internal/inference"
	"github.com/dostlabs/dost/internal/invoker"
	"github.com/dostlabs/dost/internal/logging"
	"github.com/dostlabs/dost/internal/store"
)

// Chat is the default conversational handler. It also serves the
// start and end categories (greeting and farewell replies).
type Chat struct {
	inv       *invoker.Invoker
	llm       LLM
	history   store.Store
	assistant string
	model     string
}

// NewChat wires the conversational handler.
func NewChat(inv *invoker.Invoker, llm LLM, history store.Store, assistant, model string) *Chat {
	if assistant == "" {
		assistant = "Dost"
	}
	return &Chat{inv: inv, llm: llm, history: history, assistant: assistant, model: model}
}

// personalKeywords hint that the utterance may carry a fact worth
// remembering (names, favorites, birthdays).
var personalKeywords = []string{
	"mera", "mujhe", "main", "favorite", "pasand",
	"birthday", "naam", "kon", "friend", "dost",
}

// Handle implements Handler.
func (c *Chat) Handle(ctx context.Context, payload, id string) (string, error) {
	recent, err := c.history.Recent(id, store.DefaultCap)
	if err != nil {
		logging.Warnf("chat: history read failed for %s: %v", id, err)
	}
	summary, err := c.history.Summary(id)
	if err != nil {
		logging.Warnf("chat: summary read failed for %s: %v", id, err)
	}

	system := fmt.Sprintf(
		`You are %s, a friendly assistant chatting in Hinglish with light emoji use. Date: %s. User: %s.
Query: %q. Recent messages:
%s
Known personal info: %q.
Match the user's tone from the recent messages. Keep replies short, warm and conversational.
Remember new personal info when the user shares it.`,
		c.assistant, localTime(), strings.ReplaceAll(id, "_", " "), payload,
		contextLines(lastN(recent, 3)), summary,
	)

	turns := append(lastN(recent, store.DefaultCap), store.Message{Role: "user", Content: payload})

	out := c.inv.Do(ctx, func(ctx context.Context, cred credential.Credential) (string, error) {
		return c.llm.CollectStream(ctx, cred, inference.ChatRequest{
			System:      system,
			Messages:    turns,
			Model:       c.model,
			Temperature: 0.7,
			MaxTokens:   1024,
		})
	})

	switch out.Kind {
	case invoker.KindFailure:
		return "", out.Err
	case invoker.KindRateLimited:
		// Wait message is the reply; the turn still counts.
		return out.Notice, nil
	}

	c.maybeExtractFact(ctx, payload, id, lastN(recent, 3))

	if out.Text == "" {
		return "Kuchh toh bol, yaar!", nil
	}
	return out.Text, nil
}

// maybeExtractFact runs the personal-info extraction pass when the
// utterance carries a personal keyword. Best effort: extraction
// failures never affect the reply.
func (c *Chat) maybeExtractFact(ctx context.Context, payload, id string, recent []store.Message) {
	lower := strings.ToLower(payload)
	hit := false
	for _, kw := range personalKeywords {
		if strings.Contains(lower, kw) {
			hit = true
			break
		}
	}
	if !hit {
		return
	}

	prompt := fmt.Sprintf(
		`Query: %q. Recent messages:
%s
Extract any personal info (e.g. favorite singer, birthday) as "Key: Value", or "None".`,
		payload, contextLines(recent),
	)

	out := c.inv.Do(ctx, func(ctx context.Context, cred credential.Credential) (string, error) {
		return c.llm.Complete(ctx, cred, inference.ChatRequest{
			System:      prompt,
			Model:       c.model,
			Temperature: 0.5,
			MaxTokens:   50,
		})
	})
	if !out.Success() {
		return
	}
	fact := strings.TrimSpace(out.Text)
	if fact == "" || strings.EqualFold(fact, "none") {
		return
	}
	if err := c.history.AppendSummary(id, fact); err != nil {
		logging.Warnf("chat: summary append failed for %s: %v", id, err)
	}
}
