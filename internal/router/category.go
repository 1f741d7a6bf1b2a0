package router

import (
	"strings"
)

// Category is one of the closed set of intents the classifier can
// produce.
type Category string

const (
	CategoryStart    Category = "start"
	CategoryGeneral  Category = "general"
	CategoryRealtime Category = "realtime"
	CategoryPlay     Category = "play"
	CategoryReminder Category = "reminder"
	CategoryLyrics   Category = "lyrics"
	CategoryEnd      Category = "end"
)

var categories = map[Category]bool{
	CategoryStart:    true,
	CategoryGeneral:  true,
	CategoryRealtime: true,
	CategoryPlay:     true,
	CategoryReminder: true,
	CategoryLyrics:   true,
	CategoryEnd:      true,
}

// Decision is a classified utterance: the category plus the payload
// the handler receives.
type Decision struct {
	Category Category
	Payload  string
}

// ParseDecision decodes the classifier's literal "<category> <payload>"
// output. A bare category with no payload is accepted; anything else
// fails so the caller can fall back to general.
func ParseDecision(s string) (Decision, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Decision{}, false
	}
	cat, payload, _ := strings.Cut(s, " ")
	c := Category(strings.ToLower(cat))
	if !categories[c] {
		return Decision{}, false
	}
	return Decision{Category: c, Payload: strings.TrimSpace(payload)}, true
}

// Keyword guardrails for categories the classifier is known to
// over-trigger on. A category is only accepted when the raw utterance
// carries at least one of its keywords; otherwise it downgrades to
// general.
var guardrails = map[Category][]string{
	CategoryPlay:   {"gana", "bajao", "sunao", "music", "song", "track", "play"},
	CategoryLyrics: {"lyric", "lyrics", "bol", "text"},
}

// ApplyGuardrail downgrades a guarded category to general when the
// raw utterance lacks every keyword for it.
func ApplyGuardrail(d Decision, raw string) Decision {
	words, guarded := guardrails[d.Category]
	if !guarded {
		return d
	}
	lower := strings.ToLower(raw)
	for _, w := range words {
		if strings.Contains(lower, w) {
			return d
		}
	}
	return Decision{Category: CategoryGeneral, Payload: raw}
}

// greetings is the fixed vocabulary that wakes an idle identity.
var greetings = []string{
	".",
	"hello",
	"hi",
	"hey",
	"namaste",
	"hlo",
	"good morning",
	"good afternoon",
	"good evening",
}

// IsGreeting reports whether an utterance opens with a greeting:
// either an exact match or a greeting token followed by more text.
func IsGreeting(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return false
	}
	for _, g := range greetings {
		if lower == g {
			return true
		}
		if strings.HasPrefix(lower, g+" ") {
			return true
		}
	}
	return false
}
