package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dostlabs/dost/internal/credential"
	"github.com/dostlabs/dost/internal/inference"
	"github.com/dostlabs/dost/internal/invoker"
	"github.com/dostlabs/dost/internal/logging"
	"github.com/dostlabs/dost/internal/store"
)

const noResults = "Kuchh nahi mila is baare mein."

// SearchClient fetches one snippet from the Google Custom Search JSON
// API. Without credentials every lookup reports no results; the
// handler still answers from model knowledge.
type SearchClient struct {
	apiKey string
	cx     string
	client *http.Client
}

// NewSearchClient builds a search client; apiKey and cx may be empty.
func NewSearchClient(apiKey, cx string) *SearchClient {
	return &SearchClient{
		apiKey: apiKey,
		cx:     cx,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Snippet returns the first result snippet for the query.
func (s *SearchClient) Snippet(ctx context.Context, query string) (string, error) {
	if s.apiKey == "" || s.cx == "" {
		return noResults, nil
	}

	u := fmt.Sprintf(
		"https://www.googleapis.com/customsearch/v1?key=%s&cx=%s&q=%s&num=1",
		s.apiKey, s.cx, url.QueryEscape(query),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("search API %s: %s", resp.Status, string(body))
	}

	var data struct {
		Items []struct {
			Snippet string `json:"snippet"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", err
	}
	if len(data.Items) == 0 || data.Items[0].Snippet == "" {
		return noResults, nil
	}
	return data.Items[0].Snippet, nil
}

// Realtime answers time-sensitive queries: refine the query with the
// model, ground it on a live search snippet, then compose the reply.
type Realtime struct {
	inv       *invoker.Invoker
	llm       LLM
	history   store.Store
	search    *SearchClient
	assistant string
	model     string
}

// NewRealtime wires the realtime handler.
func NewRealtime(inv *invoker.Invoker, llm LLM, history store.Store, search *SearchClient, assistant, model string) *Realtime {
	return &Realtime{inv: inv, llm: llm, history: history, search: search, assistant: assistant, model: model}
}

// Handle implements Handler.
func (r *Realtime) Handle(ctx context.Context, payload, id string) (string, error) {
	recent, _ := r.history.Recent(id, 3)
	summary, _ := r.history.Summary(id)

	refined := r.refineQuery(ctx, payload, recent)

	liveData := noResults
	if refined != "" {
		snippet, err := r.search.Snippet(ctx, refined)
		if err != nil {
			logging.Warnf("realtime: search failed for %q: %v", refined, err)
		} else {
			liveData = snippet
		}
	}

	system := fmt.Sprintf(
		`You are %s, a quick assistant for %s. Date: %s.
Refined query: %q
Recent messages:
%s
Live info: %q
Known personal info: %q
Answer in Hinglish, short and to the point, grounded on the live info when it is relevant.`,
		r.assistant, strings.ReplaceAll(id, "_", " "), localTime(),
		refined, contextLines(recent), liveData, summary,
	)

	out := r.inv.Do(ctx, func(ctx context.Context, cred credential.Credential) (string, error) {
		return r.llm.CollectStream(ctx, cred, inference.ChatRequest{
			System:      system,
			Messages:    []store.Message{{Role: "user", Content: payload}},
			Model:       r.model,
			Temperature: 0.7,
			MaxTokens:   512,
		})
	})
	switch out.Kind {
	case invoker.KindFailure:
		return "", out.Err
	case invoker.KindRateLimited:
		return out.Notice, nil
	}
	return out.Text, nil
}

// refineQuery asks the model to turn the utterance into a concrete
// search query, defaulting the year when none is given. "" means the
// intent was too unclear to search.
func (r *Realtime) refineQuery(ctx context.Context, payload string, recent []store.Message) string {
	prompt := fmt.Sprintf(
		`Figure out the user's real-time information need. Query: %q. Recent messages:
%s
Use the current year (%d) when no year is given.
Return a refined search query, or "None" if unclear. No explanations.`,
		payload, contextLines(recent), time.Now().Year(),
	)

	out := r.inv.Do(ctx, func(ctx context.Context, cred credential.Credential) (string, error) {
		return r.llm.Complete(ctx, cred, inference.ChatRequest{
			System:      prompt,
			Model:       r.model,
			Temperature: 0.5,
			MaxTokens:   50,
		})
	})
	if !out.Success() {
		return payload
	}
	refined := strings.TrimSpace(out.Text)
	if refined == "" || strings.EqualFold(refined, "none") {
		return ""
	}
	return refined
}
