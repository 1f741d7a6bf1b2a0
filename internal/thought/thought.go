// Package thought keeps the assistant's daily status line: a short
// Hinglish quote generated once per day, persisted with history and
// pushed to transports that expose a status hook.
package thought

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	cronlib "github.com/robfig/cron/v3"

	"github.com/dostlabs/dost/internal/channels"
	"github.com/dostlabs/dost/internal/credential"
	"github.com/dostlabs/dost/internal/inference"
	"github.com/dostlabs/dost/internal/invoker"
	"github.com/dostlabs/dost/internal/logging"
)

const (
	refreshAfter   = 24 * time.Hour
	fallbackQuote  = "Dil se Soch, Dost!"
	defaultAddedBy = "Dost"
)

type entry struct {
	Thought   string    `json:"thought"`
	AddedBy   string    `json:"addedBy"`
	Timestamp time.Time `json:"timestamp"`
	Query     string    `json:"query"`
}

type state struct {
	LastUpdate time.Time `json:"lastUpdate"`
	Thought    string    `json:"thought"`
	AddedBy    string    `json:"addedBy"`
	History    []entry   `json:"history"`
}

// LLM is the completion surface the generator uses. Satisfied by
// *inference.Client.
type LLM interface {
	Complete(ctx context.Context, cred credential.Credential, req inference.ChatRequest) (string, error)
}

// Updater generates and persists the daily thought.
type Updater struct {
	path      string
	inv       *invoker.Invoker
	llm       LLM
	assistant string
	model     string
	status    channels.StatusSetter

	mu   sync.Mutex
	cron *cronlib.Cron
}

// NewUpdater builds the updater. status may be nil when no transport
// exposes a status line.
func NewUpdater(path string, inv *invoker.Invoker, llm LLM, assistant, model string, status channels.StatusSetter) *Updater {
	if assistant == "" {
		assistant = defaultAddedBy
	}
	return &Updater{path: path, inv: inv, llm: llm, assistant: assistant, model: model, status: status}
}

// Start refreshes once now and then on a daily schedule until ctx
// ends.
func (u *Updater) Start(ctx context.Context) error {
	if _, err := u.Refresh(ctx, "", false); err != nil {
		logging.Warnf("thought: initial refresh: %v", err)
	}
	u.cron = cronlib.New()
	if _, err := u.cron.AddFunc("@every 24h", func() {
		if _, err := u.Refresh(context.Background(), "", false); err != nil {
			logging.Warnf("thought: scheduled refresh: %v", err)
		}
	}); err != nil {
		return err
	}
	u.cron.Start()
	go func() {
		<-ctx.Done()
		u.cron.Stop()
	}()
	return nil
}

// Current returns the stored thought without refreshing.
func (u *Updater) Current() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.load().Thought
}

// Refresh regenerates the thought when the last one is older than a
// day, or always when force is set. query optionally themes the
// quote. The surviving thought is returned either way.
func (u *Updater) Refresh(ctx context.Context, query string, force bool) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	st := u.load()
	if !force && !st.LastUpdate.IsZero() && time.Since(st.LastUpdate) < refreshAfter {
		return st.Thought, nil
	}

	text := u.generate(ctx, query)
	now := time.Now()
	st.Thought = text
	st.AddedBy = u.assistant
	st.LastUpdate = now
	st.History = append(st.History, entry{
		Thought:   text,
		AddedBy:   u.assistant,
		Timestamp: now,
		Query:     orDefault(query, "default"),
	})
	if err := u.save(st); err != nil {
		return text, err
	}

	if u.status != nil {
		if err := u.status.SetStatus(ctx, text); err != nil {
			logging.Warnf("thought: set status: %v", err)
		}
	}
	logging.Infof("thought: refreshed status to %q", text)
	return text, nil
}

// generate asks the model for a short Hinglish quote and signs it.
func (u *Updater) generate(ctx context.Context, query string) string {
	prompt := "Ek dost jaisa random Hinglish quote de, 10-100 chars. Quote only, no commentary."
	if query != "" {
		prompt = fmt.Sprintf("Ek dost jaisa Hinglish quote de %q pe based, 10-100 chars. Quote only, no commentary.", query)
	}

	out := u.inv.Do(ctx, func(ctx context.Context, cred credential.Credential) (string, error) {
		return u.llm.Complete(ctx, cred, inference.ChatRequest{
			System:      prompt,
			Model:       u.model,
			Temperature: 1.0,
			MaxTokens:   60,
		})
	})

	quote := fallbackQuote
	if out.Success() && strings.TrimSpace(out.Text) != "" {
		quote = strings.TrimSpace(out.Text)
	}
	signed := quote + " ~ " + u.assistant
	if len(signed) > 120 {
		cut := 120
		for cut > 0 && !utf8.RuneStart(signed[cut]) {
			cut--
		}
		signed = signed[:cut]
	}
	return signed
}

func (u *Updater) load() state {
	var st state
	data, err := os.ReadFile(u.path)
	if err != nil {
		return st
	}
	if err := json.Unmarshal(data, &st); err != nil {
		logging.Warnf("thought: corrupt file %s, starting fresh: %v", u.path, err)
		return state{}
	}
	return st
}

func (u *Updater) save(st state) error {
	if err := os.MkdirAll(filepath.Dir(u.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "    ")
	if err != nil {
		return err
	}
	tmp := u.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, u.path)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
