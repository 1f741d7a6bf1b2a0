package thought

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/dostlabs/dost/internal/credential"
	"github.com/dostlabs/dost/internal/inference"
	"github.com/dostlabs/dost/internal/invoker"
)

type fakeLLM struct {
	quote string
	calls int
}

func (f *fakeLLM) Complete(context.Context, credential.Credential, inference.ChatRequest) (string, error) {
	f.calls++
	return f.quote, nil
}

func newUpdaterRig(t *testing.T, llm *fakeLLM) *Updater {
	t.Helper()
	pool, err := credential.NewPool([]credential.Credential{{Name: "k1", APIKey: "x"}})
	if err != nil {
		t.Fatal(err)
	}
	inv := invoker.New(pool, invoker.Options{InitialDelay: time.Millisecond})
	path := filepath.Join(t.TempDir(), "auto", "thought.json")
	return NewUpdater(path, inv, llm, "Dost", "test-model", nil)
}

func TestRefreshGeneratesAndPersists(t *testing.T) {
	llm := &fakeLLM{quote: "Code likho, chai piyo"}
	u := newUpdaterRig(t, llm)

	got, err := u.Refresh(context.Background(), "", false)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !strings.Contains(got, "Code likho, chai piyo") || !strings.Contains(got, "~ Dost") {
		t.Errorf("thought = %q", got)
	}
	if u.Current() != got {
		t.Errorf("Current = %q, want %q", u.Current(), got)
	}
}

func TestRefreshGatesOnAge(t *testing.T) {
	llm := &fakeLLM{quote: "Pehla"}
	u := newUpdaterRig(t, llm)

	first, err := u.Refresh(context.Background(), "", false)
	if err != nil {
		t.Fatal(err)
	}

	llm.quote = "Doosra"
	again, err := u.Refresh(context.Background(), "", false)
	if err != nil {
		t.Fatal(err)
	}
	if again != first {
		t.Errorf("fresh thought replaced within 24h: %q -> %q", first, again)
	}
	if llm.calls != 1 {
		t.Errorf("model called %d times, want 1", llm.calls)
	}

	forced, err := u.Refresh(context.Background(), "", true)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(forced, "Doosra") {
		t.Errorf("forced refresh kept the stale thought: %q", forced)
	}
}

func TestRefreshKeepsHistory(t *testing.T) {
	llm := &fakeLLM{quote: "Ek"}
	u := newUpdaterRig(t, llm)

	if _, err := u.Refresh(context.Background(), "", true); err != nil {
		t.Fatal(err)
	}
	llm.quote = "Do"
	if _, err := u.Refresh(context.Background(), "motivation", true); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(u.path)
	if err != nil {
		t.Fatal(err)
	}
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatal(err)
	}
	if len(st.History) != 2 {
		t.Fatalf("history has %d entries, want 2", len(st.History))
	}
	if st.History[1].Query != "motivation" {
		t.Errorf("history query = %q", st.History[1].Query)
	}
}

func TestLongQuoteTruncatesOnRuneBoundary(t *testing.T) {
	llm := &fakeLLM{quote: strings.Repeat("सोच", 50)}
	u := newUpdaterRig(t, llm)

	got, err := u.Refresh(context.Background(), "", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) > 120 {
		t.Errorf("thought is %d bytes, want at most 120", len(got))
	}
	if !utf8.ValidString(got) {
		t.Errorf("truncated thought is not valid UTF-8: %q", got)
	}
}

func TestFallbackQuoteOnModelFailure(t *testing.T) {
	pool, _ := credential.NewPool([]credential.Credential{{Name: "k1", APIKey: "x"}})
	inv := invoker.New(pool, invoker.Options{InitialDelay: time.Millisecond})
	u := NewUpdater(filepath.Join(t.TempDir(), "thought.json"), inv, failingLLM{}, "Dost", "test-model", nil)

	got, err := u.Refresh(context.Background(), "", true)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, fallbackQuote) {
		t.Errorf("thought = %q, want the fallback quote", got)
	}
}

type failingLLM struct{}

func (failingLLM) Complete(context.Context, credential.Credential, inference.ChatRequest) (string, error) {
	return "", os.ErrDeadlineExceeded
}
