package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir(), 0, 0)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return s
}

func msg(role string, i int) Message {
	return Message{
		Role:      role,
		Content:   fmt.Sprintf("message %d", i),
		Timestamp: time.Date(2026, 1, 1, 0, 0, i, 0, time.UTC),
	}
}

func TestAppendAndRecent(t *testing.T) {
	s := newTestStore(t)

	if err := s.Append("riya", msg("user", 0), msg("assistant", 1)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := s.Recent("riya", 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 || got[0].Content != "message 0" || got[1].Content != "message 1" {
		t.Errorf("Recent = %+v", got)
	}
}

func TestRecentLimitsAndMissingLog(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Recent("nobody", 5)
	if err != nil || len(got) != 0 {
		t.Fatalf("Recent on missing log = %v, %v; want empty, nil", got, err)
	}

	for i := 0; i < 10; i++ {
		if err := s.Append("riya", msg("user", i)); err != nil {
			t.Fatal(err)
		}
	}
	got, _ = s.Recent("riya", 3)
	if len(got) != 3 || got[0].Content != "message 7" {
		t.Errorf("Recent(3) = %+v", got)
	}
}

func TestRotationAtCap(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 20; i++ {
		if err := s.Append("riya", msg("user", i)); err != nil {
			t.Fatal(err)
		}
	}

	active, _ := s.Recent("riya", 0)
	archived, _ := s.Archive("riya")
	if len(active) != 5 {
		t.Errorf("active log has %d messages, want 5", len(active))
	}
	if len(archived) != 15 {
		t.Errorf("archive has %d messages, want 15", len(archived))
	}
	if archived[0].Content != "message 0" || active[0].Content != "message 15" {
		t.Errorf("rotation broke ordering: archive starts %q, active starts %q",
			archived[0].Content, active[0].Content)
	}
}

func TestArchivePlusActiveIsComplete(t *testing.T) {
	s := newTestStore(t)

	const total = 53
	for i := 0; i < total; i++ {
		if err := s.Append("riya", msg("user", i)); err != nil {
			t.Fatal(err)
		}
	}

	active, _ := s.Recent("riya", 0)
	archived, _ := s.Archive("riya")
	all := append(archived, active...)

	if len(all) != total {
		t.Fatalf("archive+active = %d messages, want %d", len(all), total)
	}
	for i, m := range all {
		if want := fmt.Sprintf("message %d", i); m.Content != want {
			t.Fatalf("position %d holds %q, want %q (duplicate or gap)", i, m.Content, want)
		}
	}
	if len(active) > DefaultCap {
		t.Errorf("active log exceeded cap: %d", len(active))
	}
}

func TestCorruptLogSelfHeals(t *testing.T) {
	s := newTestStore(t)
	if err := s.Append("riya", msg("user", 0)); err != nil {
		t.Fatal(err)
	}

	path := s.logPath("riya")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := s.Recent("riya", 0)
	if err != nil || len(got) != 0 {
		t.Fatalf("corrupt log read = %v, %v; want empty, nil", got, err)
	}

	if err := s.Append("riya", msg("user", 1)); err != nil {
		t.Fatalf("Append after corruption: %v", err)
	}
	got, _ = s.Recent("riya", 0)
	if len(got) != 1 || got[0].Content != "message 1" {
		t.Errorf("log did not heal: %+v", got)
	}
}

func TestWriteFallsBackWhenPrimaryUnwritable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits do not bind as root")
	}
	s := newTestStore(t)

	dir := filepath.Join(s.root, "riya")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(dir, 0o755) })

	if err := s.Append("riya", msg("user", 0)); err != nil {
		t.Fatalf("Append with unwritable primary: %v", err)
	}

	got, _ := s.Recent("riya", 0)
	if len(got) != 1 {
		t.Errorf("fallback read returned %d messages, want 1", len(got))
	}
}

func TestSummaryAppendOnly(t *testing.T) {
	s := newTestStore(t)

	if got, _ := s.Summary("riya"); got != "" {
		t.Fatalf("empty summary = %q", got)
	}
	if err := s.AppendSummary("riya", "Favorite Color: blue"); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendSummary("riya", "Birthday: 5 June"); err != nil {
		t.Fatal(err)
	}

	got, _ := s.Summary("riya")
	if !strings.Contains(got, "Favorite Color: blue") || !strings.Contains(got, "Birthday: 5 June") {
		t.Errorf("summary lost a fact: %q", got)
	}
	if strings.Index(got, "Favorite Color") > strings.Index(got, "Birthday") {
		t.Errorf("summary order changed: %q", got)
	}
}

func TestIdentitiesAreIsolated(t *testing.T) {
	s := newTestStore(t)

	var wg sync.WaitGroup
	for _, id := range []string{"riya", "arjun", "default_user"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 30; i++ {
				if err := s.Append(id, msg("user", i)); err != nil {
					t.Errorf("Append %s: %v", id, err)
					return
				}
			}
		}(id)
	}
	wg.Wait()

	for _, id := range []string{"riya", "arjun", "default_user"} {
		active, _ := s.Recent(id, 0)
		archived, _ := s.Archive(id)
		if len(active)+len(archived) != 30 {
			t.Errorf("%s: active %d + archive %d != 30", id, len(active), len(archived))
		}
	}
}
