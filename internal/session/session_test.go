package session

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsToIdle(t *testing.T) {
	m := NewManager(t.TempDir())
	if got := m.Get("riya"); got != StateIdle {
		t.Errorf("fresh identity state = %q, want idle", got)
	}
}

func TestEngageDisengage(t *testing.T) {
	m := NewManager(t.TempDir())

	if err := m.Engage("riya"); err != nil {
		t.Fatalf("Engage: %v", err)
	}
	if got := m.Get("riya"); got != StateEngaged {
		t.Fatalf("after Engage state = %q", got)
	}

	if err := m.Disengage("riya"); err != nil {
		t.Fatalf("Disengage: %v", err)
	}
	if got := m.Get("riya"); got != StateIdle {
		t.Fatalf("after Disengage state = %q", got)
	}

	// idle -> engaged must be repeatable
	if err := m.Engage("riya"); err != nil {
		t.Fatal(err)
	}
	if got := m.Get("riya"); got != StateEngaged {
		t.Errorf("re-engage state = %q", got)
	}
}

func TestStateSurvivesRestart(t *testing.T) {
	root := t.TempDir()

	m := NewManager(root)
	if err := m.Engage("riya"); err != nil {
		t.Fatal(err)
	}

	fresh := NewManager(root)
	if got := fresh.Get("riya"); got != StateEngaged {
		t.Errorf("state after restart = %q, want engaged", got)
	}
}

func TestCorruptFileReadsIdle(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root)
	if err := m.Engage("riya"); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(root, "riya", "messages-start-stop", "riya-setup.json")
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := m.Get("riya"); got != StateIdle {
		t.Errorf("corrupt state file read as %q, want idle", got)
	}
}

func TestIdentitiesIndependent(t *testing.T) {
	m := NewManager(t.TempDir())
	if err := m.Engage("riya"); err != nil {
		t.Fatal(err)
	}
	if got := m.Get("arjun"); got != StateIdle {
		t.Errorf("engaging riya flipped arjun to %q", got)
	}
}
