// Package session tracks the engaged/idle gate per identity. The
// router only runs for engaged identities; unsolicited messages from
// idle ones are dropped without a reply.
package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/dostlabs/dost/internal/logging"
)

// State is the per-identity gate value.
type State string

const (
	StateIdle    State = "idle"
	StateEngaged State = "engaged"
)

type record struct {
	State State `json:"state"`
}

// Manager persists session state, one small JSON file per identity.
// State survives process restarts; identities default to idle.
type Manager struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager stores session files under root.
func NewManager(root string) *Manager {
	return &Manager{root: root, locks: map[string]*sync.Mutex{}}
}

func (m *Manager) lockFor(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

func (m *Manager) path(id string) string {
	return filepath.Join(m.root, id, "messages-start-stop", id+"-setup.json")
}

// Get returns the current state for an identity. Missing or corrupt
// files read as idle.
func (m *Manager) Get(id string) State {
	l := m.lockFor(id)
	l.Lock()
	defer l.Unlock()

	data, err := os.ReadFile(m.path(id))
	if err != nil {
		return StateIdle
	}
	var r record
	if err := json.Unmarshal(data, &r); err != nil || r.State != StateEngaged {
		return StateIdle
	}
	return StateEngaged
}

// Engage transitions the identity to engaged.
func (m *Manager) Engage(id string) error {
	return m.set(id, StateEngaged)
}

// Disengage transitions the identity back to idle.
func (m *Manager) Disengage(id string) error {
	return m.set(id, StateIdle)
}

func (m *Manager) set(id string, st State) error {
	l := m.lockFor(id)
	l.Lock()
	defer l.Unlock()

	path := m.path(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(record{State: st}, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	logging.Debugf("session: %s -> %s", id, st)
	return nil
}
