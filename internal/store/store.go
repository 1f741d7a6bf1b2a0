// Package store persists bounded per-user conversation history.
// The active log is soft-capped; overflow moves to an append-only
// archive so no turn is ever lost to trimming.
package store

import (
	"fmt"
	"time"
)

const (
	// DefaultCap is the soft cap on the active log length.
	DefaultCap = 20
	// DefaultTail is how many recent messages survive a rotation.
	DefaultTail = 5
)

// Message is one conversation turn half. Immutable once written.
type Message struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is the per-identity conversation history contract. Identities
// are canonical keys (see internal/identity); implementations
// serialize access per identity and never block unrelated identities
// on each other.
type Store interface {
	// Append adds messages to the active log, rotating overflow into
	// the archive when the cap is reached. All messages land in one
	// read-modify-write so a turn commits atomically.
	Append(id string, msgs ...Message) error

	// Recent returns the last n messages of the active log, oldest
	// first. A missing log yields an empty slice, not an error.
	Recent(id string, n int) ([]Message, error)

	// Archive returns the archived overflow, oldest first.
	Archive(id string) ([]Message, error)

	// Summary returns the personal-facts text for the identity, or ""
	// when none exists.
	Summary(id string) (string, error)

	// AppendSummary appends one extracted fact to the personal
	// summary. Append-only; summaries are never rotated.
	AppendSummary(id, fact string) error
}

// StorageError is an I/O failure after the fallback location was also
// tried. Callers log it and let the turn proceed without persistence
// rather than failing the user-visible reply.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
