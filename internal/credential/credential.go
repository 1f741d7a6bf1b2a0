package credential

import (
	"errors"
	"sync"
)

// ErrNoCredentials is returned when a pool is constructed with zero
// credentials. This is a startup configuration error; the process
// should not come up without at least one inference credential.
var ErrNoCredentials = errors.New("credential: no inference credentials configured")

// Credential is an authorization token for one inference-backend
// account. Immutable once loaded; operators rotate keys out-of-band.
type Credential struct {
	// Name identifies the credential in logs (e.g. "key1"). Never the
	// key material itself.
	Name string
	// APIKey is the bearer token for the inference backend.
	APIKey string
}

// Pool holds an ordered, non-empty set of credentials plus a shared
// rotation cursor. The cursor is shared by every in-flight invocation;
// a lost cursor update only costs rotation efficiency, never correctness.
type Pool struct {
	creds []Credential

	mu     sync.Mutex
	cursor int
}

// NewPool builds a pool from the given credentials. Order is
// preserved; rotation starts at index 0.
func NewPool(creds []Credential) (*Pool, error) {
	if len(creds) == 0 {
		return nil, ErrNoCredentials
	}
	cp := make([]Credential, len(creds))
	copy(cp, creds)
	return &Pool{creds: cp}, nil
}

// Size returns the number of credentials in the pool.
func (p *Pool) Size() int {
	return len(p.creds)
}

// At returns the credential at the given index.
func (p *Pool) At(i int) Credential {
	return p.creds[i]
}

// Cursor returns the current rotation cursor.
func (p *Pool) Cursor() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// Advance moves the shared cursor to the next credential, wrapping
// around at the end of the pool, and returns the new index.
func (p *Pool) Advance() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor = (p.cursor + 1) % len(p.creds)
	return p.cursor
}

// Current returns the credential under the cursor.
func (p *Pool) Current() Credential {
	return p.creds[p.Cursor()]
}
