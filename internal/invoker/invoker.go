// Package invoker executes inference operations against a credential
// pool, rotating to the next credential on rate limiting instead of
// failing the user-visible turn.
package invoker

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/dostlabs/dost/internal/credential"
	"github.com/dostlabs/dost/internal/logging"
)

// Op is one unit of work that needs exactly one credential.
type Op func(ctx context.Context, cred credential.Credential) (string, error)

// Kind discriminates the invocation outcome.
type Kind int

const (
	// KindSuccess carries the operation result text.
	KindSuccess Kind = iota
	// KindRateLimited means every usable credential was throttled.
	// Notice holds a user-visible wait message; never fatal.
	KindRateLimited
	// KindFailure is any non-rate-limit error, propagated immediately
	// without retry.
	KindFailure
)

// Outcome is the tagged result of Invoker.Do.
type Outcome struct {
	Kind       Kind
	Text       string
	RetryAfter time.Duration // best-effort hint, 0 when unknown
	Notice     string        // user-visible message for KindRateLimited
	Err        error         // set for KindFailure
}

// Success reports whether the operation produced a result.
func (o Outcome) Success() bool { return o.Kind == KindSuccess }

const (
	busyNotice = "Arre yaar, abhi busy hun! Thodi der baad baat kar!"

	defaultMaxRetries   = 1
	defaultInitialDelay = 3 * time.Second
)

// Options tune the retry loop. Zero values pick the defaults used for
// chat-urgency calls; the classifier uses more retries per credential.
type Options struct {
	// MaxRetries is the number of attempts per credential.
	MaxRetries int
	// InitialDelay is the first backoff; it doubles per attempt and
	// resets when rotating to the next credential.
	InitialDelay time.Duration
}

// Invoker drives an Op across the pool. Latency is bounded by
// pool size x MaxRetries x backoff ceiling; there is no unbounded
// retry storm.
type Invoker struct {
	pool         *credential.Pool
	maxRetries   int
	initialDelay time.Duration
}

// New wires an invoker to a pool.
func New(pool *credential.Pool, opts Options) *Invoker {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = defaultInitialDelay
	}
	return &Invoker{
		pool:         pool,
		maxRetries:   opts.MaxRetries,
		initialDelay: opts.InitialDelay,
	}
}

// Do runs op with the credential under the pool cursor. On a
// rate-limit signal it retries with exponential backoff, then rotates
// to the next credential. Any other error stops the loop immediately.
// After one full lap over the pool it gives up with a RateLimited
// outcome carrying a generic busy message.
func (iv *Invoker) Do(ctx context.Context, op Op) Outcome {
	var lastHint time.Duration

	for i := 0; i < iv.pool.Size(); i++ {
		cred := iv.pool.Current()
		delay := iv.initialDelay

		for attempt := 0; attempt < iv.maxRetries; attempt++ {
			text, err := op(ctx, cred)
			if err == nil {
				return Outcome{Kind: KindSuccess, Text: text}
			}

			rl, ok := AsRateLimit(err)
			if !ok {
				return Outcome{Kind: KindFailure, Err: err}
			}

			if hint, found := RetryHint(rl.Detail()); found {
				lastHint = hint
			}
			logging.Warnf("invoker: credential %q rate limited (attempt %d/%d)",
				cred.Name, attempt+1, iv.maxRetries)

			if attempt+1 < iv.maxRetries {
				if !sleep(ctx, delay) {
					return Outcome{Kind: KindFailure, Err: ctx.Err()}
				}
				delay *= 2
			}
		}

		iv.pool.Advance()
	}

	out := Outcome{Kind: KindRateLimited, RetryAfter: lastHint, Notice: busyNotice}
	if lastHint > 0 {
		out.Notice = waitNotice(lastHint)
	}
	return out
}

// waitNotice turns a retry hint into the user-visible wait message.
func waitNotice(hint time.Duration) string {
	secs := int(math.Ceil(hint.Seconds()))
	return fmt.Sprintf("Arre, %d sec baad try karo!", secs)
}

// sleep waits for d or until the context is cancelled. Returns false
// on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
