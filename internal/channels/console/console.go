// Package console is the stdin/stdout transport used by `dost chat`.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/dostlabs/dost/internal/channels"
)

// Adapter reads one utterance per line and prints replies. The
// identity is fixed at construction (defaults to the OS username).
type Adapter struct {
	identity string
	in       io.Reader
	out      io.Writer

	mu      sync.RWMutex
	handler func(ctx context.Context, msg channels.InboundMessage) string
}

// New creates a console adapter for the given identity.
func New(identity string) *Adapter {
	if identity == "" {
		identity = os.Getenv("USER")
	}
	if identity == "" {
		identity = "console"
	}
	return &Adapter{identity: identity, in: os.Stdin, out: os.Stdout}
}

// ID implements channels.Adapter.
func (a *Adapter) ID() string { return "console" }

// SetHandler implements channels.Adapter.
func (a *Adapter) SetHandler(fn func(ctx context.Context, msg channels.InboundMessage) string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handler = fn
}

// Connect runs the read loop until EOF or context cancellation.
func (a *Adapter) Connect(ctx context.Context) error {
	scanner := bufio.NewScanner(a.in)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		a.mu.RLock()
		handler := a.handler
		a.mu.RUnlock()
		if handler == nil {
			continue
		}

		reply := handler(ctx, channels.InboundMessage{
			Identity: a.identity,
			Text:     text,
			Target:   a.identity,
		})
		if reply != "" {
			fmt.Fprintln(a.out, reply)
		}
	}
	return scanner.Err()
}

// Disconnect implements channels.Adapter.
func (a *Adapter) Disconnect() error { return nil }

// Send implements channels.Adapter.
func (a *Adapter) Send(_ context.Context, msg channels.OutboundMessage) error {
	_, err := fmt.Fprintln(a.out, msg.Text)
	return err
}
