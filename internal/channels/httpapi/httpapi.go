// Package httpapi exposes the turn engine over a small local HTTP
// surface, mainly for integration and debugging.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dostlabs/dost/internal/channels"
	"github.com/dostlabs/dost/internal/identity"
	"github.com/dostlabs/dost/internal/logging"
	"github.com/dostlabs/dost/internal/store"
)

// Adapter serves POST /v1/messages and GET /v1/history/{identity}.
type Adapter struct {
	addr    string
	history store.Store
	server  *http.Server

	mu      sync.RWMutex
	handler func(ctx context.Context, msg channels.InboundMessage) string
}

// New creates an HTTP adapter listening on addr. history may be nil
// to disable the history endpoint.
func New(addr string, history store.Store) *Adapter {
	return &Adapter{addr: addr, history: history}
}

// ID implements channels.Adapter.
func (a *Adapter) ID() string { return "http" }

// SetHandler implements channels.Adapter.
func (a *Adapter) SetHandler(fn func(ctx context.Context, msg channels.InboundMessage) string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handler = fn
}

type inboundRequest struct {
	Identity string `json:"identity"`
	Text     string `json:"text"`
	Group    bool   `json:"group,omitempty"`
	Mention  bool   `json:"mentioned,omitempty"`
}

type inboundResponse struct {
	Reply string `json:"reply"`
}

// Connect starts the HTTP server and blocks until ctx is done.
func (a *Adapter) Connect(ctx context.Context) error {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Post("/v1/messages", a.handleMessage)
	if a.history != nil {
		r.Get("/v1/history/{identity}", a.handleHistory)
	}

	a.server = &http.Server{Addr: a.addr, Handler: r}

	errCh := make(chan error, 1)
	go func() {
		logging.Infof("httpapi: listening on %s", a.addr)
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Disconnect implements channels.Adapter.
func (a *Adapter) Disconnect() error {
	if a.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.server.Shutdown(ctx)
}

// Send implements channels.Adapter. Replies are returned in-band on
// the POST response, so out-of-band sends are a no-op.
func (a *Adapter) Send(context.Context, channels.OutboundMessage) error { return nil }

func (a *Adapter) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req inboundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	a.mu.RLock()
	handler := a.handler
	a.mu.RUnlock()
	if handler == nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}

	reply := handler(r.Context(), channels.InboundMessage{
		Identity:  req.Identity,
		Text:      req.Text,
		Target:    req.Identity,
		Group:     req.Group,
		Mentioned: req.Mention,
	})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(inboundResponse{Reply: reply})
}

func (a *Adapter) handleHistory(w http.ResponseWriter, r *http.Request) {
	key := identity.Canonicalize(chi.URLParam(r, "identity"))
	msgs, err := a.history.Recent(key, 0)
	if err != nil {
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(msgs)
}
