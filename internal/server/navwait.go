// internal/server/navwait.go
package server

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"sync"

	"github.com/halcyonforge/webpilot/internal/sandbox"
)

// NavHub is the pending-registry for navigation waits: wait-token ->
// completion channel. Tokens are generated per call, not per command id,
// since multiple waiters may be outstanding at once. The hub is the
// message-passing seam between the surface's navigation lifecycle observer
// and the protocol layer.
type NavHub struct {
	mu      sync.Mutex
	waiters map[string]chan sandbox.NavigationOutcome
	logger  *zap.Logger
}

// NewNavHub builds an empty hub.
func NewNavHub(logger *zap.Logger) *NavHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NavHub{
		waiters: make(map[string]chan sandbox.NavigationOutcome),
		logger:  logger.Named("navhub"),
	}
}

// Register adds a waiter and returns its token and completion channel.
// The channel is buffered so delivery never blocks on a slow waiter.
func (h *NavHub) Register() (string, <-chan sandbox.NavigationOutcome) {
	token := uuid.NewString()
	ch := make(chan sandbox.NavigationOutcome, 1)
	h.mu.Lock()
	h.waiters[token] = ch
	h.mu.Unlock()
	return token, ch
}

// Abandon removes a waiter that timed out. A later NavigationFinished must
// not find it; delivery to an abandoned token is dropped, never leaked.
func (h *NavHub) Abandon(token string) {
	h.mu.Lock()
	delete(h.waiters, token)
	h.mu.Unlock()
}

// Pending returns the number of outstanding waiters.
func (h *NavHub) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.waiters)
}

// NavigationFinished delivers the outcome to every waiter registered
// before the signal, exactly once each, and clears the set atomically with
// delivery. Implements sandbox.NavigationListener.
func (h *NavHub) NavigationFinished(outcome sandbox.NavigationOutcome) {
	h.mu.Lock()
	waiters := h.waiters
	h.waiters = make(map[string]chan sandbox.NavigationOutcome)
	h.mu.Unlock()

	for _, ch := range waiters {
		ch <- outcome
	}
	if len(waiters) > 0 {
		h.logger.Debug("navigation signal delivered",
			zap.Int("waiters", len(waiters)),
			zap.Bool("ok", outcome.OK),
			zap.String("url", outcome.URL))
	}
}

var _ sandbox.NavigationListener = (*NavHub)(nil)
