// internal/sandbox/sandbox.go
package sandbox

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Evaluator is the single capability the automation core requires from the
// rendering surface: run a script, return a value or throw. Every
// higher-level action compiles down to one or more calls to it.
type Evaluator interface {
	Evaluate(ctx context.Context, script string) (any, error)
}

// Navigator is implemented by surfaces that can drive top-level navigation
// outside of page scripts.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	Back(ctx context.Context) error
	Forward(ctx context.Context) error
}

// Capturer is implemented by surfaces that can produce image captures.
// Optional: artifact capture degrades gracefully without it.
type Capturer interface {
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
}

// NavigationOutcome is the terminal state of one navigation lifecycle.
type NavigationOutcome struct {
	OK    bool
	URL   string
	Error string
}

// NavigationListener receives navigation lifecycle signals from the
// surface. The protocol server's pending-waiter registry implements this.
type NavigationListener interface {
	NavigationFinished(outcome NavigationOutcome)
}

// Session serializes script execution against one surface. At most one
// script runs at a time per sandbox; the limiter caps evaluation rate so a
// runaway poll loop cannot starve the page's own JS.
type Session struct {
	eval    Evaluator
	limiter *rate.Limiter
	logger  *zap.Logger

	mu sync.Mutex
}

// NewSession wraps an Evaluator. evalsPerSecond <= 0 disables throttling.
func NewSession(eval Evaluator, evalsPerSecond float64, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if evalsPerSecond > 0 {
		limit = rate.Limit(evalsPerSecond)
	}
	return &Session{
		eval:    eval,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.Named("sandbox"),
	}
}

// Evaluate runs one script, honoring the session's serialization and rate
// discipline.
func (s *Session) Evaluate(ctx context.Context, script string) (any, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	result, err := s.eval.Evaluate(ctx, script)
	if err != nil {
		s.logger.Debug("script evaluation failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, err
	}
	return result, nil
}

// Unwrap exposes the underlying Evaluator, for callers that need to probe
// for the optional Navigator/Capturer capabilities.
func (s *Session) Unwrap() Evaluator { return s.eval }
