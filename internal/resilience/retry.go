// internal/resilience/retry.go

// Package resilience wraps page actions with environment-perturbing retry
// strategies and captures diagnostic artifacts when everything fails.
package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/halcyonforge/webpilot/api/schemas"
	"github.com/halcyonforge/webpilot/internal/clock"
	"github.com/halcyonforge/webpilot/internal/sandbox"
)

// Fixed, non-configurable strategy perturbations.
const (
	scrollSettle = 500 * time.Millisecond
	waitSettle   = 2 * time.Second
)

const scrollHalfwayScript = `window.scrollTo(0, document.body.scrollHeight / 2)`

// Action is one retriable unit of work.
type Action func(ctx context.Context) error

// ReloadFunc performs a full navigation reload and awaits its completion.
type ReloadFunc func(ctx context.Context) error

// Policy runs actions under the retry discipline. Capturer may be nil, in
// which case terminal failures produce no artifact bundle.
type Policy struct {
	eval     sandbox.Evaluator
	reload   ReloadFunc
	capturer *ArtifactCapturer
	clk      clock.Clock
	logger   *zap.Logger
}

// NewPolicy builds a Policy. reload may be nil when the surface cannot
// navigate; the reload strategy then degrades to a wait.
func NewPolicy(eval sandbox.Evaluator, reload ReloadFunc, capturer *ArtifactCapturer, clk clock.Clock, logger *zap.Logger) *Policy {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Policy{eval: eval, reload: reload, capturer: capturer, clk: clk, logger: logger.Named("resilience")}
}

// Outcome summarizes one ExecuteWithRetry run.
type Outcome struct {
	Attempts          int
	StrategiesApplied []schemas.RetryStrategy
	Artifacts         *schemas.FailureArtifacts
	Err               error
}

// ExecuteWithRetry runs the action once unconditionally, then applies each
// strategy in order (capped at maxAttempts total attempts), re-running the
// action after each perturbation. The first success short-circuits;
// exhaustion returns the last error only, since later attempts reflect
// current ground truth. Terminal failure triggers artifact capture.
func (p *Policy) ExecuteWithRetry(ctx context.Context, name string, action Action, strategies []schemas.RetryStrategy, maxAttempts int, triedSelectors []string) Outcome {
	if maxAttempts <= 0 {
		maxAttempts = 1 + len(strategies)
	}

	outcome := Outcome{Attempts: 1}
	err := action(ctx)
	if err == nil {
		return outcome
	}

	for _, strategy := range strategies {
		if outcome.Attempts >= maxAttempts {
			break
		}
		if ctx.Err() != nil {
			err = schemas.NewError(schemas.ErrTimeout, "retry loop canceled: %v", ctx.Err())
			break
		}

		p.logger.Debug("applying retry strategy",
			zap.String("action", name),
			zap.String("strategy", string(strategy)),
			zap.Int("attempt", outcome.Attempts),
			zap.Error(err))
		if perturbErr := p.perturb(ctx, strategy); perturbErr != nil {
			p.logger.Debug("retry perturbation failed",
				zap.String("strategy", string(strategy)),
				zap.Error(perturbErr))
		}
		outcome.StrategiesApplied = append(outcome.StrategiesApplied, strategy)

		outcome.Attempts++
		if err = action(ctx); err == nil {
			return outcome
		}
	}

	outcome.Err = err
	if p.capturer != nil {
		outcome.Artifacts = p.capturer.Capture(ctx, name, triedSelectors, err)
	}
	return outcome
}

// perturb applies one strategy's fixed environment change.
func (p *Policy) perturb(ctx context.Context, strategy schemas.RetryStrategy) error {
	switch strategy {
	case schemas.RetryScroll:
		if _, err := p.eval.Evaluate(ctx, scrollHalfwayScript); err != nil {
			return err
		}
		return p.clk.Sleep(ctx, scrollSettle)
	case schemas.RetryWait:
		return p.clk.Sleep(ctx, waitSettle)
	case schemas.RetryReload:
		if p.reload == nil {
			return p.clk.Sleep(ctx, waitSettle)
		}
		return p.reload(ctx)
	case schemas.RetryViewport:
		// Requires a device-level resize; in-sandbox this is a no-op.
		return nil
	default:
		return schemas.NewError(schemas.ErrInvalidInput, "unknown retry strategy %q", strategy)
	}
}
