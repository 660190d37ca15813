// internal/extract/engine.go

// Package extract resolves values from pages through ordered selector
// chains. The basic profile walks the chain and reports which tier
// matched; the validated (V2) profile layers whole-page preconditions,
// value validation, confidence scoring and a ranked regex fallback on top.
package extract

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/halcyonforge/webpilot/api/schemas"
	"github.com/halcyonforge/webpilot/internal/sandbox"
)

// Engine issues one sandbox round-trip per resolution tier.
type Engine struct {
	eval   sandbox.Evaluator
	logger *zap.Logger
}

// New builds an Engine.
func New(eval sandbox.Evaluator, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{eval: eval, logger: logger.Named("extract")}
}

// extractionScript pulls a value out of the first element matching the
// selector: the input value when present, the trimmed text content
// otherwise. Returns null when the selector does not resolve.
func extractionScript(selector string) string {
	return fmt.Sprintf(`(function(){
	const el = document.querySelector(%s);
	if (!el) return null;
	if (el.value !== undefined && el.value !== null && String(el.value) !== '') return String(el.value);
	return (el.textContent || '').trim();
})()`, sandbox.JSString(selector))
}

// pageTextScript returns the page's visible-ish text for regex fallback.
const pageTextScript = `(function(){
	const b = document.body;
	if (!b) return '';
	return (b.innerText !== undefined ? b.innerText : b.textContent) || '';
})()`

// resolveSelector runs one chain tier. found is false when the selector
// did not resolve; an error means the sandbox itself failed.
func (e *Engine) resolveSelector(ctx context.Context, selector string) (value string, found bool, err error) {
	v, err := e.eval.Evaluate(ctx, extractionScript(selector))
	if err != nil {
		return "", false, schemas.NewError(schemas.ErrScriptExecution, "sandbox: %v", err)
	}
	if v == nil {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, schemas.NewError(schemas.ErrScriptExecution, "malformed extraction result: %T", v)
	}
	return s, true, nil
}

func (e *Engine) pageText(ctx context.Context) (string, error) {
	v, err := e.eval.Evaluate(ctx, pageTextScript)
	if err != nil {
		return "", schemas.NewError(schemas.ErrScriptExecution, "sandbox: %v", err)
	}
	s, _ := v.(string)
	return s, nil
}
