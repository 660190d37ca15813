// internal/extract/chain.go
package extract

import (
	"context"

	"go.uber.org/zap"

	"github.com/halcyonforge/webpilot/api/schemas"
)

// Extract runs the basic profile: try each selector in order, return on
// the first element found, fall back to the chain's script when provided.
// Non-findability is a typed result, not an error.
func (e *Engine) Extract(ctx context.Context, chain schemas.SelectorChain) (schemas.ExtractionResult, error) {
	var result schemas.ExtractionResult

	for i, selector := range chain.Selectors {
		value, found, err := e.resolveSelector(ctx, selector)
		if err != nil {
			return result, err
		}
		result.Attempts = i + 1
		if !found {
			continue
		}
		result.Success = true
		result.SelectorUsed = selector
		result.WasFallback = i > 0
		result.Value = applyTransform(value, chain.Transform)
		return result, nil
	}

	if chain.FallbackScript != "" {
		result.Attempts++
		v, err := e.eval.Evaluate(ctx, chain.FallbackScript)
		if err != nil {
			e.logger.Debug("fallback script failed", zap.Error(err))
			return result, nil
		}
		if v != nil {
			result.Success = true
			result.WasFallback = true
			if s, ok := v.(string); ok {
				result.Value = applyTransform(s, chain.Transform)
			} else {
				result.Value = v
			}
			return result, nil
		}
	}

	return result, nil
}
