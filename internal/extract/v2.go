// internal/extract/v2.go
package extract

import (
	"context"

	"go.uber.org/zap"

	"github.com/halcyonforge/webpilot/api/schemas"
)

// ExtractV2 runs the validated profile, layered strictly above the basic
// chain walk:
//
//  1. Page preconditions are evaluated first; a failing page returns
//     immediately with confidence 0 and no selector is ever queried.
//  2. Chain tiers carry fixed confidences (0.95 / 0.85 / 0.75).
//  3. A failed value validation halves confidence and records the message
//     but still returns the value, degraded rather than discarded.
//  4. An exhausted chain falls back to ranked regex candidates; base
//     confidence rewards corroboration (0.50 x best score with two or more
//     candidates, 0.35 x with one).
//
// The confidence ordering across tiers is a total order and holds for any
// validation state.
func (e *Engine) ExtractV2(ctx context.Context, chain schemas.SelectorChainV2) (schemas.ExtractionResultV2, error) {
	pageResult, err := e.validatePage(ctx, chain.PageRules)
	if err != nil {
		return schemas.ExtractionResultV2{Method: schemas.MethodFailed}, err
	}
	if !pageResult.Passed {
		e.logger.Debug("page validation rejected extraction",
			zap.Strings("failedChecks", pageResult.FailedChecks))
		return schemas.ExtractionResultV2{
			Confidence:       0,
			Method:           schemas.MethodFailed,
			ValidationErrors: []string{"page validation failed"},
			PageValidation:   pageResult,
		}, nil
	}

	result := schemas.ExtractionResultV2{PageValidation: pageResult}

	for i, selector := range chain.Selectors {
		raw, found, err := e.resolveSelector(ctx, selector)
		if err != nil {
			return result, err
		}
		if !found {
			continue
		}
		value := applyTransform(raw, chain.Transform)
		result.Value = value
		result.SelectorUsed = selector
		result.Confidence = schemas.TierConfidence(i)
		if i == 0 {
			result.Method = schemas.MethodPrimarySelector
		} else {
			result.Method = schemas.MethodFallbackSelector
		}
		applyValuePenalty(&result, chain.Validation)
		return result, nil
	}

	if chain.RegexFallback != "" {
		done, err := e.regexFallback(ctx, chain, &result)
		if err != nil {
			return result, err
		}
		if done {
			return result, nil
		}
	}

	result.Confidence = 0
	result.Method = schemas.MethodFailed
	result.ValidationErrors = append(result.ValidationErrors, "no selector or fallback matched")
	return result, nil
}

// regexFallback fills result from ranked candidates. Returns false when no
// candidate matched.
func (e *Engine) regexFallback(ctx context.Context, chain schemas.SelectorChainV2, result *schemas.ExtractionResultV2) (bool, error) {
	text, err := e.pageText(ctx)
	if err != nil {
		return false, err
	}
	candidates, err := extractCandidates(text, chain.RegexFallback, chain.Ranking)
	if err != nil {
		return false, err
	}
	if len(candidates) == 0 {
		return false, nil
	}

	best := candidates[0]
	if len(candidates) >= 2 {
		result.Method = schemas.MethodRegexRanked
		result.Confidence = schemas.RegexRankedBase * best.Score
	} else {
		result.Method = schemas.MethodRegexFirst
		result.Confidence = schemas.RegexFirstBase * best.Score
	}
	result.Value = applyTransform(best.Value, chain.Transform)

	if len(candidates) > maxSurfacedCandidates {
		candidates = candidates[:maxSurfacedCandidates]
	}
	result.Candidates = candidates

	applyValuePenalty(result, chain.Validation)
	return true, nil
}

// applyValuePenalty halves confidence and records messages when the value
// rules reject the extracted value.
func applyValuePenalty(result *schemas.ExtractionResultV2, rules *schemas.ValueValidation) {
	errs := validateValue(result.Value, rules)
	if len(errs) == 0 {
		return
	}
	result.Confidence /= 2
	result.ValidationErrors = append(result.ValidationErrors, errs...)
}
