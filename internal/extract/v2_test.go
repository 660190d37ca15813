// internal/extract/v2_test.go
package extract

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonforge/webpilot/api/schemas"
)

func floatPtr(f float64) *float64 { return &f }

// pageEval serves the page-state script, selector scripts and the page
// text script from one fake page description.
type fakePage struct {
	url       string
	title     string
	text      string
	selectors map[string]string
}

func pageEval(p fakePage) *fakeEval {
	f := &fakeEval{}
	f.fn = func(script string) (any, error) {
		switch {
		case strings.Contains(script, "contentLength"):
			return map[string]any{
				"url":           p.url,
				"title":         p.title,
				"contentLength": float64(len(p.text)),
				"required":      []any{},
				"forbidden":     []any{},
			}, nil
		case strings.Contains(script, "innerText"):
			return p.text, nil
		default:
			for sel, v := range p.selectors {
				if strings.Contains(script, `"`+sel+`"`) {
					return v, nil
				}
			}
			return nil, nil
		}
	}
	return f
}

func TestExtractV2(t *testing.T) {
	t.Run("TierConfidences", func(t *testing.T) {
		t.Parallel()
		cases := []struct {
			name       string
			selectors  map[string]string
			wantSel    string
			wantConf   float64
			wantMethod schemas.ExtractionMethod
		}{
			{"Primary", map[string]string{"#a": "v"}, "#a", 0.95, schemas.MethodPrimarySelector},
			{"Secondary", map[string]string{"#b": "v"}, "#b", 0.85, schemas.MethodFallbackSelector},
			{"Tertiary", map[string]string{"#c": "v"}, "#c", 0.75, schemas.MethodFallbackSelector},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				engine := New(pageEval(fakePage{selectors: tc.selectors}), nil)
				result, err := engine.ExtractV2(context.Background(), schemas.SelectorChainV2{
					SelectorChain: schemas.SelectorChain{Selectors: []string{"#a", "#b", "#c"}},
				})
				require.NoError(t, err)
				assert.Equal(t, tc.wantSel, result.SelectorUsed)
				assert.Equal(t, tc.wantConf, result.Confidence)
				assert.Equal(t, tc.wantMethod, result.Method)
				assert.True(t, result.IsReliable())
			})
		}
	})

	t.Run("PageValidationShortCircuits", func(t *testing.T) {
		t.Parallel()
		eval := pageEval(fakePage{
			url:       "https://example.com/verify",
			title:     "Captcha Check",
			text:      strings.Repeat("x", 500),
			selectors: map[string]string{"#price": "19.99"},
		})
		engine := New(eval, nil)

		result, err := engine.ExtractV2(context.Background(), schemas.SelectorChainV2{
			SelectorChain: schemas.SelectorChain{Selectors: []string{"#price"}},
			PageRules: &schemas.PageValidationRules{
				TitleNotContains: []string{"captcha"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, float64(0), result.Confidence)
		assert.Equal(t, schemas.MethodFailed, result.Method)
		assert.Equal(t, []string{"page validation failed"}, result.ValidationErrors)
		assert.Contains(t, result.PageValidation.FailedChecks, "title_not_contains:captcha")
		assert.False(t, result.IsReliable())
		assert.False(t, result.IsUsable())
		assert.Len(t, eval.calls, 1, "no selector may be queried on a failed page")
	})

	t.Run("RegexRankedFallback", func(t *testing.T) {
		t.Parallel()
		engine := New(pageEval(fakePage{
			text: "Subtotal 5.00 ... Total due today: 42.50",
		}), nil)

		result, err := engine.ExtractV2(context.Background(), schemas.SelectorChainV2{
			SelectorChain: schemas.SelectorChain{Selectors: []string{"#total"}},
			RegexFallback: `\d+\.\d\d`,
			Ranking: &schemas.CandidateRankingConfig{
				PreferredMin:  floatPtr(10),
				PreferredMax:  floatPtr(100),
				PreferPhrases: []schemas.ContextPhrase{{Phrase: "total", Delta: 0.15}},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, schemas.MethodRegexRanked, result.Method)
		assert.Equal(t, "42.50", result.Value)
		require.NotEmpty(t, result.Candidates)
		best := result.Candidates[0]
		assert.Equal(t, "42.50", best.Value)
		// base 0.50 + range 0.30 + "total" phrase 0.15 = 0.95
		assert.InDelta(t, 0.95, best.Score, 1e-9)
		assert.InDelta(t, schemas.RegexRankedBase*best.Score, result.Confidence, 1e-9)
		assert.True(t, result.IsReliable() == (result.Confidence >= schemas.ReliableThreshold))
	})

	t.Run("RegexFirstSingleMatch", func(t *testing.T) {
		t.Parallel()
		engine := New(pageEval(fakePage{text: "Price: 42.50"}), nil)

		result, err := engine.ExtractV2(context.Background(), schemas.SelectorChainV2{
			SelectorChain: schemas.SelectorChain{Selectors: []string{"#total"}},
			RegexFallback: `\d+\.\d\d`,
		})
		require.NoError(t, err)
		assert.Equal(t, schemas.MethodRegexFirst, result.Method)
		require.Len(t, result.Candidates, 1)
		assert.InDelta(t, schemas.RegexFirstBase*result.Candidates[0].Score, result.Confidence, 1e-9)
		assert.False(t, result.IsReliable(), "an uncorroborated regex match never clears the threshold")
	})

	t.Run("ValuePenaltyHalvesConfidence", func(t *testing.T) {
		t.Parallel()
		engine := New(pageEval(fakePage{selectors: map[string]string{"#price": "free shipping"}}), nil)

		result, err := engine.ExtractV2(context.Background(), schemas.SelectorChainV2{
			SelectorChain: schemas.SelectorChain{Selectors: []string{"#price"}},
			Validation:    &schemas.ValueValidation{Type: "number"},
		})
		require.NoError(t, err)
		assert.Equal(t, "free shipping", result.Value, "degraded, not discarded")
		assert.InDelta(t, 0.475, result.Confidence, 1e-9)
		assert.NotEmpty(t, result.ValidationErrors)
		assert.False(t, result.IsReliable())
		assert.True(t, result.IsUsable())
	})

	t.Run("Exhausted", func(t *testing.T) {
		t.Parallel()
		engine := New(pageEval(fakePage{text: "no numbers here"}), nil)

		result, err := engine.ExtractV2(context.Background(), schemas.SelectorChainV2{
			SelectorChain: schemas.SelectorChain{Selectors: []string{"#a"}},
			RegexFallback: `\d+\.\d\d`,
		})
		require.NoError(t, err)
		assert.Equal(t, schemas.MethodFailed, result.Method)
		assert.Equal(t, float64(0), result.Confidence)
		assert.Contains(t, result.ValidationErrors, "no selector or fallback matched")
	})

	t.Run("ConfidenceTotalOrder", func(t *testing.T) {
		t.Parallel()
		// Any selector tier, even halved by validation, outranks a regex
		// fallback capped at 0.50.
		assert.Greater(t, schemas.ConfidenceTertiary/2, 0.0)
		assert.Greater(t, schemas.ConfidencePrimary, schemas.ConfidenceSecondary)
		assert.Greater(t, schemas.ConfidenceSecondary, schemas.ConfidenceTertiary)
		assert.Greater(t, schemas.ConfidenceTertiary, schemas.RegexRankedBase)
		assert.Greater(t, schemas.RegexRankedBase, schemas.RegexFirstBase)
	})
}
