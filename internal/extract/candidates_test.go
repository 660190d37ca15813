// internal/extract/candidates_test.go
package extract

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonforge/webpilot/api/schemas"
)

func TestExtractCandidates(t *testing.T) {
	t.Run("InvalidPattern", func(t *testing.T) {
		t.Parallel()
		_, err := extractCandidates("text", `[unclosed`, nil)
		require.Error(t, err)
		assert.True(t, schemas.IsCode(err, schemas.ErrInvalidInput))
	})

	t.Run("FirstMatchBonusOnly", func(t *testing.T) {
		t.Parallel()
		candidates, err := extractCandidates("a 10 b 20 c 30", `\d+`, nil)
		require.NoError(t, err)
		require.Len(t, candidates, 3)

		// Without ranking rules only the first match gets its bonus.
		assert.Equal(t, "10", candidates[0].Value)
		assert.InDelta(t, 0.55, candidates[0].Score, 1e-9)
		assert.InDelta(t, 0.50, candidates[1].Score, 1e-9)
		assert.Contains(t, candidates[0].Reasoning, "base 0.50")
		assert.Contains(t, candidates[0].Reasoning, "first match +0.05")
	})

	t.Run("RangeMembership", func(t *testing.T) {
		t.Parallel()
		ranking := &schemas.CandidateRankingConfig{
			PreferredMin: floatPtr(100),
			PreferredMax: floatPtr(999),
		}
		candidates, err := extractCandidates("9 then 500", `\d+`, ranking)
		require.NoError(t, err)
		require.Len(t, candidates, 2)

		// 500 is in range (+0.30); 9 is outside (-0.20) despite the
		// first-match bonus.
		assert.Equal(t, "500", candidates[0].Value)
		assert.InDelta(t, 0.80, candidates[0].Score, 1e-9)
		assert.Equal(t, "9", candidates[1].Value)
		assert.InDelta(t, 0.35, candidates[1].Score, 1e-9)
	})

	t.Run("AvoidPhraseDefaultDelta", func(t *testing.T) {
		t.Parallel()
		ranking := &schemas.CandidateRankingConfig{
			AvoidPhrases: []schemas.ContextPhrase{{Phrase: "was"}},
		}
		candidates, err := extractCandidates("was 99", `\d+`, ranking)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		// base 0.50 - avoid 0.25 + first match 0.05.
		assert.InDelta(t, 0.30, candidates[0].Score, 1e-9)
	})

	t.Run("ScoreClamped", func(t *testing.T) {
		t.Parallel()
		ranking := &schemas.CandidateRankingConfig{
			AvoidPhrases: []schemas.ContextPhrase{
				{Phrase: "bad", Delta: 0.9},
				{Phrase: "bad", Delta: 0.9},
			},
		}
		candidates, err := extractCandidates("bad 1", `\d+`, ranking)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, 0.0, candidates[0].Score)
	})

	t.Run("ContextRadius", func(t *testing.T) {
		t.Parallel()
		text := strings.Repeat("a", 200) + "42" + strings.Repeat("b", 200)
		candidates, err := extractCandidates(text, `\d+`, nil)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Len(t, candidates[0].Context, 50+2+50)
	})

	t.Run("ContextStaysValidUTF8", func(t *testing.T) {
		t.Parallel()
		// The context window lands mid-rune on both sides of the match.
		text := strings.Repeat("é", 100) + " 42 " + strings.Repeat("ü", 100)
		candidates, err := extractCandidates(text, `\d+`, nil)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.True(t, utf8.ValidString(candidates[0].Context))
		assert.Contains(t, candidates[0].Context, "42")
	})

	t.Run("StableTieOrdering", func(t *testing.T) {
		t.Parallel()
		candidates, err := extractCandidates("5 then 7 then 9", `\d+`, nil)
		require.NoError(t, err)
		require.Len(t, candidates, 3)
		// Equal scores keep document order.
		assert.Equal(t, 1, candidates[1].Position)
		assert.Equal(t, 2, candidates[2].Position)
	})
}

func TestApplyTransform(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name      string
		value     string
		transform schemas.Transform
		want      any
	}{
		{"None", " raw ", schemas.TransformNone, " raw "},
		{"Trim", "  padded  ", schemas.TransformTrim, "padded"},
		{"FirstLine", "one\ntwo\nthree", schemas.TransformFirstLine, "one"},
		{"Numeric", "$1,299.50 USD", schemas.TransformNumeric, 1299.50},
		{"NumericNegative", "-42", schemas.TransformNumeric, -42.0},
		{"NumericNoMatch", "none", schemas.TransformNumeric, "none"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, applyTransform(tc.value, tc.transform))
		})
	}
}

func TestValidateValue(t *testing.T) {
	t.Parallel()

	t.Run("NilRules", func(t *testing.T) {
		assert.Empty(t, validateValue("anything", nil))
	})

	t.Run("NumericBounds", func(t *testing.T) {
		rules := &schemas.ValueValidation{Type: "number", Min: floatPtr(10), Max: floatPtr(100)}
		assert.Empty(t, validateValue(42.0, rules))
		assert.NotEmpty(t, validateValue(5.0, rules))
		assert.NotEmpty(t, validateValue(500.0, rules))
		assert.NotEmpty(t, validateValue("not a number", rules))
	})

	t.Run("NumericFromString", func(t *testing.T) {
		rules := &schemas.ValueValidation{Type: "number"}
		assert.Empty(t, validateValue("1,299.00", rules), "numeric text passes the type check")
	})

	t.Run("Substrings", func(t *testing.T) {
		rules := &schemas.ValueValidation{
			MustContain: []string{"USD"},
			MustExclude: []string{"error"},
		}
		assert.Empty(t, validateValue("42 usd", rules), "substring checks are case-insensitive")
		assert.NotEmpty(t, validateValue("42 EUR", rules))
		assert.NotEmpty(t, validateValue("USD error", rules))
	})

	t.Run("Pattern", func(t *testing.T) {
		rules := &schemas.ValueValidation{Pattern: `^\d+$`}
		assert.Empty(t, validateValue("123", rules))
		assert.NotEmpty(t, validateValue("12a", rules))
	})
}
