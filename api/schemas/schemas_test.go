// api/schemas/schemas_test.go
package schemas

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	t.Parallel()

	t.Run("CodeOfTyped", func(t *testing.T) {
		err := ElementNotFound("#ghost")
		assert.Equal(t, ErrElementNotFound, CodeOf(err))
		assert.True(t, IsCode(err, ErrElementNotFound))
		assert.Equal(t, "ELEMENT_NOT_FOUND: element not found: #ghost", err.Error())
	})

	t.Run("CodeOfWrapped", func(t *testing.T) {
		err := fmt.Errorf("running action: %w", NoEditableElement())
		assert.Equal(t, ErrNoEditableElement, CodeOf(err))
	})

	t.Run("UntypedFallsBackToScriptExecution", func(t *testing.T) {
		assert.Equal(t, ErrScriptExecution, CodeOf(errors.New("tab crashed")))
	})
}

func TestTierConfidence(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0.95, TierConfidence(0))
	assert.Equal(t, 0.85, TierConfidence(1))
	assert.Equal(t, 0.75, TierConfidence(2))
	assert.Equal(t, 0.75, TierConfidence(9), "every tier past the second shares the tertiary confidence")
}

func TestResultV2Predicates(t *testing.T) {
	t.Parallel()

	passed := PageValidationResult{Passed: true}

	t.Run("Reliable", func(t *testing.T) {
		r := ExtractionResultV2{Value: "x", Confidence: 0.95, PageValidation: passed}
		assert.True(t, r.IsReliable())
		assert.True(t, r.IsUsable())
	})

	t.Run("ThresholdBoundary", func(t *testing.T) {
		r := ExtractionResultV2{Value: "x", Confidence: ReliableThreshold, PageValidation: passed}
		assert.True(t, r.IsReliable())
		r.Confidence = 0.69
		assert.False(t, r.IsReliable())
	})

	t.Run("ValidationErrorsDemoteToUsable", func(t *testing.T) {
		r := ExtractionResultV2{
			Value:            "x",
			Confidence:       0.95,
			ValidationErrors: []string{"value below min"},
			PageValidation:   passed,
		}
		assert.False(t, r.IsReliable())
		assert.True(t, r.IsUsable())
	})

	t.Run("FailedPageIsNeverUsable", func(t *testing.T) {
		r := ExtractionResultV2{Value: "x", Confidence: 0.95}
		assert.False(t, r.IsReliable())
		assert.False(t, r.IsUsable())
	})
}

func TestDecodeParams(t *testing.T) {
	t.Parallel()

	t.Run("MissingParamsIsZeroValue", func(t *testing.T) {
		params, err := DecodeParams[GotoParams](Command{Method: MethodGoto})
		require.NoError(t, err)
		assert.Empty(t, params.URL)
	})

	t.Run("DecodesTyped", func(t *testing.T) {
		cmd := Command{
			Method: MethodFill,
			Params: []byte(`{"selector":"#name","value":"Ada"}`),
		}
		params, err := DecodeParams[FillParams](cmd)
		require.NoError(t, err)
		assert.Equal(t, "#name", params.Selector)
		assert.Equal(t, "Ada", params.Value)
	})

	t.Run("MalformedParams", func(t *testing.T) {
		_, err := DecodeParams[FillParams](Command{Method: MethodFill, Params: []byte(`{`)})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fill")
	})
}
