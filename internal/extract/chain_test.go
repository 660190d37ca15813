// internal/extract/chain_test.go
package extract

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonforge/webpilot/api/schemas"
)

// fakeEval dispatches on script content, which is how the engine's
// generated scripts differ per selector.
type fakeEval struct {
	fn    func(script string) (any, error)
	calls []string
}

func (f *fakeEval) Evaluate(_ context.Context, script string) (any, error) {
	f.calls = append(f.calls, script)
	return f.fn(script)
}

// selectorEval resolves scripts by looking up the JSON-escaped selector
// embedded in them. Selectors absent from the map do not resolve.
func selectorEval(values map[string]string) *fakeEval {
	f := &fakeEval{}
	f.fn = func(script string) (any, error) {
		for sel, v := range values {
			if strings.Contains(script, `"`+sel+`"`) {
				return v, nil
			}
		}
		return nil, nil
	}
	return f
}

func TestExtract(t *testing.T) {
	t.Run("PrimaryHit", func(t *testing.T) {
		t.Parallel()
		engine := New(selectorEval(map[string]string{"#price": "19.99"}), nil)

		result, err := engine.Extract(context.Background(), schemas.SelectorChain{
			Selectors: []string{"#price", ".price"},
		})
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, "19.99", result.Value)
		assert.Equal(t, "#price", result.SelectorUsed)
		assert.False(t, result.WasFallback)
		assert.Equal(t, 1, result.Attempts)
	})

	t.Run("FallbackOrdering", func(t *testing.T) {
		t.Parallel()
		engine := New(selectorEval(map[string]string{".price": "12.00"}), nil)

		result, err := engine.Extract(context.Background(), schemas.SelectorChain{
			Selectors: []string{"#price", ".price", "[data-price]"},
		})
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, ".price", result.SelectorUsed)
		assert.True(t, result.WasFallback)
		assert.Equal(t, 2, result.Attempts, "earlier selectors count as attempts")
	})

	t.Run("ScriptFallback", func(t *testing.T) {
		t.Parallel()
		eval := &fakeEval{}
		eval.fn = func(script string) (any, error) {
			if strings.Contains(script, "customExtractor") {
				return "1,299.00", nil
			}
			return nil, nil
		}
		engine := New(eval, nil)

		result, err := engine.Extract(context.Background(), schemas.SelectorChain{
			Selectors:      []string{"#a", "#b"},
			FallbackScript: "customExtractor()",
			Transform:      schemas.TransformNumeric,
		})
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.True(t, result.WasFallback)
		assert.Equal(t, 3, result.Attempts, "fallback script counts as an attempt")
		assert.Equal(t, 1299.00, result.Value)
	})

	t.Run("Exhausted", func(t *testing.T) {
		t.Parallel()
		engine := New(selectorEval(nil), nil)

		result, err := engine.Extract(context.Background(), schemas.SelectorChain{
			Selectors: []string{"#a", "#b"},
		})
		require.NoError(t, err, "non-findability is not an error")
		assert.False(t, result.Success)
		assert.Equal(t, 2, result.Attempts)
		assert.Nil(t, result.Value)
	})

	t.Run("TransformApplied", func(t *testing.T) {
		t.Parallel()
		engine := New(selectorEval(map[string]string{"#title": "  First line\nSecond line  "}), nil)

		result, err := engine.Extract(context.Background(), schemas.SelectorChain{
			Selectors: []string{"#title"},
			Transform: schemas.TransformFirstLine,
		})
		require.NoError(t, err)
		assert.Equal(t, "First line", result.Value)
	})
}
