// internal/marks/labeler.go

// Package marks implements Set-of-Mark labeling: every interactive element
// gets a stable ordinal so callers can target it without knowing any
// selector. Ordinals follow a single deterministic sort (top-to-bottom in
// 20px bands, then left-to-right) over the current full-document
// interactive set.
package marks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/halcyonforge/webpilot/api/schemas"
	"github.com/halcyonforge/webpilot/internal/sandbox"
)

// Labeler marks and targets interactive elements through the sandbox.
type Labeler struct {
	eval   sandbox.Evaluator
	logger *zap.Logger
}

// New builds a Labeler.
func New(eval sandbox.Evaluator, logger *zap.Logger) *Labeler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Labeler{eval: eval, logger: logger.Named("marks")}
}

// Mark labels the interactive set and returns it in label order. Prior
// labels are removed first, so re-marking an unchanged DOM is idempotent.
func (l *Labeler) Mark(ctx context.Context, viewportOnly bool) ([]schemas.MarkedElement, error) {
	v, err := l.eval.Evaluate(ctx, markScript(viewportOnly))
	if err != nil {
		return nil, schemas.NewError(schemas.ErrScriptExecution, "mark: %v", err)
	}
	list, ok := v.([]any)
	if !ok {
		return nil, schemas.NewError(schemas.ErrScriptExecution, "malformed mark result: %T", v)
	}

	elements := make([]schemas.MarkedElement, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		elements = append(elements, parseMarked(m))
	}
	l.logger.Debug("marked interactive elements",
		zap.Int("count", len(elements)),
		zap.Bool("viewportOnly", viewportOnly))
	return elements, nil
}

// Unmark removes all labels and outlines.
func (l *Labeler) Unmark(ctx context.Context) error {
	if _, err := l.eval.Evaluate(ctx, unmarkScript); err != nil {
		return schemas.NewError(schemas.ErrScriptExecution, "unmark: %v", err)
	}
	return nil
}

// ClickLabel scrolls the labeled element into view and clicks it. A label
// that no longer resolves (navigation, DOM replacement) fails with
// ElementNotFound rather than silently clicking something else.
func (l *Labeler) ClickLabel(ctx context.Context, label int) error {
	if label < 0 {
		return schemas.NewError(schemas.ErrInvalidInput, "negative label %d", label)
	}
	v, err := l.eval.Evaluate(ctx, clickByLabelScript(label))
	if err != nil {
		return schemas.NewError(schemas.ErrScriptExecution, "clickMark: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return schemas.NewError(schemas.ErrScriptExecution, "malformed clickMark result: %T", v)
	}
	if success, _ := m["success"].(bool); success {
		return nil
	}
	return schemas.ElementNotFound(fmt.Sprintf("mark:%d", label))
}

func parseMarked(m map[string]any) schemas.MarkedElement {
	el := schemas.MarkedElement{
		Label:    toInt(m["label"]),
		Selector: toString(m["selector"]),
		TagName:  toString(m["tagName"]),
		Type:     toString(m["type"]),
		Text:     toString(m["text"]),
		Href:     toString(m["href"]),
	}
	if box, ok := m["boundingBox"].(map[string]any); ok {
		el.BoundingBox = schemas.BoundingBox{
			X:      toFloat(box["x"]),
			Y:      toFloat(box["y"]),
			Width:  toFloat(box["width"]),
			Height: toFloat(box["height"]),
		}
	}
	return el
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
