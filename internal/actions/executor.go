// internal/actions/executor.go

// Package actions translates the protocol's page-action vocabulary into
// injected scripts and normalizes sandbox results into typed outcomes.
package actions

import (
	"fmt"
	"time"

	"context"

	"go.uber.org/zap"

	"github.com/halcyonforge/webpilot/api/schemas"
	"github.com/halcyonforge/webpilot/internal/clock"
	"github.com/halcyonforge/webpilot/internal/sandbox"
)

// Executor runs page actions through the sandbox. Expected non-findability
// is returned as a typed AutomationError; only malformed sandbox responses
// surface as plain errors.
type Executor struct {
	eval   sandbox.Evaluator
	clk    clock.Clock
	logger *zap.Logger
}

// New builds an Executor. A nil clock defaults to the real clock.
func New(eval sandbox.Evaluator, clk clock.Clock, logger *zap.Logger) *Executor {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{eval: eval, clk: clk, logger: logger.Named("actions")}
}

// runAction executes a {success, error?}-shaped script and maps its
// outcome. target names the element for error reporting.
func (e *Executor) runAction(ctx context.Context, script, target string) (map[string]any, error) {
	v, err := e.eval.Evaluate(ctx, script)
	if err != nil {
		return nil, schemas.NewError(schemas.ErrScriptExecution, "sandbox: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, schemas.NewError(schemas.ErrScriptExecution, "malformed sandbox result: %T", v)
	}
	if success, _ := m["success"].(bool); success {
		return m, nil
	}
	switch m["error"] {
	case errNotFound:
		return nil, schemas.ElementNotFound(target)
	case errNoEditable:
		return nil, schemas.NoEditableElement()
	default:
		return nil, schemas.NewError(schemas.ErrScriptExecution, "action failed: %v", m["error"])
	}
}

// Click clicks the first element matching the selector.
func (e *Executor) Click(ctx context.Context, selector string) error {
	_, err := e.runAction(ctx, clickScript(selector), selector)
	return err
}

// DoubleClick dispatches a dblclick on the first matching element.
func (e *Executor) DoubleClick(ctx context.Context, selector string) error {
	_, err := e.runAction(ctx, doubleClickScript(selector), selector)
	return err
}

// ClickText clicks the first interactive element whose visible text
// contains text.
func (e *Executor) ClickText(ctx context.Context, text string) error {
	_, err := e.runAction(ctx, clickTextScript(text), fmt.Sprintf("text:%s", text))
	return err
}

// Fill sets an input's value and fires input/change events.
func (e *Executor) Fill(ctx context.Context, selector, value string) error {
	_, err := e.runAction(ctx, fillScript(selector, value), selector)
	return err
}

// Type appends text to the element that currently has input focus.
func (e *Executor) Type(ctx context.Context, text string) error {
	_, err := e.runAction(ctx, typeScript(text), "activeElement")
	return err
}

// Press synthesizes a key press; Enter additionally attempts form submit.
func (e *Executor) Press(ctx context.Context, key string) error {
	_, err := e.runAction(ctx, pressScript(key), "activeElement")
	return err
}

// Hover moves a synthetic pointer over the element.
func (e *Executor) Hover(ctx context.Context, selector string) error {
	_, err := e.runAction(ctx, hoverScript(selector), selector)
	return err
}

// ScrollIntoView centers the element in the viewport.
func (e *Executor) ScrollIntoView(ctx context.Context, selector string) error {
	_, err := e.runAction(ctx, scrollIntoViewScript(selector), selector)
	return err
}

// ScrollBy scrolls the window by the given deltas.
func (e *Executor) ScrollBy(ctx context.Context, dx, dy int) error {
	_, err := e.runAction(ctx, scrollByScript(dx, dy), "window")
	return err
}

// Focus focuses the element.
func (e *Executor) Focus(ctx context.Context, selector string) error {
	_, err := e.runAction(ctx, focusScript(selector), selector)
	return err
}

// QuerySelector returns basic info about the first matching element, or
// nil when nothing matches. Non-matching is not an error for queries.
func (e *Executor) QuerySelector(ctx context.Context, selector string) (map[string]any, error) {
	v, err := e.eval.Evaluate(ctx, querySelectorScript(selector))
	if err != nil {
		return nil, schemas.NewError(schemas.ErrScriptExecution, "sandbox: %v", err)
	}
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, schemas.NewError(schemas.ErrScriptExecution, "malformed query result: %T", v)
	}
	return m, nil
}

// QuerySelectorAll returns info for up to limit matching elements.
func (e *Executor) QuerySelectorAll(ctx context.Context, selector string, limit int) ([]any, error) {
	if limit <= 0 {
		limit = 100
	}
	v, err := e.eval.Evaluate(ctx, querySelectorAllScript(selector, limit))
	if err != nil {
		return nil, schemas.NewError(schemas.ErrScriptExecution, "sandbox: %v", err)
	}
	list, _ := v.([]any)
	return list, nil
}

// Exists reports whether the selector resolves at all.
func (e *Executor) Exists(ctx context.Context, selector string) (bool, error) {
	v, err := e.eval.Evaluate(ctx, existsScript(selector))
	if err != nil {
		return false, schemas.NewError(schemas.ErrScriptExecution, "sandbox: %v", err)
	}
	b, _ := v.(bool)
	return b, nil
}

// Count counts elements matching the selector.
func (e *Executor) Count(ctx context.Context, selector string) (int, error) {
	v, err := e.eval.Evaluate(ctx, countScript(selector))
	if err != nil {
		return 0, schemas.NewError(schemas.ErrScriptExecution, "sandbox: %v", err)
	}
	return asInt(v), nil
}

// GetText returns the trimmed text content of the element, or "" when the
// selector does not resolve.
func (e *Executor) GetText(ctx context.Context, selector string) (string, error) {
	v, err := e.eval.Evaluate(ctx, getTextScript(selector))
	if err != nil {
		return "", schemas.NewError(schemas.ErrScriptExecution, "sandbox: %v", err)
	}
	s, _ := v.(string)
	return s, nil
}

// HasText reports whether the page body contains text (case-insensitive).
func (e *Executor) HasText(ctx context.Context, text string) (bool, error) {
	v, err := e.eval.Evaluate(ctx, hasTextScript(text))
	if err != nil {
		return false, schemas.NewError(schemas.ErrScriptExecution, "sandbox: %v", err)
	}
	b, _ := v.(bool)
	return b, nil
}

// GetURL returns the page's current location.
func (e *Executor) GetURL(ctx context.Context) (string, error) {
	v, err := e.eval.Evaluate(ctx, "window.location.href")
	if err != nil {
		return "", schemas.NewError(schemas.ErrScriptExecution, "sandbox: %v", err)
	}
	s, _ := v.(string)
	return s, nil
}

// GetTitle returns the document title.
func (e *Executor) GetTitle(ctx context.Context) (string, error) {
	v, err := e.eval.Evaluate(ctx, "document.title")
	if err != nil {
		return "", schemas.NewError(schemas.ErrScriptExecution, "sandbox: %v", err)
	}
	s, _ := v.(string)
	return s, nil
}

// GetCookies reads the page's non-HttpOnly cookies.
func (e *Executor) GetCookies(ctx context.Context) ([]schemas.Cookie, error) {
	v, err := e.eval.Evaluate(ctx, getCookiesScript())
	if err != nil {
		return nil, schemas.NewError(schemas.ErrScriptExecution, "sandbox: %v", err)
	}
	list, _ := v.([]any)
	cookies := make([]schemas.Cookie, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		value, _ := m["value"].(string)
		cookies = append(cookies, schemas.Cookie{Name: name, Value: value})
	}
	return cookies, nil
}

// SetCookies installs cookies into the page.
func (e *Executor) SetCookies(ctx context.Context, cookies []schemas.Cookie) error {
	for _, c := range cookies {
		if _, err := e.runAction(ctx, setCookieScript(c.Name, c.Value, c.Path), c.Name); err != nil {
			return err
		}
	}
	return nil
}

// DeleteCookies expires every cookie visible to the page.
func (e *Executor) DeleteCookies(ctx context.Context) error {
	_, err := e.runAction(ctx, deleteCookiesScript(), "cookies")
	return err
}

// Evaluate passes a raw script through to the sandbox.
func (e *Executor) Evaluate(ctx context.Context, script string) (any, error) {
	v, err := e.eval.Evaluate(ctx, script)
	if err != nil {
		return nil, schemas.NewError(schemas.ErrScriptExecution, "sandbox: %v", err)
	}
	return v, nil
}

// WaitForSelectorInterval is the poll spacing for WaitForSelector.
const WaitForSelectorInterval = 100 * time.Millisecond

// WaitForSelector polls until the selector resolves or the timeout
// elapses. The loop re-checks wall-clock time, not iteration count, so it
// terminates under slow sandboxes too.
func (e *Executor) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	deadline := e.clk.Now().Add(timeout)
	for {
		found, err := e.Exists(ctx, selector)
		if err != nil {
			return err
		}
		if found {
			return nil
		}
		if !e.clk.Now().Before(deadline) {
			return schemas.NewError(schemas.ErrTimeout,
				"selector %q did not appear within %v", selector, timeout)
		}
		if err := e.clk.Sleep(ctx, WaitForSelectorInterval); err != nil {
			return schemas.NewError(schemas.ErrTimeout, "selector wait canceled: %v", err)
		}
	}
}

func asInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	default:
		return 0
	}
}
