// internal/client/client.go

// Package client is the Go-side counterpart of the command protocol: it
// correlates requests by generated IDs and exposes typed convenience
// wrappers over the raw command surface.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/halcyonforge/webpilot/api/schemas"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// controlChars matches raw control code points. They are illegal inside
// JSON strings, but foreign pages leak them into result payloads (titles,
// extracted text); scrubbing before decode keeps the response usable.
// Escaped sequences like \n are two ordinary characters and pass through.
var controlChars = regexp.MustCompile(`[\x00-\x1f\x7f-\x9f]`)

// Client talks to one engine endpoint. Safe for sequential use; the
// server serializes script commands regardless.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// New builds a Client for baseURL (e.g. "http://127.0.0.1:8931").
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.Named("client"),
	}
}

// Send issues one command and returns its correlated response. A
// transport-level failure is returned as a TRANSPORT_ERROR; a
// {success:false} response is returned as-is for the caller to inspect.
func (c *Client) Send(ctx context.Context, method schemas.Method, params any, timeoutMs int) (*schemas.CommandResponse, error) {
	cmd := schemas.Command{
		ID:        uuid.NewString(),
		Method:    method,
		TimeoutMs: timeoutMs,
	}
	if params != nil {
		raw, err := codec.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encoding %s params: %w", method, err)
		}
		cmd.Params = raw
	}

	body, err := codec.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encoding command: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/command", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, schemas.NewError(schemas.ErrTransport, "sending %s: %v", method, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, schemas.NewError(schemas.ErrTransport, "reading %s response: %v", method, err)
	}
	var resp schemas.CommandResponse
	if err := codec.Unmarshal(controlChars.ReplaceAll(raw, nil), &resp); err != nil {
		return nil, schemas.NewError(schemas.ErrTransport, "decoding %s response: %v", method, err)
	}
	if resp.ID != "" && resp.ID != cmd.ID {
		return nil, schemas.NewError(schemas.ErrTransport,
			"response id mismatch: sent %s, got %s", cmd.ID, resp.ID)
	}
	c.logger.Debug("command exchanged",
		zap.String("method", string(method)),
		zap.Bool("success", resp.Success))
	return &resp, nil
}

// call sends and converts a failed response into an error.
func (c *Client) call(ctx context.Context, method schemas.Method, params any) (map[string]any, error) {
	resp, err := c.Send(ctx, method, params, 0)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, schemas.NewError(schemas.ErrScriptExecution, "%s failed: %s", method, resp.Error)
	}
	return resp.Result, nil
}

// IsConnected probes the health endpoint.
func (c *Client) IsConnected(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Goto navigates and optionally awaits page readiness.
func (c *Client) Goto(ctx context.Context, url string, waitReady bool) error {
	_, err := c.call(ctx, schemas.MethodGoto, schemas.GotoParams{URL: url, WaitReady: waitReady})
	return err
}

// Click clicks the first element matching the selector.
func (c *Client) Click(ctx context.Context, selector string) error {
	_, err := c.call(ctx, schemas.MethodClick, schemas.SelectorParams{Selector: selector})
	return err
}

// ClickText clicks the first interactive element with matching text.
func (c *Client) ClickText(ctx context.Context, text string) error {
	_, err := c.call(ctx, schemas.MethodClickText, schemas.TextParams{Text: text})
	return err
}

// Fill sets an input's value.
func (c *Client) Fill(ctx context.Context, selector, value string) error {
	_, err := c.call(ctx, schemas.MethodFill, schemas.FillParams{Selector: selector, Value: value})
	return err
}

// TypeText types into the focused element.
func (c *Client) TypeText(ctx context.Context, text string) error {
	_, err := c.call(ctx, schemas.MethodType, schemas.TypeParams{Text: text})
	return err
}

// Press synthesizes a key press on the focused element.
func (c *Client) Press(ctx context.Context, key string) error {
	_, err := c.call(ctx, schemas.MethodPress, schemas.PressParams{Key: key})
	return err
}

// Scroll scrolls the window by pixel deltas.
func (c *Client) Scroll(ctx context.Context, dx, dy int) error {
	_, err := c.call(ctx, schemas.MethodScroll, schemas.ScrollParams{DX: dx, DY: dy})
	return err
}

// Focus gives an element input focus.
func (c *Client) Focus(ctx context.Context, selector string) error {
	_, err := c.call(ctx, schemas.MethodFocus, schemas.SelectorParams{Selector: selector})
	return err
}

// WaitReady blocks until the page readiness detector reports quiescence
// or times out; the result reports which it was.
func (c *Client) WaitReady(ctx context.Context, timeoutMs, stabilityMs int) (bool, error) {
	result, err := c.call(ctx, schemas.MethodWaitForReady, schemas.WaitForReadyParams{
		TimeoutMs:   timeoutMs,
		StabilityMs: stabilityMs,
	})
	if err != nil {
		return false, err
	}
	ready, _ := result["ready"].(bool)
	return ready, nil
}

// HasText reports whether the page contains the text.
func (c *Client) HasText(ctx context.Context, text string) (bool, error) {
	result, err := c.call(ctx, schemas.MethodHasText, schemas.TextParams{Text: text})
	if err != nil {
		return false, err
	}
	found, _ := result["found"].(bool)
	return found, nil
}

// GetText returns the trimmed text content of the element, or "" when the
// selector does not resolve.
func (c *Client) GetText(ctx context.Context, selector string) (string, error) {
	result, err := c.call(ctx, schemas.MethodGetText, schemas.SelectorParams{Selector: selector})
	if err != nil {
		return "", err
	}
	text, _ := result["text"].(string)
	return text, nil
}

// Extract runs the basic selector resolution profile.
func (c *Client) Extract(ctx context.Context, chain schemas.SelectorChain) (*schemas.ExtractionResult, error) {
	result, err := c.call(ctx, schemas.MethodExtract, schemas.ExtractParams{Chain: chain})
	if err != nil {
		return nil, err
	}
	return decodeResult[schemas.ExtractionResult](result)
}

// ExtractV2 runs the validated, confidence-scored profile.
func (c *Client) ExtractV2(ctx context.Context, chain schemas.SelectorChainV2) (*schemas.ExtractionResultV2, error) {
	result, err := c.call(ctx, schemas.MethodExtractV2, schemas.ExtractV2Params{Chain: chain})
	if err != nil {
		return nil, err
	}
	return decodeResult[schemas.ExtractionResultV2](result)
}

// Marks labels interactive elements and returns them.
func (c *Client) Marks(ctx context.Context, viewportOnly bool) ([]schemas.MarkedElement, error) {
	result, err := c.call(ctx, schemas.MethodMarkElements, schemas.MarkParams{ViewportOnly: viewportOnly})
	if err != nil {
		return nil, err
	}
	raw, err := codec.Marshal(result["elements"])
	if err != nil {
		return nil, fmt.Errorf("re-encoding elements: %w", err)
	}
	var elements []schemas.MarkedElement
	if err := codec.Unmarshal(raw, &elements); err != nil {
		return nil, fmt.Errorf("decoding elements: %w", err)
	}
	return elements, nil
}

// ClickMark clicks a previously assigned label.
func (c *Client) ClickMark(ctx context.Context, label int) error {
	_, err := c.call(ctx, schemas.MethodClickMark, schemas.ClickMarkParams{Label: label})
	return err
}

// Evaluate runs a script and returns its value.
func (c *Client) Evaluate(ctx context.Context, script string) (any, error) {
	result, err := c.call(ctx, schemas.MethodEvaluate, schemas.EvaluateParams{Script: script})
	if err != nil {
		return nil, err
	}
	return result["value"], nil
}

// decodeResult round-trips the generic result payload into a typed one.
func decodeResult[T any](m map[string]any) (*T, error) {
	raw, err := codec.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("re-encoding result: %w", err)
	}
	var out T
	if err := codec.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding result: %w", err)
	}
	return &out, nil
}
