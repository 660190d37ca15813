// api/schemas/command.go
package schemas

import (
	"encoding/json"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// codec is the shared JSON codec for the command protocol. jsoniter is
// drop-in compatible with encoding/json but considerably faster for the
// small, high-frequency payloads the protocol exchanges.
var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Method identifies a command protocol operation.
type Method string

const (
	// Navigation.
	MethodGoto              Method = "goto"
	MethodReload            Method = "reload"
	MethodGoBack            Method = "goBack"
	MethodGoForward         Method = "goForward"
	MethodGetURL            Method = "getURL"
	MethodGetTitle          Method = "getTitle"
	MethodWaitForNavigation Method = "waitForNavigation"

	// Page actions.
	MethodClick          Method = "click"
	MethodDoubleClick    Method = "doubleClick"
	MethodType           Method = "type"
	MethodFill           Method = "fill"
	MethodPress          Method = "press"
	MethodHover          Method = "hover"
	MethodScrollIntoView Method = "scrollIntoView"
	MethodScroll         Method = "scroll"
	MethodFocus          Method = "focus"
	MethodClickText      Method = "clickText"

	// Queries and waiting.
	MethodQuerySelector    Method = "querySelector"
	MethodQuerySelectorAll Method = "querySelectorAll"
	MethodWaitForSelector  Method = "waitForSelector"
	MethodWaitForReady     Method = "waitForReady"
	MethodEvaluate         Method = "evaluate"
	MethodHasText          Method = "hasText"
	MethodGetText          Method = "getText"
	MethodCount            Method = "count"

	// Capture and session state.
	MethodScreenshot    Method = "screenshot"
	MethodGetCookies    Method = "getCookies"
	MethodSetCookies    Method = "setCookies"
	MethodDeleteCookies Method = "deleteCookies"

	// Set-of-Mark labeling.
	MethodMarkElements   Method = "markElements"
	MethodClickMark      Method = "clickMark"
	MethodUnmarkElements Method = "unmarkElements"

	// Selector resolution.
	MethodExtract   Method = "extract"
	MethodExtractV2 Method = "extractV2"

	// Selector reliability cache.
	MethodSelectorLearn  Method = "selectorLearn"
	MethodSelectorRecall Method = "selectorRecall"
	MethodSelectorFail   Method = "selectorFail"
	MethodSelectorClear  Method = "selectorClear"
)

// Command is one protocol request. Identity is the client-generated ID;
// a command is immutable once sent and consumed exactly once by the server.
type Command struct {
	ID     string          `json:"id"`
	Method Method          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
	// TimeoutMs overrides the server's default per-command timeout.
	TimeoutMs int `json:"timeout,omitempty"`
}

// CommandResponse is the single response correlated to a Command by ID.
// Result is a method-specific key-value payload.
type CommandResponse struct {
	ID      string         `json:"id"`
	Success bool           `json:"success"`
	Result  map[string]any `json:"result,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// DecodeParams unmarshals a command's raw params into a typed params struct.
// A missing params object decodes as the zero value, so commands without
// parameters (getURL, reload, ...) need no special casing.
func DecodeParams[T any](cmd Command) (T, error) {
	var params T
	if len(cmd.Params) == 0 {
		return params, nil
	}
	if err := codec.Unmarshal(cmd.Params, &params); err != nil {
		return params, fmt.Errorf("decoding %s params: %w", cmd.Method, err)
	}
	return params, nil
}

// MarshalJSONValue encodes v with the protocol codec.
func MarshalJSONValue(v any) ([]byte, error) { return codec.Marshal(v) }

// UnmarshalJSONValue decodes data with the protocol codec.
func UnmarshalJSONValue(data []byte, v any) error { return codec.Unmarshal(data, v) }

// GotoParams carries the target for a navigation command.
type GotoParams struct {
	URL string `json:"url"`
	// WaitReady, when set, blocks the response until the page readiness
	// detector reports quiescence (or its timeout) after navigation.
	WaitReady bool `json:"waitReady,omitempty"`
}

// SelectorParams is shared by commands addressing a single element.
type SelectorParams struct {
	Selector string `json:"selector"`
}

// FillParams sets an input's value wholesale.
type FillParams struct {
	Selector string `json:"selector"`
	Value    string `json:"value"`
}

// TypeParams types text into the currently focused element.
type TypeParams struct {
	Text string `json:"text"`
}

// PressParams synthesizes a key press on the focused element.
type PressParams struct {
	Key string `json:"key"`
}

// ScrollParams scrolls the window by pixel deltas.
type ScrollParams struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
}

// TextParams is shared by commands addressing elements by visible text.
type TextParams struct {
	Text string `json:"text"`
}

// WaitForSelectorParams waits until a selector resolves.
type WaitForSelectorParams struct {
	Selector  string `json:"selector"`
	TimeoutMs int    `json:"timeoutMs,omitempty"`
}

// WaitForReadyParams tunes the page readiness poll.
type WaitForReadyParams struct {
	TimeoutMs        int    `json:"timeoutMs,omitempty"`
	StabilityMs      int    `json:"stabilityMs,omitempty"`
	RequiredSelector string `json:"requiredSelector,omitempty"`
}

// EvaluateParams runs an arbitrary script in the sandbox.
type EvaluateParams struct {
	Script string `json:"script"`
}

// ScreenshotParams captures the viewport or the full page.
type ScreenshotParams struct {
	FullPage bool `json:"fullPage,omitempty"`
}

// MarkParams selects the Set-of-Mark labeling mode.
type MarkParams struct {
	// ViewportOnly restricts labeling to elements near the current
	// scroll viewport; the default labels the full document.
	ViewportOnly bool `json:"viewportOnly,omitempty"`
}

// ClickMarkParams clicks a previously assigned ordinal label.
type ClickMarkParams struct {
	Label int `json:"label"`
}

// Cookie is one browser cookie, passed through the protocol verbatim.
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain,omitempty"`
	Path     string `json:"path,omitempty"`
	Expires  int64  `json:"expires,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
	HTTPOnly bool   `json:"httpOnly,omitempty"`
}

// SetCookiesParams installs cookies into the page.
type SetCookiesParams struct {
	Cookies []Cookie `json:"cookies"`
}

// ExtractParams runs the basic selector resolution profile.
type ExtractParams struct {
	Chain SelectorChain `json:"chain"`
}

// ExtractV2Params runs the validated, confidence-scored profile.
type ExtractV2Params struct {
	Chain SelectorChainV2 `json:"chain"`
}

// SelectorLearnParams records a successful selector for an action.
type SelectorLearnParams struct {
	Action     string            `json:"action"`
	Selector   string            `json:"selector"`
	URL        string            `json:"url"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// SelectorRecallParams looks up the cached selector for an action.
type SelectorRecallParams struct {
	Action string `json:"action"`
	URL    string `json:"url"`
}

// SelectorFailParams reports that a recalled selector failed.
type SelectorFailParams struct {
	Action   string `json:"action"`
	Selector string `json:"selector"`
	URL      string `json:"url"`
}

// SelectorClearParams drops cached selectors for one domain, or all
// domains when Domain is empty.
type SelectorClearParams struct {
	Domain string `json:"domain,omitempty"`
}
