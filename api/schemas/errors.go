// api/schemas/errors.go
package schemas

import (
	"errors"
	"fmt"
)

// ErrorCode classifies automation failures for protocol surfacing. Expected
// non-findability (a selector that does not resolve, a chain that exhausts)
// travels as a typed result, not a Go panic; only these codes cross the
// protocol boundary.
type ErrorCode string

const (
	ErrInvalidInput           ErrorCode = "INVALID_INPUT"
	ErrElementNotFound        ErrorCode = "ELEMENT_NOT_FOUND"
	ErrNoEditableElement      ErrorCode = "NO_EDITABLE_ELEMENT"
	ErrTimeout                ErrorCode = "TIMEOUT"
	ErrScriptExecution        ErrorCode = "SCRIPT_EXECUTION_ERROR"
	ErrSelectorChainExhausted ErrorCode = "SELECTOR_CHAIN_EXHAUSTED"
	ErrValidationFailed       ErrorCode = "VALIDATION_FAILED"
	ErrTransport              ErrorCode = "TRANSPORT_ERROR"
)

// AutomationError is the typed failure carried through results and
// responses.
type AutomationError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *AutomationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds an AutomationError with a formatted message.
func NewError(code ErrorCode, format string, args ...any) *AutomationError {
	return &AutomationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ElementNotFound reports that a selector did not resolve to an element.
func ElementNotFound(selector string) *AutomationError {
	return NewError(ErrElementNotFound, "element not found: %s", selector)
}

// NoEditableElement reports that no focused element accepts text input.
func NoEditableElement() *AutomationError {
	return NewError(ErrNoEditableElement, "no editable element has focus")
}

// CodeOf extracts the error code from err, or ErrScriptExecution for
// untyped errors bubbling out of the sandbox.
func CodeOf(err error) ErrorCode {
	var ae *AutomationError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ErrScriptExecution
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
