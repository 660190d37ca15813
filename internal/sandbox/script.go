// internal/sandbox/script.go
package sandbox

import "encoding/json"

// All string interpolation into injected scripts goes through this file.
// Unescaped interpolation is a correctness bug: a selector containing a
// quote or newline must not change the shape of the generated script.

// JSString encodes s as a JavaScript string literal, including the
// surrounding quotes. JSON string encoding is valid JS and escapes quotes,
// backslashes, newlines and control characters.
func JSString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		// json.Marshal of a string cannot fail; keep the generated
		// script syntactically valid regardless.
		return `""`
	}
	return string(b)
}

// JSValue encodes an arbitrary Go value as a JavaScript literal.
func JSValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
