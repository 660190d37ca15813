// internal/extract/transform.go
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/halcyonforge/webpilot/api/schemas"
)

var numericPattern = regexp.MustCompile(`[-+]?\d[\d,]*\.?\d*`)

// applyTransform post-processes an extracted string. The numeric transform
// returns a float64; everything else stays a string.
func applyTransform(value string, t schemas.Transform) any {
	switch t {
	case schemas.TransformTrim:
		return strings.TrimSpace(value)
	case schemas.TransformFirstLine:
		line, _, _ := strings.Cut(strings.TrimSpace(value), "\n")
		return strings.TrimSpace(line)
	case schemas.TransformNumeric:
		if n, ok := parseNumeric(value); ok {
			return n
		}
		return value
	default:
		return value
	}
}

// parseNumeric pulls the first number out of free-form text, tolerating
// thousands separators ("1,299.00").
func parseNumeric(s string) (float64, bool) {
	match := numericPattern.FindString(s)
	if match == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
