// internal/extract/validate.go
package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/halcyonforge/webpilot/api/schemas"
	"github.com/halcyonforge/webpilot/internal/sandbox"
)

// pageStateScript gathers, in one round-trip, everything the page
// precondition rules need: location, title, content length, and presence
// of the required/forbidden selector sets.
func pageStateScript(required, forbidden []string) string {
	return fmt.Sprintf(`(function(){
	const present = sels => sels.map(s => { try { return document.querySelector(s) !== null; } catch(e) { return false; } });
	return {
		url: window.location.href,
		title: document.title,
		contentLength: (document.body && document.body.textContent) ? document.body.textContent.trim().length : 0,
		required: present(%s),
		forbidden: present(%s)
	};
})()`, sandbox.JSValue(required), sandbox.JSValue(forbidden))
}

// validatePage evaluates whole-page preconditions. A failed page never
// gets a selector queried against it.
func (e *Engine) validatePage(ctx context.Context, rules *schemas.PageValidationRules) (schemas.PageValidationResult, error) {
	if rules == nil {
		return schemas.PageValidationResult{Passed: true}, nil
	}

	v, err := e.eval.Evaluate(ctx, pageStateScript(rules.RequiredElements, rules.ForbiddenElements))
	if err != nil {
		return schemas.PageValidationResult{}, schemas.NewError(schemas.ErrScriptExecution, "page validation: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return schemas.PageValidationResult{}, schemas.NewError(schemas.ErrScriptExecution, "malformed page state: %T", v)
	}

	url, _ := m["url"].(string)
	title, _ := m["title"].(string)
	contentLength := toInt(m["contentLength"])
	required := toBools(m["required"])
	forbidden := toBools(m["forbidden"])

	var failed []string
	lowerURL := strings.ToLower(url)
	lowerTitle := strings.ToLower(title)

	for _, want := range rules.URLContains {
		if !strings.Contains(lowerURL, strings.ToLower(want)) {
			failed = append(failed, "url_contains:"+want)
		}
	}
	for _, avoid := range rules.URLNotContains {
		if strings.Contains(lowerURL, strings.ToLower(avoid)) {
			failed = append(failed, "url_not_contains:"+avoid)
		}
	}
	for _, want := range rules.TitleContains {
		if !strings.Contains(lowerTitle, strings.ToLower(want)) {
			failed = append(failed, "title_contains:"+want)
		}
	}
	for _, avoid := range rules.TitleNotContains {
		if strings.Contains(lowerTitle, strings.ToLower(avoid)) {
			failed = append(failed, "title_not_contains:"+avoid)
		}
	}
	for i, sel := range rules.RequiredElements {
		if i >= len(required) || !required[i] {
			failed = append(failed, "required_element:"+sel)
		}
	}
	for i, sel := range rules.ForbiddenElements {
		if i < len(forbidden) && forbidden[i] {
			failed = append(failed, "forbidden_element:"+sel)
		}
	}
	if rules.MinContentLength > 0 && contentLength < rules.MinContentLength {
		failed = append(failed, fmt.Sprintf("min_content_length:%d<%d", contentLength, rules.MinContentLength))
	}

	return schemas.PageValidationResult{Passed: len(failed) == 0, FailedChecks: failed}, nil
}

// validateValue checks an extracted value against the chain's value rules.
// Returned messages degrade confidence but never discard the value.
func validateValue(value any, rules *schemas.ValueValidation) []string {
	if rules == nil {
		return nil
	}
	var errs []string

	str := fmt.Sprintf("%v", value)
	num, isNum := value.(float64)
	if !isNum {
		num, isNum = parseNumeric(str)
	}

	switch rules.Type {
	case "number":
		if !isNum {
			errs = append(errs, "expected a numeric value")
		}
	case "string":
		if _, ok := value.(string); !ok {
			errs = append(errs, "expected a string value")
		}
	}

	if rules.MinLength > 0 && len(str) < rules.MinLength {
		errs = append(errs, fmt.Sprintf("length %d below minimum %d", len(str), rules.MinLength))
	}
	if rules.MaxLength > 0 && len(str) > rules.MaxLength {
		errs = append(errs, fmt.Sprintf("length %d above maximum %d", len(str), rules.MaxLength))
	}
	if rules.Min != nil && (!isNum || num < *rules.Min) {
		errs = append(errs, fmt.Sprintf("value below minimum %v", *rules.Min))
	}
	if rules.Max != nil && (!isNum || num > *rules.Max) {
		errs = append(errs, fmt.Sprintf("value above maximum %v", *rules.Max))
	}

	lower := strings.ToLower(str)
	for _, want := range rules.MustContain {
		if !strings.Contains(lower, strings.ToLower(want)) {
			errs = append(errs, "missing required substring: "+want)
		}
	}
	for _, avoid := range rules.MustExclude {
		if strings.Contains(lower, strings.ToLower(avoid)) {
			errs = append(errs, "contains forbidden substring: "+avoid)
		}
	}
	if rules.Pattern != "" {
		re, err := regexp.Compile(rules.Pattern)
		if err != nil {
			errs = append(errs, "invalid validation pattern: "+rules.Pattern)
		} else if !re.MatchString(str) {
			errs = append(errs, "value does not match pattern: "+rules.Pattern)
		}
	}
	return errs
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

func toBools(v any) []bool {
	list, _ := v.([]any)
	out := make([]bool, len(list))
	for i, item := range list {
		out[i], _ = item.(bool)
	}
	return out
}
