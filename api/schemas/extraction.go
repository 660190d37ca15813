// api/schemas/extraction.go
package schemas

// Value transforms applied to an extracted string before it is returned.
type Transform string

const (
	TransformNone      Transform = ""
	TransformTrim      Transform = "trim"
	TransformFirstLine Transform = "first_line"
	TransformNumeric   Transform = "numeric"
)

// SelectorChain is an ordered list of candidate selectors tried in priority
// order, with an optional raw-script fallback once the chain is exhausted.
// Chains are constructed per call and carry no identity.
type SelectorChain struct {
	Selectors      []string  `json:"selectors"`
	FallbackScript string    `json:"fallbackScript,omitempty"`
	Transform      Transform `json:"transform,omitempty"`
}

// SelectorChainV2 extends SelectorChain with a regex fallback, candidate
// ranking, and page/value validation. Superset: any SelectorChain is a
// valid SelectorChainV2.
type SelectorChainV2 struct {
	SelectorChain
	// RegexFallback, when the chain is exhausted, extracts all numeric
	// matches from the page text and ranks them.
	RegexFallback string                  `json:"regexFallback,omitempty"`
	Ranking       *CandidateRankingConfig `json:"ranking,omitempty"`
	Validation    *ValueValidation        `json:"validation,omitempty"`
	PageRules     *PageValidationRules    `json:"pageValidation,omitempty"`
}

// ContextPhrase adjusts a candidate's score when the phrase appears in the
// ±50 characters of text surrounding the match.
type ContextPhrase struct {
	Phrase string  `json:"phrase"`
	Delta  float64 `json:"delta"`
}

// CandidateRankingConfig steers regex-fallback candidate scoring.
type CandidateRankingConfig struct {
	// PreferredMin/Max describe the numeric range a plausible value
	// should fall into. Nil bounds disable the range check.
	PreferredMin *float64 `json:"preferredMin,omitempty"`
	PreferredMax *float64 `json:"preferredMax,omitempty"`
	// RangeBonus / RangePenalty are applied for membership / exclusion.
	// Zero values fall back to the defaults (+0.30 / -0.20).
	RangeBonus    float64         `json:"rangeBonus,omitempty"`
	RangePenalty  float64         `json:"rangePenalty,omitempty"`
	PreferPhrases []ContextPhrase `json:"preferPhrases,omitempty"`
	AvoidPhrases  []ContextPhrase `json:"avoidPhrases,omitempty"`
}

// ValueValidation checks an extracted value after the fact. A failed check
// degrades confidence but does not discard the value.
type ValueValidation struct {
	// Type is "string" or "number"; empty skips the type check.
	Type        string   `json:"type,omitempty"`
	MinLength   int      `json:"minLength,omitempty"`
	MaxLength   int      `json:"maxLength,omitempty"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	MustContain []string `json:"mustContain,omitempty"`
	MustExclude []string `json:"mustExclude,omitempty"`
	Pattern     string   `json:"pattern,omitempty"`
}

// PageValidationRules are declarative whole-page preconditions. A selector
// result is never trusted when the page fails its own preconditions.
type PageValidationRules struct {
	URLContains       []string `json:"urlContains,omitempty"`
	URLNotContains    []string `json:"urlNotContains,omitempty"`
	TitleContains     []string `json:"titleContains,omitempty"`
	TitleNotContains  []string `json:"titleNotContains,omitempty"`
	RequiredElements  []string `json:"requiredElements,omitempty"`
	ForbiddenElements []string `json:"forbiddenElements,omitempty"`
	MinContentLength  int      `json:"minContentLength,omitempty"`
}

// PageValidationResult reports the outcome of PageValidationRules.
type PageValidationResult struct {
	Passed       bool     `json:"passed"`
	FailedChecks []string `json:"failedChecks,omitempty"`
}

// ExtractionResult is the basic profile's outcome.
type ExtractionResult struct {
	Value        any    `json:"value,omitempty"`
	SelectorUsed string `json:"selectorUsed,omitempty"`
	WasFallback  bool   `json:"wasFallback"`
	Attempts     int    `json:"attempts"`
	Success      bool   `json:"success"`
}

// ExtractionMethod names the resolution tier that produced a V2 result.
type ExtractionMethod string

const (
	MethodPrimarySelector  ExtractionMethod = "primary_selector"
	MethodFallbackSelector ExtractionMethod = "fallback_selector"
	MethodRegexRanked      ExtractionMethod = "regex_ranked"
	MethodRegexFirst       ExtractionMethod = "regex_first"
	MethodFailed           ExtractionMethod = "failed"
)

// Fixed confidence constants. The tier order is a total order: any primary
// success outranks any fallback success, which outranks any regex success,
// which outranks failure. Validation penalties scale within a tier but
// never reorder across tiers.
const (
	ConfidencePrimary   = 0.95
	ConfidenceSecondary = 0.85
	ConfidenceTertiary  = 0.75
	RegexRankedBase     = 0.50
	RegexFirstBase      = 0.35
	ReliableThreshold   = 0.70
)

// TierConfidence returns the fixed pre-validation confidence for selector
// tier i (0-indexed).
func TierConfidence(i int) float64 {
	switch i {
	case 0:
		return ConfidencePrimary
	case 1:
		return ConfidenceSecondary
	default:
		return ConfidenceTertiary
	}
}

// ExtractionCandidate is one regex match with its computed score and the
// ordered list of adjustments applied to it.
type ExtractionCandidate struct {
	Value     string   `json:"value"`
	Source    string   `json:"source"`
	Score     float64  `json:"score"`
	Context   string   `json:"context"`
	Position  int      `json:"position"`
	Reasoning []string `json:"reasoning"`
}

// ExtractionResultV2 is the validated profile's outcome.
type ExtractionResultV2 struct {
	Value            any                   `json:"value,omitempty"`
	Confidence       float64               `json:"confidence"`
	Method           ExtractionMethod      `json:"method"`
	SelectorUsed     string                `json:"selectorUsed,omitempty"`
	Candidates       []ExtractionCandidate `json:"candidates,omitempty"`
	ValidationErrors []string              `json:"validationErrors,omitempty"`
	PageValidation   PageValidationResult  `json:"pageValidation"`
	Artifacts        *FailureArtifacts     `json:"artifacts,omitempty"`
}

// IsReliable reports whether the result can be trusted without review.
func (r ExtractionResultV2) IsReliable() bool {
	return r.Confidence >= ReliableThreshold &&
		len(r.ValidationErrors) == 0 &&
		r.PageValidation.Passed
}

// IsUsable reports whether the result carries a value from a page that
// passed its preconditions, however degraded the confidence.
func (r ExtractionResultV2) IsUsable() bool {
	return r.Value != nil && r.PageValidation.Passed
}
