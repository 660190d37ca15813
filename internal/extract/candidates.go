// internal/extract/candidates.go
package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/halcyonforge/webpilot/api/schemas"
)

const (
	candidateContextRadius = 50
	candidateBaseScore     = 0.50
	firstMatchBonus        = 0.05
	defaultRangeBonus      = 0.30
	defaultRangePenalty    = 0.20
	maxSurfacedCandidates  = 5
)

// extractCandidates runs the fallback pattern over the page text and
// scores every match. Candidates come back sorted by descending score,
// position-stable on ties, with the ordered list of score adjustments
// recorded for auditability.
func extractCandidates(text, pattern string, ranking *schemas.CandidateRankingConfig) ([]schemas.ExtractionCandidate, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, schemas.NewError(schemas.ErrInvalidInput, "invalid regex fallback: %v", err)
	}

	locs := re.FindAllStringIndex(text, -1)
	candidates := make([]schemas.ExtractionCandidate, 0, len(locs))
	for i, loc := range locs {
		value := text[loc[0]:loc[1]]
		context := surrounding(text, loc[0], loc[1])
		c := schemas.ExtractionCandidate{
			Value:    value,
			Source:   "regex",
			Context:  context,
			Position: i,
		}
		c.Score, c.Reasoning = scoreCandidate(c, ranking)
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].Score != candidates[b].Score {
			return candidates[a].Score > candidates[b].Score
		}
		return candidates[a].Position < candidates[b].Position
	})
	return candidates, nil
}

// scoreCandidate applies range membership, context phrase and first-match
// adjustments, clamping to [0,1].
func scoreCandidate(c schemas.ExtractionCandidate, ranking *schemas.CandidateRankingConfig) (float64, []string) {
	score := candidateBaseScore
	reasoning := []string{fmt.Sprintf("base %.2f", candidateBaseScore)}

	if ranking != nil {
		if ranking.PreferredMin != nil || ranking.PreferredMax != nil {
			bonus := ranking.RangeBonus
			if bonus == 0 {
				bonus = defaultRangeBonus
			}
			penalty := ranking.RangePenalty
			if penalty == 0 {
				penalty = defaultRangePenalty
			}
			if n, ok := parseNumeric(c.Value); ok && inRange(n, ranking.PreferredMin, ranking.PreferredMax) {
				score += bonus
				reasoning = append(reasoning, fmt.Sprintf("in preferred range +%.2f", bonus))
			} else {
				score -= penalty
				reasoning = append(reasoning, fmt.Sprintf("outside preferred range -%.2f", penalty))
			}
		}

		lowerCtx := strings.ToLower(c.Context)
		for _, p := range ranking.AvoidPhrases {
			if strings.Contains(lowerCtx, strings.ToLower(p.Phrase)) {
				delta := p.Delta
				if delta == 0 {
					delta = 0.25
				}
				score -= delta
				reasoning = append(reasoning, fmt.Sprintf("avoid phrase %q -%.2f", p.Phrase, delta))
			}
		}
		for _, p := range ranking.PreferPhrases {
			if strings.Contains(lowerCtx, strings.ToLower(p.Phrase)) {
				delta := p.Delta
				if delta == 0 {
					delta = 0.15
				}
				score += delta
				reasoning = append(reasoning, fmt.Sprintf("prefer phrase %q +%.2f", p.Phrase, delta))
			}
		}
	}

	if c.Position == 0 {
		score += firstMatchBonus
		reasoning = append(reasoning, fmt.Sprintf("first match +%.2f", firstMatchBonus))
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, reasoning
}

func inRange(n float64, min, max *float64) bool {
	if min != nil && n < *min {
		return false
	}
	if max != nil && n > *max {
		return false
	}
	return true
}

// surrounding returns up to candidateContextRadius bytes either side of
// the match, widened outward to rune boundaries so multibyte text never
// yields invalid UTF-8 in the context window.
func surrounding(text string, start, end int) string {
	from := start - candidateContextRadius
	if from < 0 {
		from = 0
	}
	to := end + candidateContextRadius
	if to > len(text) {
		to = len(text)
	}
	for from > 0 && !utf8.RuneStart(text[from]) {
		from--
	}
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to++
	}
	return text[from:to]
}
