// api/schemas/cache.go
package schemas

import "time"

// CachedSelector is one learned selector, keyed by (domain, action).
// Created on first successful learn; counts increment in place; never
// deleted except by an explicit clear.
type CachedSelector struct {
	Selector     string            `json:"selector"`
	Action       string            `json:"action"`
	SuccessCount int               `json:"successCount"`
	FailCount    int               `json:"failCount"`
	LastUsed     time.Time         `json:"lastUsed"`
	LastFailed   *time.Time        `json:"lastFailed,omitempty"`
	DiscoveredAt time.Time         `json:"discoveredAt"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

// Reliability is the empirical success ratio, defaulting to 0.5 when no
// outcome has been observed yet.
func (s CachedSelector) Reliability() float64 {
	total := s.SuccessCount + s.FailCount
	if total == 0 {
		return 0.5
	}
	return float64(s.SuccessCount) / float64(total)
}

// RetryStrategy is one environment perturbation applied between retry
// attempts. Each strategy's behavior is fixed, not configurable.
type RetryStrategy string

const (
	RetryScroll RetryStrategy = "scroll"
	RetryWait   RetryStrategy = "wait"
	RetryReload RetryStrategy = "reload"
	// RetryViewport requires a device-level resize and is a no-op when
	// only the in-page sandbox is available.
	RetryViewport RetryStrategy = "viewport"
)

// ArtifactRef locates one captured artifact on disk.
type ArtifactRef struct {
	Path  string `json:"path"`
	Bytes int    `json:"bytes"`
}

// SelectorPresence records whether a tried selector still resolved in the
// final DOM snapshot, which separates "element never existed" failures
// from timing failures.
type SelectorPresence struct {
	Selector string `json:"selector"`
	Present  bool   `json:"present"`
	Matches  int    `json:"matches"`
}

// FailureArtifacts is the write-once diagnostic bundle produced on terminal
// failure. Every member is best-effort; absence of one artifact never
// blocks the others.
type FailureArtifacts struct {
	Screenshot     *ArtifactRef       `json:"screenshot,omitempty"`
	FullPage       *ArtifactRef       `json:"fullPage,omitempty"`
	DOMSnapshot    *ArtifactRef       `json:"domSnapshot,omitempty"`
	FailedSelector string             `json:"failedSelector,omitempty"`
	TriedSelectors []string           `json:"triedSelectors,omitempty"`
	Presence       []SelectorPresence `json:"presence,omitempty"`
	Timestamp      time.Time          `json:"timestamp"`
	Error          string             `json:"error"`
}
