// internal/selcache/cache.go

// Package selcache remembers, per origin domain and logical action, which
// concrete selector worked, with rolling success/failure counts. The cache
// is the system's only durable shared mutable state; one mutex per cache
// instance keeps learn/recordFailure linearizable per (domain, action) at
// the expected call volume.
package selcache

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/halcyonforge/webpilot/api/schemas"
	"github.com/halcyonforge/webpilot/internal/clock"
)

// Cache is the selector reliability cache. It is injected, not global, so
// tests can substitute an in-memory store.
type Cache struct {
	store  Store
	clk    clock.Clock
	logger *zap.Logger

	mu chan struct{} // held across read-modify-write cycles
}

// New builds a Cache over a Store.
func New(store Store, clk clock.Clock, logger *zap.Logger) *Cache {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	mu := make(chan struct{}, 1)
	mu <- struct{}{}
	return &Cache{store: store, clk: clk, logger: logger.Named("selcache"), mu: mu}
}

func (c *Cache) lock(ctx context.Context) error {
	select {
	case <-c.mu:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Cache) unlock() { c.mu <- struct{}{} }

// Domain derives the cache key domain from a URL: the host with any
// leading "www." stripped. A bare domain passes through unchanged.
func Domain(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return strings.TrimPrefix(rawURL, "www.")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

// Learn records a successful selector for an action. The first-seen
// selector sticks: relearning the same action only bumps the success count
// and lastUsed, never overwrites the selector. Callers that want to adopt
// a changed selector must Clear the domain first.
func (c *Cache) Learn(ctx context.Context, action, selector, rawURL string, attributes map[string]string) (*schemas.CachedSelector, error) {
	domain := Domain(rawURL)
	if err := c.lock(ctx); err != nil {
		return nil, err
	}
	defer c.unlock()

	now := c.clk.Now().UTC()
	existing, err := c.store.Get(ctx, domain, action)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		entry := schemas.CachedSelector{
			Selector:     selector,
			Action:       action,
			SuccessCount: 1,
			LastUsed:     now,
			DiscoveredAt: now,
			Attributes:   attributes,
		}
		if err := c.store.Put(ctx, domain, entry); err != nil {
			return nil, err
		}
		c.logger.Debug("learned selector",
			zap.String("domain", domain),
			zap.String("action", action),
			zap.String("selector", selector))
		return &entry, nil
	}

	existing.SuccessCount++
	existing.LastUsed = now
	if len(existing.Attributes) == 0 && len(attributes) > 0 {
		existing.Attributes = attributes
	}
	if err := c.store.Put(ctx, domain, *existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// RecordFailure increments the fail count, but only when the stored
// selector still matches the one that failed. A stale failure report for
// an already-superseded selector is ignored.
func (c *Cache) RecordFailure(ctx context.Context, action, selector, rawURL string) (bool, error) {
	domain := Domain(rawURL)
	if err := c.lock(ctx); err != nil {
		return false, err
	}
	defer c.unlock()

	existing, err := c.store.Get(ctx, domain, action)
	if err != nil {
		return false, err
	}
	if existing == nil || existing.Selector != selector {
		return false, nil
	}
	now := c.clk.Now().UTC()
	existing.FailCount++
	existing.LastFailed = &now
	if err := c.store.Put(ctx, domain, *existing); err != nil {
		return false, err
	}
	return true, nil
}

// Recall returns the cached entry for (domain(url), action), or nil.
func (c *Cache) Recall(ctx context.Context, action, rawURL string) (*schemas.CachedSelector, error) {
	return c.store.Get(ctx, Domain(rawURL), action)
}

// GetAll returns every cached selector for a domain, keyed by action.
func (c *Cache) GetAll(ctx context.Context, rawURL string) (map[string]schemas.CachedSelector, error) {
	return c.store.GetAll(ctx, Domain(rawURL))
}

// Domains lists every domain with at least one cached selector.
func (c *Cache) Domains(ctx context.Context) ([]string, error) {
	return c.store.Domains(ctx)
}

// Clear drops cached selectors for one domain, or everything when domain
// is empty. This is the only deletion path.
func (c *Cache) Clear(ctx context.Context, domain string) (int, error) {
	if err := c.lock(ctx); err != nil {
		return 0, err
	}
	defer c.unlock()
	return c.store.Clear(ctx, domain)
}

// Stats aggregates cache-wide reliability numbers.
type Stats struct {
	Selectors      int     `json:"selectors"`
	Domains        int     `json:"domains"`
	TotalSuccesses int     `json:"totalSuccesses"`
	TotalFailures  int     `json:"totalFailures"`
	Reliability    float64 `json:"reliability"`
}

// Stats walks every domain. Cheap at expected cache sizes.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	domains, err := c.store.Domains(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{Domains: len(domains)}
	for _, d := range domains {
		all, err := c.store.GetAll(ctx, d)
		if err != nil {
			return Stats{}, err
		}
		stats.Selectors += len(all)
		for _, sel := range all {
			stats.TotalSuccesses += sel.SuccessCount
			stats.TotalFailures += sel.FailCount
		}
	}
	if total := stats.TotalSuccesses + stats.TotalFailures; total > 0 {
		stats.Reliability = float64(stats.TotalSuccesses) / float64(total)
	} else {
		stats.Reliability = 0.5
	}
	return stats, nil
}

// SaveCookies stores an opaque cookie snapshot for a domain.
func (c *Cache) SaveCookies(ctx context.Context, rawURL string, blob json.RawMessage) error {
	return c.store.PutCookies(ctx, Domain(rawURL), blob)
}

// LoadCookies returns the stored cookie snapshot for a domain, or nil.
func (c *Cache) LoadCookies(ctx context.Context, rawURL string) (json.RawMessage, error) {
	return c.store.GetCookies(ctx, Domain(rawURL))
}
