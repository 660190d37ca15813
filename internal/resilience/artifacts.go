// internal/resilience/artifacts.go
package resilience

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/halcyonforge/webpilot/api/schemas"
	"github.com/halcyonforge/webpilot/internal/sandbox"
)

const domSnapshotScript = `document.documentElement ? document.documentElement.outerHTML : ''`

// ArtifactCapturer writes failure-artifact bundles under a timestamped
// incident directory. Each artifact is best-effort: the absence of one
// never blocks the others.
type ArtifactCapturer struct {
	dir      string
	eval     sandbox.Evaluator
	capturer sandbox.Capturer // optional
	logger   *zap.Logger
}

// NewArtifactCapturer builds a capturer writing under dir. capturer may be
// nil when the surface cannot produce screenshots.
func NewArtifactCapturer(dir string, eval sandbox.Evaluator, capturer sandbox.Capturer, logger *zap.Logger) *ArtifactCapturer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArtifactCapturer{dir: dir, eval: eval, capturer: capturer, logger: logger.Named("artifacts")}
}

// Capture gathers a viewport screenshot, a full-page capture and a DOM
// snapshot concurrently, then bundles them with the selectors that were
// tried. Capture never returns an error: a partial (or empty) bundle is
// still more useful than none.
func (a *ArtifactCapturer) Capture(ctx context.Context, failedSelector string, triedSelectors []string, cause error) *schemas.FailureArtifacts {
	now := time.Now().UTC()
	incident := fmt.Sprintf("%s-%s", now.Format("20060102T150405"), uuid.NewString()[:8])
	dir := filepath.Join(a.dir, incident)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		a.logger.Warn("cannot create artifact directory", zap.String("dir", dir), zap.Error(err))
		dir = ""
	}

	bundle := &schemas.FailureArtifacts{
		FailedSelector: failedSelector,
		TriedSelectors: triedSelectors,
		Timestamp:      now,
	}
	if cause != nil {
		bundle.Error = cause.Error()
	}

	var mu sync.Mutex
	var domHTML string

	// errgroup for structured concurrency; every member swallows its own
	// failure so the siblings still land.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ref := a.captureImage(gctx, dir, "screenshot.png", false)
		mu.Lock()
		bundle.Screenshot = ref
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		ref := a.captureImage(gctx, dir, "fullpage.png", true)
		mu.Lock()
		bundle.FullPage = ref
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		ref, html := a.captureDOM(gctx, dir)
		mu.Lock()
		bundle.DOMSnapshot = ref
		domHTML = html
		mu.Unlock()
		return nil
	})
	_ = g.Wait()

	if domHTML != "" {
		bundle.Presence = analyzePresence(domHTML, triedSelectors)
	}

	if dir != "" {
		if meta, err := json.MarshalIndent(bundle, "", "  "); err == nil {
			_ = os.WriteFile(filepath.Join(dir, "incident.json"), meta, 0o644)
		}
	}

	a.logger.Info("captured failure artifacts",
		zap.String("incident", incident),
		zap.String("failedSelector", failedSelector),
		zap.Int("triedSelectors", len(triedSelectors)))
	return bundle
}

func (a *ArtifactCapturer) captureImage(ctx context.Context, dir, name string, fullPage bool) *schemas.ArtifactRef {
	if a.capturer == nil || dir == "" {
		return nil
	}
	data, err := a.capturer.Screenshot(ctx, fullPage)
	if err != nil {
		a.logger.Debug("screenshot capture failed", zap.Bool("fullPage", fullPage), zap.Error(err))
		return nil
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		a.logger.Debug("cannot write screenshot", zap.String("path", path), zap.Error(err))
		return nil
	}
	return &schemas.ArtifactRef{Path: path, Bytes: len(data)}
}

func (a *ArtifactCapturer) captureDOM(ctx context.Context, dir string) (*schemas.ArtifactRef, string) {
	v, err := a.eval.Evaluate(ctx, domSnapshotScript)
	if err != nil {
		a.logger.Debug("DOM snapshot failed", zap.Error(err))
		return nil, ""
	}
	html, _ := v.(string)
	if html == "" || dir == "" {
		return nil, html
	}
	path := filepath.Join(dir, "dom.html")
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		a.logger.Debug("cannot write DOM snapshot", zap.String("path", path), zap.Error(err))
		return nil, html
	}
	return &schemas.ArtifactRef{Path: path, Bytes: len(html)}, html
}

// analyzePresence checks whether each tried selector still resolves in the
// final DOM snapshot, separating "element never existed" failures from
// timing failures.
func analyzePresence(html string, selectors []string) []schemas.SelectorPresence {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	out := make([]schemas.SelectorPresence, 0, len(selectors))
	for _, sel := range selectors {
		matches := safeFind(doc, sel)
		out = append(out, schemas.SelectorPresence{
			Selector: sel,
			Present:  matches > 0,
			Matches:  matches,
		})
	}
	return out
}

// safeFind tolerates selectors cascadia cannot parse.
func safeFind(doc *goquery.Document, sel string) (n int) {
	defer func() {
		if recover() != nil {
			n = 0
		}
	}()
	return doc.Find(sel).Length()
}
