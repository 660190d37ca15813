// internal/sandbox/cdp/surface.go

// Package cdp backs the sandbox surface with a real Chrome tab over the
// DevTools protocol. It implements sandbox.Evaluator, sandbox.Navigator
// and sandbox.Capturer, and forwards top-frame navigation lifecycle
// events to a sandbox.NavigationListener.
package cdp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/halcyonforge/webpilot/internal/sandbox"
)

// Options configures the browser process.
type Options struct {
	Headless  bool
	UserAgent string
	// Args are appended to the default allocator flags.
	Args []string
}

// Surface is one live tab. All methods combine the caller's context with
// the tab's lifetime so a closed tab fails calls promptly.
type Surface struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	listener    sandbox.NavigationListener
	logger      *zap.Logger

	mu      sync.Mutex
	lastURL string // top-frame URL from the most recent frameNavigated
}

// New launches a browser, opens a tab and wires navigation events to the
// listener. listener may be nil.
func New(ctx context.Context, opts Options, listener sandbox.NavigationListener, logger *zap.Logger) (*Surface, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	allocOpts := append([]chromedp.ExecAllocatorOption{},
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	for _, arg := range opts.Args {
		allocOpts = append(allocOpts, chromedp.Flag(arg, true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &Surface{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		listener:    listener,
		logger:      logger.Named("cdp"),
	}

	// Establish the target connection before wiring listeners.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("starting browser target: %w", err)
	}
	s.listen()
	return s, nil
}

// listen forwards top-frame navigation lifecycle events. The listener is
// invoked from the event dispatch goroutine, so it must not call back
// into the tab synchronously; NavHub's buffered delivery satisfies that.
func (s *Surface) listen() {
	chromedp.ListenTarget(s.tabCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *page.EventFrameNavigated:
			if e.Frame != nil && e.Frame.ParentID == "" {
				s.mu.Lock()
				s.lastURL = e.Frame.URL
				s.mu.Unlock()
			}
		case *page.EventLoadEventFired:
			s.mu.Lock()
			url := s.lastURL
			s.mu.Unlock()
			s.logger.Debug("page load fired", zap.String("url", url))
			if s.listener != nil {
				s.listener.NavigationFinished(sandbox.NavigationOutcome{OK: true, URL: url})
			}
		}
	})
}

// run executes actions bounded by both the request and the tab lifetime.
func (s *Surface) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := combineContext(s.tabCtx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// Evaluate runs a script with by-value results and awaited promises. An
// undefined or null result decodes as nil rather than an error.
func (s *Surface) Evaluate(ctx context.Context, script string) (any, error) {
	var result any
	err := s.run(ctx, chromedp.Evaluate(script, &result,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithReturnByValue(true).WithAwaitPromise(true)
		}))
	if err != nil {
		if errors.Is(err, chromedp.ErrJSUndefined) || errors.Is(err, chromedp.ErrJSNull) {
			return nil, nil
		}
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	return result, nil
}

// Navigate initiates navigation without waiting for load; completion is
// reported through the navigation listener.
func (s *Surface) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		_, _, errText, err := page.Navigate(url).Do(c)
		if err != nil {
			return err
		}
		if errText != "" {
			if s.listener != nil {
				s.listener.NavigationFinished(sandbox.NavigationOutcome{OK: false, URL: url, Error: errText})
			}
			return fmt.Errorf("navigation rejected: %s", errText)
		}
		return nil
	}))
}

// Reload reloads the current page; completion arrives via the listener.
func (s *Surface) Reload(ctx context.Context) error {
	return s.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		return page.Reload().Do(c)
	}))
}

// Back navigates one history entry backwards.
func (s *Surface) Back(ctx context.Context) error {
	return s.run(ctx, chromedp.NavigateBack())
}

// Forward navigates one history entry forwards.
func (s *Surface) Forward(ctx context.Context) error {
	return s.run(ctx, chromedp.NavigateForward())
}

// Screenshot captures the viewport, or the full scrollable page when
// fullPage is set.
func (s *Surface) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	var buf []byte
	var action chromedp.Action
	if fullPage {
		action = chromedp.FullScreenshot(&buf, 90)
	} else {
		action = chromedp.CaptureScreenshot(&buf)
	}
	if err := s.run(ctx, action); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

// Close tears down the tab and the browser process.
func (s *Surface) Close() {
	s.tabCancel()
	s.allocCancel()
}

var (
	_ sandbox.Evaluator = (*Surface)(nil)
	_ sandbox.Navigator = (*Surface)(nil)
	_ sandbox.Capturer  = (*Surface)(nil)
)

// combineContext derives a context canceled when either parent is. The
// returned cancel must always be called.
func combineContext(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
