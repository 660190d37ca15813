// internal/server/server.go

// Package server exposes the automation engine as a JSON command protocol
// over loopback HTTP: POST /command with {id, method, params}, one
// response per command, plus a GET /health liveness probe. Commands for a
// session are processed strictly sequentially; an internal error becomes a
// {success:false} response, never a crashed command loop.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/halcyonforge/webpilot/api/schemas"
	"github.com/halcyonforge/webpilot/internal/actions"
	"github.com/halcyonforge/webpilot/internal/extract"
	"github.com/halcyonforge/webpilot/internal/marks"
	"github.com/halcyonforge/webpilot/internal/readiness"
	"github.com/halcyonforge/webpilot/internal/resilience"
	"github.com/halcyonforge/webpilot/internal/sandbox"
	"github.com/halcyonforge/webpilot/internal/selcache"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Options tunes the protocol server.
type Options struct {
	// DefaultTimeout bounds every command unless the command carries its
	// own. Enforced by the transport layer independently of any
	// in-sandbox timeout.
	DefaultTimeout time.Duration
	// NavigationTimeout bounds waits on the navigation lifecycle. The
	// original design left this unbounded; a default bound closes that
	// hang risk.
	NavigationTimeout time.Duration
	// RetryStrategies, when non-empty, wraps element actions (click,
	// fill, hover, ...) in the retry policy.
	RetryStrategies []schemas.RetryStrategy
	MaxRetryAttempts int
}

func (o Options) withDefaults() Options {
	if o.DefaultTimeout <= 0 {
		o.DefaultTimeout = 30 * time.Second
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = 30 * time.Second
	}
	if o.MaxRetryAttempts <= 0 {
		o.MaxRetryAttempts = 1 + len(o.RetryStrategies)
	}
	return o
}

// Server routes protocol commands to the engine components.
type Server struct {
	opts     Options
	exec     *actions.Executor
	detector *readiness.Detector
	engine   *extract.Engine
	labeler  *marks.Labeler
	cache    *selcache.Cache
	policy   *resilience.Policy
	hub      *NavHub
	nav      sandbox.Navigator // optional
	capt     sandbox.Capturer  // optional
	logger   *zap.Logger

	// cmdMu serializes script execution: at most one in-flight script per
	// sandbox. Cache reads/writes stay outside the critical section.
	cmdMu sync.Mutex
}

// Deps carries the injected engine components. Cache is injected (not a
// global) so tests can substitute an in-memory instance.
type Deps struct {
	Exec     *actions.Executor
	Detector *readiness.Detector
	Engine   *extract.Engine
	Labeler  *marks.Labeler
	Cache    *selcache.Cache
	Policy   *resilience.Policy
	Hub      *NavHub
	Nav      sandbox.Navigator
	Capt     sandbox.Capturer
}

// New builds a Server.
func New(deps Deps, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		opts:     opts.withDefaults(),
		exec:     deps.Exec,
		detector: deps.Detector,
		engine:   deps.Engine,
		labeler:  deps.Labeler,
		cache:    deps.Cache,
		policy:   deps.Policy,
		hub:      deps.Hub,
		nav:      deps.Nav,
		capt:     deps.Capt,
		logger:   logger.Named("server"),
	}
}

// Router builds the protocol's HTTP surface.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/command", s.handleCommand)
	return r
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var cmd schemas.Command
	if err := codec.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeResponse(w, schemas.CommandResponse{
			Success: false,
			Error:   schemas.NewError(schemas.ErrInvalidInput, "malformed command: %v", err).Error(),
		})
		return
	}

	timeout := s.opts.DefaultTimeout
	if cmd.TimeoutMs > 0 {
		timeout = time.Duration(cmd.TimeoutMs) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	resp := s.dispatch(ctx, cmd)
	resp.ID = cmd.ID
	writeResponse(w, resp)
}

func writeResponse(w http.ResponseWriter, resp schemas.CommandResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = codec.NewEncoder(w).Encode(resp)
}

// dispatch routes one command. Panics are converted to error responses so
// one bad command cannot take down the loop.
func (s *Server) dispatch(ctx context.Context, cmd schemas.Command) (resp schemas.CommandResponse) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("command handler panicked",
				zap.String("method", string(cmd.Method)),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			resp = failure(schemas.NewError(schemas.ErrScriptExecution, "internal error: %v", r))
		}
	}()

	start := time.Now()
	result, err := s.run(ctx, cmd)
	elapsed := time.Since(start)
	if err != nil {
		s.logger.Debug("command failed",
			zap.String("method", string(cmd.Method)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		if ctx.Err() == context.DeadlineExceeded && schemas.CodeOf(err) != schemas.ErrTimeout {
			err = schemas.NewError(schemas.ErrTimeout, "command %s timed out: %v", cmd.Method, err)
		}
		return failure(err)
	}
	s.logger.Debug("command completed",
		zap.String("method", string(cmd.Method)),
		zap.Duration("elapsed", elapsed))
	return schemas.CommandResponse{Success: true, Result: result}
}

func failure(err error) schemas.CommandResponse {
	return schemas.CommandResponse{Success: false, Error: err.Error()}
}

// run executes one command body. Script-bearing commands hold cmdMu for
// their whole duration; cache-only commands run concurrently.
func (s *Server) run(ctx context.Context, cmd schemas.Command) (map[string]any, error) {
	switch cmd.Method {
	case schemas.MethodSelectorLearn, schemas.MethodSelectorRecall,
		schemas.MethodSelectorFail, schemas.MethodSelectorClear:
		return s.runCacheCommand(ctx, cmd)
	}

	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	switch cmd.Method {
	case schemas.MethodGoto:
		return s.runGoto(ctx, cmd)
	case schemas.MethodReload:
		if err := s.ReloadAndWait(ctx); err != nil {
			return nil, err
		}
		return map[string]any{"reloaded": true}, nil
	case schemas.MethodGoBack:
		return s.runHistory(ctx, -1)
	case schemas.MethodGoForward:
		return s.runHistory(ctx, 1)
	case schemas.MethodWaitForNavigation:
		outcome, err := s.awaitNavigation(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"ok": outcome.OK, "url": outcome.URL, "error": outcome.Error}, nil
	case schemas.MethodGetURL:
		u, err := s.exec.GetURL(ctx)
		return map[string]any{"url": u}, err
	case schemas.MethodGetTitle:
		t, err := s.exec.GetTitle(ctx)
		return map[string]any{"title": t}, err

	case schemas.MethodClick:
		return s.runElementAction(ctx, cmd, "click", s.exec.Click)
	case schemas.MethodDoubleClick:
		return s.runElementAction(ctx, cmd, "doubleClick", s.exec.DoubleClick)
	case schemas.MethodHover:
		return s.runElementAction(ctx, cmd, "hover", s.exec.Hover)
	case schemas.MethodScrollIntoView:
		return s.runElementAction(ctx, cmd, "scrollIntoView", s.exec.ScrollIntoView)
	case schemas.MethodFocus:
		return s.runElementAction(ctx, cmd, "focus", s.exec.Focus)
	case schemas.MethodScroll:
		params, err := schemas.DecodeParams[schemas.ScrollParams](cmd)
		if err != nil {
			return nil, schemas.NewError(schemas.ErrInvalidInput, "%v", err)
		}
		if err := s.exec.ScrollBy(ctx, params.DX, params.DY); err != nil {
			return nil, err
		}
		return map[string]any{"dx": params.DX, "dy": params.DY}, nil
	case schemas.MethodClickText:
		params, err := schemas.DecodeParams[schemas.TextParams](cmd)
		if err != nil {
			return nil, schemas.NewError(schemas.ErrInvalidInput, "%v", err)
		}
		if strings.TrimSpace(params.Text) == "" {
			return nil, schemas.NewError(schemas.ErrInvalidInput, "clickText: empty text")
		}
		if err := s.withRetry(ctx, "clickText", "text:"+params.Text, func(ctx context.Context) error {
			return s.exec.ClickText(ctx, params.Text)
		}); err != nil {
			return nil, err
		}
		return map[string]any{"text": params.Text}, nil
	case schemas.MethodFill:
		params, err := schemas.DecodeParams[schemas.FillParams](cmd)
		if err != nil {
			return nil, schemas.NewError(schemas.ErrInvalidInput, "%v", err)
		}
		if err := s.withRetry(ctx, "fill", params.Selector, func(ctx context.Context) error {
			return s.exec.Fill(ctx, params.Selector, params.Value)
		}); err != nil {
			return nil, err
		}
		return map[string]any{"selector": params.Selector}, nil
	case schemas.MethodType:
		params, err := schemas.DecodeParams[schemas.TypeParams](cmd)
		if err != nil {
			return nil, schemas.NewError(schemas.ErrInvalidInput, "%v", err)
		}
		return map[string]any{"typed": len(params.Text)}, s.exec.Type(ctx, params.Text)
	case schemas.MethodPress:
		params, err := schemas.DecodeParams[schemas.PressParams](cmd)
		if err != nil {
			return nil, schemas.NewError(schemas.ErrInvalidInput, "%v", err)
		}
		return map[string]any{"key": params.Key}, s.exec.Press(ctx, params.Key)

	case schemas.MethodQuerySelector:
		params, err := schemas.DecodeParams[schemas.SelectorParams](cmd)
		if err != nil {
			return nil, schemas.NewError(schemas.ErrInvalidInput, "%v", err)
		}
		info, err := s.exec.QuerySelector(ctx, params.Selector)
		if err != nil {
			return nil, err
		}
		return map[string]any{"element": info, "found": info != nil}, nil
	case schemas.MethodQuerySelectorAll:
		params, err := schemas.DecodeParams[schemas.SelectorParams](cmd)
		if err != nil {
			return nil, schemas.NewError(schemas.ErrInvalidInput, "%v", err)
		}
		list, err := s.exec.QuerySelectorAll(ctx, params.Selector, 100)
		if err != nil {
			return nil, err
		}
		return map[string]any{"elements": list, "count": len(list)}, nil
	case schemas.MethodWaitForSelector:
		params, err := schemas.DecodeParams[schemas.WaitForSelectorParams](cmd)
		if err != nil {
			return nil, schemas.NewError(schemas.ErrInvalidInput, "%v", err)
		}
		timeout := time.Duration(params.TimeoutMs) * time.Millisecond
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		if err := s.exec.WaitForSelector(ctx, params.Selector, timeout); err != nil {
			return nil, err
		}
		return map[string]any{"selector": params.Selector}, nil
	case schemas.MethodWaitForReady:
		params, err := schemas.DecodeParams[schemas.WaitForReadyParams](cmd)
		if err != nil {
			return nil, schemas.NewError(schemas.ErrInvalidInput, "%v", err)
		}
		res, err := s.detector.Wait(ctx, readiness.Options{
			Timeout:          time.Duration(params.TimeoutMs) * time.Millisecond,
			Stability:        time.Duration(params.StabilityMs) * time.Millisecond,
			RequiredSelector: params.RequiredSelector,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"ready":   res.Ready,
			"elapsed": res.Elapsed.Milliseconds(),
			"checks":  res.Checks,
		}, nil
	case schemas.MethodHasText:
		params, err := schemas.DecodeParams[schemas.TextParams](cmd)
		if err != nil {
			return nil, schemas.NewError(schemas.ErrInvalidInput, "%v", err)
		}
		found, err := s.exec.HasText(ctx, params.Text)
		if err != nil {
			return nil, err
		}
		return map[string]any{"found": found}, nil
	case schemas.MethodGetText:
		params, err := schemas.DecodeParams[schemas.SelectorParams](cmd)
		if err != nil {
			return nil, schemas.NewError(schemas.ErrInvalidInput, "%v", err)
		}
		text, err := s.exec.GetText(ctx, params.Selector)
		if err != nil {
			return nil, err
		}
		return map[string]any{"text": text}, nil
	case schemas.MethodCount:
		params, err := schemas.DecodeParams[schemas.SelectorParams](cmd)
		if err != nil {
			return nil, schemas.NewError(schemas.ErrInvalidInput, "%v", err)
		}
		n, err := s.exec.Count(ctx, params.Selector)
		if err != nil {
			return nil, err
		}
		return map[string]any{"count": n}, nil
	case schemas.MethodEvaluate:
		params, err := schemas.DecodeParams[schemas.EvaluateParams](cmd)
		if err != nil {
			return nil, schemas.NewError(schemas.ErrInvalidInput, "%v", err)
		}
		v, err := s.exec.Evaluate(ctx, params.Script)
		if err != nil {
			return nil, err
		}
		return map[string]any{"value": v}, nil

	case schemas.MethodScreenshot:
		return s.runScreenshot(ctx, cmd)
	case schemas.MethodGetCookies:
		cookies, err := s.exec.GetCookies(ctx)
		if err != nil {
			return nil, err
		}
		s.snapshotCookies(ctx, cookies)
		return map[string]any{"cookies": cookies}, nil
	case schemas.MethodSetCookies:
		params, err := schemas.DecodeParams[schemas.SetCookiesParams](cmd)
		if err != nil {
			return nil, schemas.NewError(schemas.ErrInvalidInput, "%v", err)
		}
		return map[string]any{"set": len(params.Cookies)}, s.exec.SetCookies(ctx, params.Cookies)
	case schemas.MethodDeleteCookies:
		return map[string]any{"deleted": true}, s.exec.DeleteCookies(ctx)

	case schemas.MethodMarkElements:
		params, err := schemas.DecodeParams[schemas.MarkParams](cmd)
		if err != nil {
			return nil, schemas.NewError(schemas.ErrInvalidInput, "%v", err)
		}
		elements, err := s.labeler.Mark(ctx, params.ViewportOnly)
		if err != nil {
			return nil, err
		}
		return map[string]any{"elements": elements, "count": len(elements)}, nil
	case schemas.MethodClickMark:
		params, err := schemas.DecodeParams[schemas.ClickMarkParams](cmd)
		if err != nil {
			return nil, schemas.NewError(schemas.ErrInvalidInput, "%v", err)
		}
		return map[string]any{"label": params.Label}, s.labeler.ClickLabel(ctx, params.Label)
	case schemas.MethodUnmarkElements:
		return map[string]any{"unmarked": true}, s.labeler.Unmark(ctx)

	case schemas.MethodExtract:
		params, err := schemas.DecodeParams[schemas.ExtractParams](cmd)
		if err != nil {
			return nil, schemas.NewError(schemas.ErrInvalidInput, "%v", err)
		}
		res, err := s.engine.Extract(ctx, params.Chain)
		if err != nil {
			return nil, err
		}
		return toResultMap(res)
	case schemas.MethodExtractV2:
		params, err := schemas.DecodeParams[schemas.ExtractV2Params](cmd)
		if err != nil {
			return nil, schemas.NewError(schemas.ErrInvalidInput, "%v", err)
		}
		res, err := s.engine.ExtractV2(ctx, params.Chain)
		if err != nil {
			return nil, err
		}
		return toResultMap(res)

	default:
		return nil, schemas.NewError(schemas.ErrInvalidInput, "unknown method %q", cmd.Method)
	}
}

// runElementAction handles the shared selector+retry shape of click-like
// commands.
func (s *Server) runElementAction(ctx context.Context, cmd schemas.Command, name string, fn func(context.Context, string) error) (map[string]any, error) {
	params, err := schemas.DecodeParams[schemas.SelectorParams](cmd)
	if err != nil {
		return nil, schemas.NewError(schemas.ErrInvalidInput, "%v", err)
	}
	if strings.TrimSpace(params.Selector) == "" {
		return nil, schemas.NewError(schemas.ErrInvalidInput, "%s: empty selector", name)
	}
	if err := s.withRetry(ctx, name, params.Selector, func(ctx context.Context) error {
		return fn(ctx, params.Selector)
	}); err != nil {
		return nil, err
	}
	return map[string]any{"selector": params.Selector}, nil
}

// withRetry applies the configured retry policy, or runs the action
// directly when retries are disabled.
func (s *Server) withRetry(ctx context.Context, name, selector string, action resilience.Action) error {
	if s.policy == nil || len(s.opts.RetryStrategies) == 0 {
		return action(ctx)
	}
	outcome := s.policy.ExecuteWithRetry(ctx, name, action,
		s.opts.RetryStrategies, s.opts.MaxRetryAttempts, []string{selector})
	return outcome.Err
}

func (s *Server) runGoto(ctx context.Context, cmd schemas.Command) (map[string]any, error) {
	params, err := schemas.DecodeParams[schemas.GotoParams](cmd)
	if err != nil {
		return nil, schemas.NewError(schemas.ErrInvalidInput, "%v", err)
	}
	u, err := url.Parse(params.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, schemas.NewError(schemas.ErrInvalidInput, "invalid URL %q", params.URL)
	}

	// Register before initiating so a fast navigation cannot slip past.
	token, ch := s.hub.Register()
	if err := s.navigate(ctx, params.URL); err != nil {
		s.hub.Abandon(token)
		return nil, err
	}
	outcome, err := s.waitOn(ctx, token, ch)
	if err != nil {
		return nil, err
	}
	result := map[string]any{"url": params.URL, "ok": outcome.OK}
	if !outcome.OK {
		result["error"] = outcome.Error
		return result, nil
	}
	if params.WaitReady {
		res, err := s.detector.Wait(ctx, readiness.Options{})
		if err != nil {
			return nil, err
		}
		result["ready"] = res.Ready
		result["checks"] = res.Checks
	}
	return result, nil
}

func (s *Server) navigate(ctx context.Context, target string) error {
	if s.nav != nil {
		return s.nav.Navigate(ctx, target)
	}
	// Fall back to an in-page navigation when the surface exposes only
	// script evaluation.
	script := fmt.Sprintf(`window.location.href = %s`, sandbox.JSString(target))
	_, err := s.exec.Evaluate(ctx, script)
	return err
}

func (s *Server) runHistory(ctx context.Context, direction int) (map[string]any, error) {
	token, ch := s.hub.Register()
	var err error
	switch {
	case s.nav != nil && direction < 0:
		err = s.nav.Back(ctx)
	case s.nav != nil:
		err = s.nav.Forward(ctx)
	default:
		_, err = s.exec.Evaluate(ctx, fmt.Sprintf(`window.history.go(%d)`, direction))
	}
	if err != nil {
		s.hub.Abandon(token)
		return nil, err
	}
	outcome, err := s.waitOn(ctx, token, ch)
	if err != nil {
		return nil, err
	}
	return map[string]any{"ok": outcome.OK, "url": outcome.URL}, nil
}

// ReloadAndWait reloads the page and blocks until the navigation
// lifecycle reports completion. Also used by the retry policy's reload
// strategy.
func (s *Server) ReloadAndWait(ctx context.Context) error {
	token, ch := s.hub.Register()
	var err error
	if s.nav != nil {
		err = s.nav.Reload(ctx)
	} else {
		_, err = s.exec.Evaluate(ctx, `window.location.reload()`)
	}
	if err != nil {
		s.hub.Abandon(token)
		return err
	}
	outcome, werr := s.waitOn(ctx, token, ch)
	if werr != nil {
		return werr
	}
	if !outcome.OK {
		return schemas.NewError(schemas.ErrScriptExecution, "reload failed: %s", outcome.Error)
	}
	return nil
}

func (s *Server) awaitNavigation(ctx context.Context) (sandbox.NavigationOutcome, error) {
	token, ch := s.hub.Register()
	return s.waitOn(ctx, token, ch)
}

// waitOn blocks for a navigation signal, bounded by NavigationTimeout. A
// timed-out waiter is removed from the registry so a late signal cannot
// leak into it.
func (s *Server) waitOn(ctx context.Context, token string, ch <-chan sandbox.NavigationOutcome) (sandbox.NavigationOutcome, error) {
	timer := time.NewTimer(s.opts.NavigationTimeout)
	defer timer.Stop()
	select {
	case outcome := <-ch:
		return outcome, nil
	case <-timer.C:
		s.hub.Abandon(token)
		return sandbox.NavigationOutcome{}, schemas.NewError(schemas.ErrTimeout,
			"navigation did not complete within %v", s.opts.NavigationTimeout)
	case <-ctx.Done():
		s.hub.Abandon(token)
		return sandbox.NavigationOutcome{}, schemas.NewError(schemas.ErrTimeout,
			"navigation wait canceled: %v", ctx.Err())
	}
}

func (s *Server) runScreenshot(ctx context.Context, cmd schemas.Command) (map[string]any, error) {
	if s.capt == nil {
		return nil, schemas.NewError(schemas.ErrInvalidInput, "surface has no capture capability")
	}
	params, err := schemas.DecodeParams[schemas.ScreenshotParams](cmd)
	if err != nil {
		return nil, schemas.NewError(schemas.ErrInvalidInput, "%v", err)
	}
	data, err := s.capt.Screenshot(ctx, params.FullPage)
	if err != nil {
		return nil, schemas.NewError(schemas.ErrScriptExecution, "screenshot: %v", err)
	}
	return map[string]any{"bytes": len(data), "data": data, "fullPage": params.FullPage}, nil
}

// snapshotCookies best-effort persists the current cookies as an opaque
// per-domain blob.
func (s *Server) snapshotCookies(ctx context.Context, cookies []schemas.Cookie) {
	if s.cache == nil || len(cookies) == 0 {
		return
	}
	u, err := s.exec.GetURL(ctx)
	if err != nil || u == "" {
		return
	}
	blob, err := schemas.MarshalJSONValue(cookies)
	if err != nil {
		return
	}
	if err := s.cache.SaveCookies(ctx, u, blob); err != nil {
		s.logger.Debug("cookie snapshot failed", zap.Error(err))
	}
}

func (s *Server) runCacheCommand(ctx context.Context, cmd schemas.Command) (map[string]any, error) {
	if s.cache == nil {
		return nil, schemas.NewError(schemas.ErrInvalidInput, "selector cache not configured")
	}
	switch cmd.Method {
	case schemas.MethodSelectorLearn:
		params, err := schemas.DecodeParams[schemas.SelectorLearnParams](cmd)
		if err != nil {
			return nil, schemas.NewError(schemas.ErrInvalidInput, "%v", err)
		}
		entry, err := s.cache.Learn(ctx, params.Action, params.Selector, params.URL, params.Attributes)
		if err != nil {
			return nil, err
		}
		return map[string]any{"selector": entry.Selector, "reliability": entry.Reliability()}, nil
	case schemas.MethodSelectorRecall:
		params, err := schemas.DecodeParams[schemas.SelectorRecallParams](cmd)
		if err != nil {
			return nil, schemas.NewError(schemas.ErrInvalidInput, "%v", err)
		}
		entry, err := s.cache.Recall(ctx, params.Action, params.URL)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			return map[string]any{"found": false}, nil
		}
		return map[string]any{
			"found":        true,
			"selector":     entry.Selector,
			"successCount": entry.SuccessCount,
			"failCount":    entry.FailCount,
			"reliability":  entry.Reliability(),
			"attributes":   entry.Attributes,
		}, nil
	case schemas.MethodSelectorFail:
		params, err := schemas.DecodeParams[schemas.SelectorFailParams](cmd)
		if err != nil {
			return nil, schemas.NewError(schemas.ErrInvalidInput, "%v", err)
		}
		recorded, err := s.cache.RecordFailure(ctx, params.Action, params.Selector, params.URL)
		if err != nil {
			return nil, err
		}
		return map[string]any{"recorded": recorded}, nil
	case schemas.MethodSelectorClear:
		params, err := schemas.DecodeParams[schemas.SelectorClearParams](cmd)
		if err != nil {
			return nil, schemas.NewError(schemas.ErrInvalidInput, "%v", err)
		}
		n, err := s.cache.Clear(ctx, params.Domain)
		if err != nil {
			return nil, err
		}
		return map[string]any{"deleted": n}, nil
	}
	return nil, schemas.NewError(schemas.ErrInvalidInput, "unknown cache method %q", cmd.Method)
}

// toResultMap flattens a typed result into the protocol's generic result
// payload.
func toResultMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decoding result: %w", err)
	}
	return m, nil
}
