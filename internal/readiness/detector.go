// internal/readiness/detector.go

// Package readiness decides when a page is safe to act on: load state
// complete, DOM mutations quiet, network quiet, and an optional required
// element present. It is a level-triggered poll over in-page
// instrumentation, not an edge-triggered callback.
package readiness

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/halcyonforge/webpilot/api/schemas"
	"github.com/halcyonforge/webpilot/internal/clock"
	"github.com/halcyonforge/webpilot/internal/sandbox"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultStability = 500 * time.Millisecond
	DefaultInterval  = 100 * time.Millisecond
)

// setupScript installs the page instrumentation: a MutationObserver
// recording the most recent mutation timestamp, and wrapped fetch/XHR
// primitives tracking in-flight request count and last network activity.
// The guard makes re-installation a no-op, so re-entrant readiness checks
// are safe. A navigation discards the whole window object, which is what
// invalidates quiescence history from the prior document.
const setupScript = `(function(){
	if (window.__wpReady && window.__wpReady.installed) return true;
	const state = {
		installed: true,
		lastMutation: Date.now(),
		lastNetwork: Date.now(),
		pending: 0
	};
	window.__wpReady = state;

	new MutationObserver(function(){ state.lastMutation = Date.now(); })
		.observe(document.documentElement, {childList:true, subtree:true, attributes:true, characterData:true});

	const origFetch = window.fetch;
	if (origFetch) {
		window.fetch = function(){
			state.pending++;
			state.lastNetwork = Date.now();
			return origFetch.apply(this, arguments).finally(function(){
				state.pending--;
				state.lastNetwork = Date.now();
			});
		};
	}

	const origSend = XMLHttpRequest.prototype.send;
	XMLHttpRequest.prototype.send = function(){
		state.pending++;
		state.lastNetwork = Date.now();
		this.addEventListener('loadend', function(){
			state.pending--;
			state.lastNetwork = Date.now();
		});
		return origSend.apply(this, arguments);
	};
	return true;
})()`

// checkScript reads the instrumentation. Elapsed times are computed
// in-page so the readiness decision never mixes clock domains.
func checkScript(requiredSelector string) string {
	return fmt.Sprintf(`(function(){
	const s = window.__wpReady || {installed:false, lastMutation:0, lastNetwork:0, pending:0};
	const now = Date.now();
	return {
		installed: s.installed === true,
		loadState: document.readyState,
		msSinceMutation: now - s.lastMutation,
		msSinceNetwork: now - s.lastNetwork,
		pending: s.pending,
		requiredPresent: %s === '' ? true : document.querySelector(%s) !== null
	};
})()`, sandbox.JSString(requiredSelector), sandbox.JSString(requiredSelector))
}

// Options tunes one readiness wait. Zero values take the defaults above.
type Options struct {
	Timeout          time.Duration
	Stability        time.Duration
	Interval         time.Duration
	RequiredSelector string
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Stability <= 0 {
		o.Stability = DefaultStability
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	return o
}

// ProbeState is one observation of the page instrumentation.
type ProbeState struct {
	Installed       bool   `json:"installed"`
	LoadState       string `json:"loadState"`
	MsSinceMutation int    `json:"msSinceMutation"`
	MsSinceNetwork  int    `json:"msSinceNetwork"`
	Pending         int    `json:"pending"`
	RequiredPresent bool   `json:"requiredPresent"`
}

// Result reports the wait outcome. Elapsed and Checks are filled in
// regardless of outcome so callers can tell "ready quickly" from "timed
// out never stabilizing".
type Result struct {
	Ready     bool          `json:"ready"`
	Elapsed   time.Duration `json:"elapsed"`
	Checks    int           `json:"checks"`
	LastState ProbeState    `json:"lastState"`
}

// Detector polls page readiness through the sandbox.
type Detector struct {
	eval   sandbox.Evaluator
	clk    clock.Clock
	logger *zap.Logger
}

// New builds a Detector. A nil clock defaults to the real clock.
func New(eval sandbox.Evaluator, clk clock.Clock, logger *zap.Logger) *Detector {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{eval: eval, clk: clk, logger: logger.Named("readiness")}
}

// Wait polls until the page is ready or the timeout elapses. Non-readiness
// at timeout is not an error; only sandbox failures are.
func (d *Detector) Wait(ctx context.Context, opts Options) (Result, error) {
	opts = opts.withDefaults()
	start := d.clk.Now()
	deadline := start.Add(opts.Timeout)

	if _, err := d.eval.Evaluate(ctx, setupScript); err != nil {
		return Result{}, schemas.NewError(schemas.ErrScriptExecution, "readiness setup: %v", err)
	}

	script := checkScript(opts.RequiredSelector)
	var result Result
	for {
		state, err := d.probe(ctx, script)
		if err != nil {
			return result, err
		}
		result.Checks++
		result.LastState = state
		result.Elapsed = d.clk.Now().Sub(start)

		if ready(state, opts.Stability) {
			result.Ready = true
			return result, nil
		}
		if !d.clk.Now().Before(deadline) {
			d.logger.Debug("page never stabilized",
				zap.Int("checks", result.Checks),
				zap.Duration("elapsed", result.Elapsed),
				zap.String("loadState", state.LoadState),
				zap.Int("pending", state.Pending))
			return result, nil
		}
		if err := d.clk.Sleep(ctx, opts.Interval); err != nil {
			result.Elapsed = d.clk.Now().Sub(start)
			return result, schemas.NewError(schemas.ErrTimeout, "readiness wait canceled: %v", err)
		}
	}
}

func (d *Detector) probe(ctx context.Context, script string) (ProbeState, error) {
	v, err := d.eval.Evaluate(ctx, script)
	if err != nil {
		return ProbeState{}, schemas.NewError(schemas.ErrScriptExecution, "readiness probe: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return ProbeState{}, schemas.NewError(schemas.ErrScriptExecution, "malformed probe result: %T", v)
	}
	state := ProbeState{
		LoadState: str(m["loadState"]),
		Pending:   num(m["pending"]),
	}
	state.Installed, _ = m["installed"].(bool)
	state.MsSinceMutation = num(m["msSinceMutation"])
	state.MsSinceNetwork = num(m["msSinceNetwork"])
	state.RequiredPresent, _ = m["requiredPresent"].(bool)
	return state, nil
}

// ready computes the level-triggered readiness predicate.
func ready(s ProbeState, stability time.Duration) bool {
	stabMs := int(stability / time.Millisecond)
	return s.Installed &&
		s.LoadState == "complete" &&
		s.MsSinceMutation >= stabMs &&
		s.Pending == 0 &&
		s.MsSinceNetwork >= stabMs &&
		s.RequiredPresent
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func num(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	default:
		return 0
	}
}
