// internal/actions/executor_test.go
package actions

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonforge/webpilot/api/schemas"
	"github.com/halcyonforge/webpilot/internal/clock"
)

// queueEval replays canned responses in order and records the scripts it
// was asked to run.
type queueEval struct {
	responses []any
	errs      []error
	scripts   []string
}

func (q *queueEval) Evaluate(_ context.Context, script string) (any, error) {
	q.scripts = append(q.scripts, script)
	i := len(q.scripts) - 1
	var err error
	if i < len(q.errs) {
		err = q.errs[i]
	}
	var resp any
	if i < len(q.responses) {
		resp = q.responses[i]
	} else if len(q.responses) > 0 {
		resp = q.responses[len(q.responses)-1]
	}
	return resp, err
}

func success() map[string]any { return map[string]any{"success": true} }

func failure(reason string) map[string]any {
	return map[string]any{"success": false, "error": reason}
}

func TestExecutorActions(t *testing.T) {
	t.Run("ClickSuccess", func(t *testing.T) {
		t.Parallel()
		eval := &queueEval{responses: []any{success()}}
		exec := New(eval, nil, nil)

		require.NoError(t, exec.Click(context.Background(), "#submit"))
		require.Len(t, eval.scripts, 1)
		assert.Contains(t, eval.scripts[0], `"#submit"`, "selector must be JSON-escaped into the script")
	})

	t.Run("ClickNotFound", func(t *testing.T) {
		t.Parallel()
		exec := New(&queueEval{responses: []any{failure("not_found")}}, nil, nil)

		err := exec.Click(context.Background(), "#missing")
		require.Error(t, err)
		assert.True(t, schemas.IsCode(err, schemas.ErrElementNotFound))
		assert.Contains(t, err.Error(), "#missing")
	})

	t.Run("TypeNoEditable", func(t *testing.T) {
		t.Parallel()
		exec := New(&queueEval{responses: []any{failure("no_editable")}}, nil, nil)

		err := exec.Type(context.Background(), "hello")
		require.Error(t, err)
		assert.True(t, schemas.IsCode(err, schemas.ErrNoEditableElement))
	})

	t.Run("SandboxFailure", func(t *testing.T) {
		t.Parallel()
		exec := New(&queueEval{errs: []error{errors.New("tab crashed")}}, nil, nil)

		err := exec.Click(context.Background(), "#a")
		require.Error(t, err)
		assert.True(t, schemas.IsCode(err, schemas.ErrScriptExecution))
	})

	t.Run("MalformedResult", func(t *testing.T) {
		t.Parallel()
		exec := New(&queueEval{responses: []any{"just a string"}}, nil, nil)

		err := exec.Click(context.Background(), "#a")
		require.Error(t, err)
		assert.True(t, schemas.IsCode(err, schemas.ErrScriptExecution))
	})

	t.Run("FillEscapesValue", func(t *testing.T) {
		t.Parallel()
		eval := &queueEval{responses: []any{success()}}
		exec := New(eval, nil, nil)

		hostile := `"); alert(1); ("`
		require.NoError(t, exec.Fill(context.Background(), "#name", hostile))
		assert.NotContains(t, eval.scripts[0], `"); alert(1); ("`,
			"raw value must never appear unescaped in the script")
	})
}

func TestExecutorQueries(t *testing.T) {
	t.Run("QuerySelectorNoMatchIsNil", func(t *testing.T) {
		t.Parallel()
		exec := New(&queueEval{responses: []any{nil}}, nil, nil)

		info, err := exec.QuerySelector(context.Background(), "#ghost")
		require.NoError(t, err, "a query that matches nothing is not an error")
		assert.Nil(t, info)
	})

	t.Run("Count", func(t *testing.T) {
		t.Parallel()
		exec := New(&queueEval{responses: []any{float64(7)}}, nil, nil)

		n, err := exec.Count(context.Background(), "li.item")
		require.NoError(t, err)
		assert.Equal(t, 7, n)
	})

	t.Run("HasText", func(t *testing.T) {
		t.Parallel()
		exec := New(&queueEval{responses: []any{true}}, nil, nil)

		found, err := exec.HasText(context.Background(), "Welcome")
		require.NoError(t, err)
		assert.True(t, found)
	})
}

func TestWaitForSelector(t *testing.T) {
	t.Run("AppearsOnThirdPoll", func(t *testing.T) {
		t.Parallel()
		clk := clock.NewFake(time.Unix(0, 0))
		eval := &queueEval{responses: []any{false, false, true}}
		exec := New(eval, clk, nil)

		err := exec.WaitForSelector(context.Background(), "#late", 5*time.Second)
		require.NoError(t, err)
		assert.Len(t, eval.scripts, 3)
		assert.Len(t, clk.Slept, 2, "one sleep between each poll")
	})

	t.Run("Timeout", func(t *testing.T) {
		t.Parallel()
		clk := clock.NewFake(time.Unix(0, 0))
		exec := New(&queueEval{responses: []any{false}}, clk, nil)

		err := exec.WaitForSelector(context.Background(), "#never", 300*time.Millisecond)
		require.Error(t, err)
		assert.True(t, schemas.IsCode(err, schemas.ErrTimeout))
	})

	t.Run("Canceled", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		exec := New(&queueEval{responses: []any{false}}, clock.NewFake(time.Unix(0, 0)), nil)

		err := exec.WaitForSelector(ctx, "#x", time.Minute)
		require.Error(t, err)
		assert.True(t, schemas.IsCode(err, schemas.ErrTimeout))
	})
}

func TestScriptShapes(t *testing.T) {
	t.Parallel()
	// Every action script is a self-contained IIFE.
	scripts := []string{
		clickScript("#a"),
		doubleClickScript("#a"),
		fillScript("#a", "v"),
		typeScript("v"),
		pressScript("Enter"),
		hoverScript("#a"),
		scrollIntoViewScript("#a"),
		clickTextScript("Sign in"),
	}
	for _, s := range scripts {
		assert.True(t, strings.HasPrefix(s, "(function(){"), s[:20])
		assert.True(t, strings.HasSuffix(s, "})()"))
	}
	assert.Contains(t, pressScript("Enter"), "requestSubmit")
}
