// internal/sandbox/sandbox_test.go
package sandbox

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// overlapEval fails the test if two evaluations ever run concurrently.
type overlapEval struct {
	inFlight atomic.Int32
	calls    atomic.Int32
}

func (o *overlapEval) Evaluate(_ context.Context, _ string) (any, error) {
	if o.inFlight.Add(1) != 1 {
		return nil, errors.New("concurrent evaluation detected")
	}
	time.Sleep(time.Millisecond)
	o.inFlight.Add(-1)
	o.calls.Add(1)
	return "ok", nil
}

func TestSessionSerializesEvaluation(t *testing.T) {
	defer goleak.VerifyNone(t)
	eval := &overlapEval{}
	session := NewSession(eval, 0, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := session.Evaluate(context.Background(), "1+1")
			assert.NoError(t, err)
			assert.Equal(t, "ok", v)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(16), eval.calls.Load())
}

type countingEval struct{ calls int }

func (c *countingEval) Evaluate(context.Context, string) (any, error) {
	c.calls++
	return nil, nil
}

func TestSessionCanceledContext(t *testing.T) {
	t.Parallel()
	eval := &countingEval{}
	session := NewSession(eval, 10, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := session.Evaluate(ctx, "1+1")
	require.Error(t, err)
	assert.Zero(t, eval.calls, "a canceled context never reaches the surface")
}

func TestSessionPropagatesErrors(t *testing.T) {
	t.Parallel()
	boom := errors.New("tab crashed")
	session := NewSession(failEval{err: boom}, 0, nil)

	_, err := session.Evaluate(context.Background(), "1+1")
	assert.ErrorIs(t, err, boom)
}

type failEval struct{ err error }

func (f failEval) Evaluate(context.Context, string) (any, error) { return nil, f.err }

func TestSessionUnwrap(t *testing.T) {
	t.Parallel()
	eval := &countingEval{}
	session := NewSession(eval, 0, nil)
	assert.Same(t, eval, session.Unwrap().(*countingEval))
}
