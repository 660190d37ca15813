// internal/clock/clock.go

// Package clock abstracts wall-clock access so that the poll and retry
// loops built on it can be tested without real delays.
package clock

import (
	"context"
	"sync"
	"time"
)

// Clock supplies time to bounded loops. Sleep must return early with the
// context's error when the context is canceled.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// Real is the production clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fake is a manually advanced clock for tests. Sleep advances the fake
// time immediately instead of blocking.
type Fake struct {
	mu  sync.Mutex
	now time.Time
	// Slept records every sleep duration requested, in order.
	Slept []time.Duration
}

// NewFake starts a fake clock at the given instant.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.Slept = append(f.Slept, d)
	f.mu.Unlock()
	return nil
}

// Advance moves the fake clock forward without recording a sleep.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
