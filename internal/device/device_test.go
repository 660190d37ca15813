// internal/device/device_test.go
package device

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls [][]string
	err   error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return nil, f.err
}

func TestControllerCommands(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{}
	c := New(runner, "xcrun", "UDID-1", nil)
	ctx := context.Background()

	require.NoError(t, c.Boot(ctx))
	require.NoError(t, c.LaunchApp(ctx, "com.apple.mobilesafari"))
	require.NoError(t, c.OpenURL(ctx, "https://example.com"))
	require.NoError(t, c.Tap(ctx, 120, 480))
	require.NoError(t, c.PressButton(ctx, "home"))
	require.NoError(t, c.Shutdown(ctx))

	want := [][]string{
		{"xcrun", "simctl", "boot", "UDID-1"},
		{"xcrun", "simctl", "launch", "UDID-1", "com.apple.mobilesafari"},
		{"xcrun", "simctl", "openurl", "UDID-1", "https://example.com"},
		{"xcrun", "simctl", "io", "UDID-1", "tap", "120", "480"},
		{"xcrun", "simctl", "io", "UDID-1", "button", "home"},
		{"xcrun", "simctl", "shutdown", "UDID-1"},
	}
	assert.Equal(t, want, runner.calls)
}

func TestTolerableFailures(t *testing.T) {
	t.Parallel()

	t.Run("BootAlreadyBooted", func(t *testing.T) {
		runner := &fakeRunner{err: errors.New("Unable to boot device in current state: Booted")}
		c := New(runner, "xcrun", "UDID-1", nil)
		assert.NoError(t, c.Boot(context.Background()))
	})

	t.Run("TerminateNothingRunning", func(t *testing.T) {
		runner := &fakeRunner{err: errors.New("found nothing to terminate")}
		c := New(runner, "xcrun", "UDID-1", nil)
		assert.NoError(t, c.TerminateApp(context.Background(), "com.example.app"))
	})

	t.Run("RealFailurePropagates", func(t *testing.T) {
		runner := &fakeRunner{err: errors.New("Invalid device: UDID-1")}
		c := New(runner, "xcrun", "UDID-1", nil)
		assert.Error(t, c.Boot(context.Background()))
		assert.Error(t, c.TerminateApp(context.Background(), "com.example.app"))
	})
}
