// -- cmd/serve_test.go --
package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonforge/webpilot/internal/config"
)

type recordingRunner struct {
	calls [][]string
}

func (r *recordingRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	return nil, nil
}

func TestStartDevice(t *testing.T) {
	t.Run("DisabledIsNoOp", func(t *testing.T) {
		t.Parallel()
		runner := &recordingRunner{}
		stop, err := startDevice(context.Background(), config.DeviceConfig{Enabled: false}, runner, nil)
		require.NoError(t, err)
		stop()
		assert.Empty(t, runner.calls, "a disabled device section spawns nothing")
	})

	t.Run("EnabledBootsAndShutsDown", func(t *testing.T) {
		t.Parallel()
		runner := &recordingRunner{}
		cfg := config.DeviceConfig{Enabled: true, Runner: "xcrun", UDID: "ABCD-1234"}

		stop, err := startDevice(context.Background(), cfg, runner, nil)
		require.NoError(t, err)
		require.Len(t, runner.calls, 1)
		assert.Equal(t, []string{"xcrun", "simctl", "boot", "ABCD-1234"}, runner.calls[0])

		stop()
		require.Len(t, runner.calls, 2)
		assert.Equal(t, []string{"xcrun", "simctl", "shutdown", "ABCD-1234"}, runner.calls[1])
	})
}
