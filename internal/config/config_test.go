// internal/config/config_test.go
package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "webpilot", cfg.Logger.ServiceName)
	assert.Equal(t, "green", cfg.Logger.Colors.Info)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8931, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1:8931", cfg.Server.Addr())
	assert.Equal(t, 30*time.Second, cfg.Server.DefaultTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.NavigationTimeout)

	assert.True(t, cfg.Sandbox.Headless)
	assert.Equal(t, 50.0, cfg.Sandbox.EvalsPerSecond)

	assert.Equal(t, 10*time.Second, cfg.Readiness.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Readiness.Stability)
	assert.Equal(t, 100*time.Millisecond, cfg.Readiness.Interval)

	assert.True(t, cfg.Retry.Enabled)
	assert.Equal(t, []string{"scroll", "wait"}, cfg.Retry.Strategies)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)

	assert.False(t, cfg.Device.Enabled)
	assert.Equal(t, "xcrun", cfg.Device.Runner)
	assert.Equal(t, "booted", cfg.Device.UDID)
}

func TestDataDirPaths(t *testing.T) {
	t.Parallel()
	cfg := NewDefaultConfig()
	dataDir := DataDir()

	assert.True(t, strings.HasSuffix(dataDir, ".webpilot"))
	assert.Equal(t, filepath.Join(dataDir, "selectors.db"), cfg.Cache.Path)
	assert.Equal(t, filepath.Join(dataDir, "artifacts"), cfg.Artifacts.Dir)
	assert.Equal(t, filepath.Join(dataDir, "webpilot.log"), cfg.Logger.LogFile)
}

func TestOverridesBeatDefaults(t *testing.T) {
	t.Parallel()
	v := viper.New()
	SetDefaults(v)
	v.Set("server.port", 9000)
	v.Set("retry.strategies", []string{"reload"})

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"reload"}, cfg.Retry.Strategies)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host, "unset keys keep their defaults")
}
