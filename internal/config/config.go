// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Sandbox   SandboxConfig   `mapstructure:"sandbox" yaml:"sandbox"`
	Readiness ReadinessConfig `mapstructure:"readiness" yaml:"readiness"`
	Retry     RetryConfig     `mapstructure:"retry" yaml:"retry"`
	Cache     CacheConfig     `mapstructure:"cache" yaml:"cache"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
	Device    DeviceConfig    `mapstructure:"device" yaml:"device"`
}

// LoggerConfig controls the zap logger and its file sink.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig maps log levels to terminal colors for console output.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// ServerConfig controls the command protocol endpoint.
type ServerConfig struct {
	Host              string        `mapstructure:"host" yaml:"host"`
	Port              int           `mapstructure:"port" yaml:"port"`
	DefaultTimeout    time.Duration `mapstructure:"default_timeout" yaml:"default_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// SandboxConfig controls the browser process and the script surface.
type SandboxConfig struct {
	Headless       bool     `mapstructure:"headless" yaml:"headless"`
	UserAgent      string   `mapstructure:"user_agent" yaml:"user_agent"`
	Args           []string `mapstructure:"args" yaml:"args"`
	EvalsPerSecond float64  `mapstructure:"evals_per_second" yaml:"evals_per_second"`
}

// ReadinessConfig tunes the page readiness detector defaults.
type ReadinessConfig struct {
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Stability time.Duration `mapstructure:"stability" yaml:"stability"`
	Interval  time.Duration `mapstructure:"interval" yaml:"interval"`
}

// RetryConfig controls the action retry policy.
type RetryConfig struct {
	Enabled     bool     `mapstructure:"enabled" yaml:"enabled"`
	Strategies  []string `mapstructure:"strategies" yaml:"strategies"`
	MaxAttempts int      `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// CacheConfig locates the selector reliability database.
type CacheConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// ArtifactsConfig locates failure-artifact bundles.
type ArtifactsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// DeviceConfig controls the optional device-level runner.
type DeviceConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Runner  string `mapstructure:"runner" yaml:"runner"`
	UDID    string `mapstructure:"udid" yaml:"udid"`
}

// DataDir resolves the per-user data directory.
func DataDir() string {
	home, err := homedir.Dir()
	if err != nil {
		return ".webpilot"
	}
	return filepath.Join(home, ".webpilot")
}

// NewDefaultConfig creates a configuration populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with static defaults.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	dataDir := DataDir()

	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "webpilot")
	v.SetDefault("logger.log_file", filepath.Join(dataDir, "webpilot.log"))
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "red")

	// -- Server --
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8931)
	v.SetDefault("server.default_timeout", "30s")
	v.SetDefault("server.navigation_timeout", "30s")

	// -- Sandbox --
	v.SetDefault("sandbox.headless", true)
	v.SetDefault("sandbox.user_agent", "")
	v.SetDefault("sandbox.args", []string{})
	v.SetDefault("sandbox.evals_per_second", 50.0)

	// -- Readiness --
	v.SetDefault("readiness.timeout", "10s")
	v.SetDefault("readiness.stability", "500ms")
	v.SetDefault("readiness.interval", "100ms")

	// -- Retry --
	v.SetDefault("retry.enabled", true)
	v.SetDefault("retry.strategies", []string{"scroll", "wait"})
	v.SetDefault("retry.max_attempts", 3)

	// -- Cache --
	v.SetDefault("cache.path", filepath.Join(dataDir, "selectors.db"))

	// -- Artifacts --
	v.SetDefault("artifacts.dir", filepath.Join(dataDir, "artifacts"))

	// -- Device --
	v.SetDefault("device.enabled", false)
	v.SetDefault("device.runner", "xcrun")
	v.SetDefault("device.udid", "booted")
}
