// -- cmd/serve.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/halcyonforge/webpilot/api/schemas"
	"github.com/halcyonforge/webpilot/internal/actions"
	"github.com/halcyonforge/webpilot/internal/clock"
	"github.com/halcyonforge/webpilot/internal/config"
	"github.com/halcyonforge/webpilot/internal/device"
	"github.com/halcyonforge/webpilot/internal/extract"
	"github.com/halcyonforge/webpilot/internal/marks"
	"github.com/halcyonforge/webpilot/internal/observability"
	"github.com/halcyonforge/webpilot/internal/readiness"
	"github.com/halcyonforge/webpilot/internal/resilience"
	"github.com/halcyonforge/webpilot/internal/sandbox"
	"github.com/halcyonforge/webpilot/internal/sandbox/cdp"
	"github.com/halcyonforge/webpilot/internal/selcache"
	"github.com/halcyonforge/webpilot/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the command protocol server against a live browser.",
	RunE: func(cmd *cobra.Command, args []string) error {
		var cfg config.Config
		if err := viper.Unmarshal(&cfg); err != nil {
			return fmt.Errorf("failed to unmarshal config: %w", err)
		}
		return runServe(cmd.Context(), &cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Int("port", 0, "listen port (overrides config)")
	serveCmd.Flags().Bool("headless", true, "run the browser headless")
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("sandbox.headless", serveCmd.Flags().Lookup("headless"))
}

// startDevice boots the configured device runner and returns its shutdown
// hook. The device section is the escape hatch for deployments driving a
// simulator rather than a desktop browser; when disabled this is a no-op.
// A nil runner defaults to real process execution.
func startDevice(ctx context.Context, cfg config.DeviceConfig, runner device.CommandRunner, logger *zap.Logger) (func(), error) {
	if !cfg.Enabled {
		return func() {}, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctrl := device.New(runner, cfg.Runner, cfg.UDID, logger)
	if err := ctrl.Boot(ctx); err != nil {
		return nil, fmt.Errorf("booting device %s: %w", cfg.UDID, err)
	}
	logger.Info("Device booted", zap.String("udid", cfg.UDID))
	return func() {
		if err := ctrl.Shutdown(context.Background()); err != nil {
			logger.Warn("Device shutdown failed", zap.Error(err))
		}
	}, nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := observability.GetLogger()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(config.DataDir(), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	deviceStop, err := startDevice(ctx, cfg.Device, nil, logger)
	if err != nil {
		return err
	}
	defer deviceStop()

	hub := server.NewNavHub(logger)

	surface, err := cdp.New(ctx, cdp.Options{
		Headless:  cfg.Sandbox.Headless,
		UserAgent: cfg.Sandbox.UserAgent,
		Args:      cfg.Sandbox.Args,
	}, hub, logger)
	if err != nil {
		return fmt.Errorf("launching browser: %w", err)
	}
	defer surface.Close()

	session := sandbox.NewSession(surface, cfg.Sandbox.EvalsPerSecond, logger)

	if err := os.MkdirAll(filepath.Dir(cfg.Cache.Path), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	store, err := selcache.OpenSQL(cfg.Cache.Path)
	if err != nil {
		return fmt.Errorf("opening selector cache: %w", err)
	}
	defer store.Close()
	cache := selcache.New(store, clock.Real{}, logger)

	exec := actions.New(session, clock.Real{}, logger)
	detector := readiness.New(session, clock.Real{}, logger)
	engine := extract.New(session, logger)
	labeler := marks.New(session, logger)

	capturer := resilience.NewArtifactCapturer(cfg.Artifacts.Dir, session, surface, logger)

	// The retry policy's reload strategy needs the server's navigation
	// await; bind it after construction through the indirection.
	var srv *server.Server
	reload := func(ctx context.Context) error {
		if srv == nil {
			return nil
		}
		return srv.ReloadAndWait(ctx)
	}
	policy := resilience.NewPolicy(session, reload, capturer, clock.Real{}, logger)

	var strategies []schemas.RetryStrategy
	if cfg.Retry.Enabled {
		for _, s := range cfg.Retry.Strategies {
			strategies = append(strategies, schemas.RetryStrategy(s))
		}
	}

	srv = server.New(server.Deps{
		Exec:     exec,
		Detector: detector,
		Engine:   engine,
		Labeler:  labeler,
		Cache:    cache,
		Policy:   policy,
		Hub:      hub,
		Nav:      surface,
		Capt:     surface,
	}, server.Options{
		DefaultTimeout:    cfg.Server.DefaultTimeout,
		NavigationTimeout: cfg.Server.NavigationTimeout,
		RetryStrategies:   strategies,
		MaxRetryAttempts:  cfg.Retry.MaxAttempts,
	}, logger)

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Protocol server listening", zap.String("addr", cfg.Server.Addr()))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
