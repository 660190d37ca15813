// internal/device/device.go

// Package device drives a simulator or device at the OS level for the few
// operations that cannot be expressed inside a page: booting, app
// lifecycle and hardware-style input. It shells out to a configurable
// runner binary, so the package stays testable without hardware.
package device

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// CommandRunner abstracts process execution so tests can record
// invocations instead of spawning them.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes the command and returns its combined output.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return out.Bytes(), fmt.Errorf("%s %s: %w\n%s", name, strings.Join(args, " "), err, out.String())
	}
	return out.Bytes(), nil
}

// Controller exposes device operations through the runner binary.
type Controller struct {
	runner CommandRunner
	bin    string // runner binary, e.g. "xcrun"
	udid   string
	logger *zap.Logger
}

// New builds a Controller. A nil runner defaults to ExecRunner.
func New(runner CommandRunner, bin, udid string, logger *zap.Logger) *Controller {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{runner: runner, bin: bin, udid: udid, logger: logger.Named("device")}
}

func (c *Controller) run(ctx context.Context, args ...string) error {
	c.logger.Debug("device command", zap.Strings("args", args))
	_, err := c.runner.Run(ctx, c.bin, args...)
	return err
}

// Boot boots the target device. Booting an already-booted device is not
// an error.
func (c *Controller) Boot(ctx context.Context) error {
	err := c.run(ctx, "simctl", "boot", c.udid)
	if err != nil && strings.Contains(err.Error(), "Unable to boot device in current state: Booted") {
		return nil
	}
	return err
}

// Shutdown shuts the device down.
func (c *Controller) Shutdown(ctx context.Context) error {
	return c.run(ctx, "simctl", "shutdown", c.udid)
}

// InstallApp installs an app bundle.
func (c *Controller) InstallApp(ctx context.Context, path string) error {
	return c.run(ctx, "simctl", "install", c.udid, path)
}

// LaunchApp launches an installed app by bundle identifier.
func (c *Controller) LaunchApp(ctx context.Context, bundleID string) error {
	return c.run(ctx, "simctl", "launch", c.udid, bundleID)
}

// TerminateApp stops a running app. Terminating a non-running app is not
// an error.
func (c *Controller) TerminateApp(ctx context.Context, bundleID string) error {
	err := c.run(ctx, "simctl", "terminate", c.udid, bundleID)
	if err != nil && strings.Contains(err.Error(), "found nothing to terminate") {
		return nil
	}
	return err
}

// OpenURL opens a URL on the device, typically launching the default
// browser.
func (c *Controller) OpenURL(ctx context.Context, url string) error {
	return c.run(ctx, "simctl", "openurl", c.udid, url)
}

// Tap synthesizes a hardware-level tap at screen coordinates.
func (c *Controller) Tap(ctx context.Context, x, y int) error {
	return c.run(ctx, "simctl", "io", c.udid, "tap",
		strconv.Itoa(x), strconv.Itoa(y))
}

// PressButton presses a hardware button (home, lock, ...).
func (c *Controller) PressButton(ctx context.Context, button string) error {
	return c.run(ctx, "simctl", "io", c.udid, "button", button)
}
