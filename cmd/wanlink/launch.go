// Copyright 2026 The Wanlink Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/relayforge/wanlink/lib/cli"
	"github.com/relayforge/wanlink/lib/config"
	"github.com/relayforge/wanlink/supervise"
)

// heartbeatBinaryName is the sibling binary spawned to monitor the
// tunnel unless --no-heartbeat is passed.
const heartbeatBinaryName = "wanlink-heartbeat"

// tunnelParams collects everything launchTunnel needs to assemble and
// supervise one end of a tunnel.
type tunnelParams struct {
	// name labels the supervision group ("server" or "client").
	name string

	// transport is the fully expanded transport child template.
	transport config.ChildTemplate

	// heartbeatRole is the role passed to the heartbeat child.
	heartbeatRole string

	domain      int
	noHeartbeat bool
	configPath  string
	config      *config.Config
}

// launchTunnel builds the child set for one tunnel end, supervises it
// until the first exit or an operator interrupt, and maps the outcome
// to a process exit status: zero for interrupt, the child's code
// otherwise.
func launchTunnel(params tunnelParams) error {
	logger := cli.NewCommandLogger().With(
		"command", params.name,
		"domain", params.domain)
	slog.SetDefault(logger)

	if params.transport.Command == "" {
		return fmt.Errorf("no transport command configured: set transport.%s.command or $%s",
			params.name, config.EnvTransportExec)
	}

	specs := []supervise.ChildSpec{{
		Name:    "transport",
		Command: params.transport.Command,
		Args:    params.transport.Args,
		Env:     params.transport.Env,
	}}

	if !params.noHeartbeat {
		spec, err := heartbeatSpec(params, logger)
		if err != nil {
			return err
		}
		specs = append(specs, spec)
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	group := supervise.NewGroup(supervise.GroupConfig{
		Name:   params.name,
		Logger: logger,
	})
	if err := group.Start(specs); err != nil {
		return err
	}

	result, err := group.Run(ctx)
	if err != nil {
		return err
	}
	if result.Interrupted {
		return nil
	}

	logger.Info("tunnel ended",
		"child", result.Child,
		"exit_code", result.ExitCode)
	switch {
	case result.ExitCode == 0:
		return nil
	case result.ExitCode < 0:
		return &cli.ExitError{Code: 1}
	default:
		return &cli.ExitError{Code: result.ExitCode}
	}
}

// heartbeatSpec builds the child spec for the liveness monitor,
// resolving the binary from config or by sibling lookup.
func heartbeatSpec(params tunnelParams, logger *slog.Logger) (supervise.ChildSpec, error) {
	binary := params.config.Heartbeat.Binary
	if binary == "" {
		binary = findSiblingBinary(heartbeatBinaryName, logger)
	}
	if err := validateBinary(binary, heartbeatBinaryName); err != nil {
		return supervise.ChildSpec{}, fmt.Errorf(
			"%w\n  Install %s or set heartbeat.binary in the config file",
			err, heartbeatBinaryName)
	}

	args := []string{
		params.heartbeatRole,
		"--domain", strconv.Itoa(params.domain),
		"--bus", params.config.Bus.Address,
	}
	if params.configPath != "" {
		args = append(args, "--config", params.configPath)
	}

	return supervise.ChildSpec{
		Name:    "heartbeat",
		Command: binary,
		Args:    args,
	}, nil
}

// findSiblingBinary looks for a wanlink binary by name, first next to
// the current executable (the standard co-deployment layout), then on
// PATH. Returns an empty string if not found; the caller validates the
// result with validateBinary before proceeding.
func findSiblingBinary(name string, logger *slog.Logger) string {
	executable, err := os.Executable()
	if err == nil {
		candidate := filepath.Join(filepath.Dir(executable), name)
		if _, err := os.Stat(candidate); err == nil {
			logger.Info("found binary next to launcher", "name", name, "path", candidate)
			return candidate
		}
	}

	path, err := exec.LookPath(name)
	if err == nil {
		logger.Info("found binary on PATH", "name", name, "path", path)
		return path
	}

	return ""
}

// validateBinary checks that a binary path points to a regular,
// executable file. Returns a precise error describing what is wrong
// and where it looked.
func validateBinary(path, name string) error {
	if path == "" {
		return fmt.Errorf("%s not found (checked next to the wanlink binary and PATH)", name)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s at %q: %w", name, path, err)
	}

	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s at %q is not a regular file (mode %s)", name, path, info.Mode())
	}

	if info.Mode()&0111 == 0 {
		return fmt.Errorf("%s at %q is not executable (mode %s)", name, path, info.Mode())
	}

	return nil
}
