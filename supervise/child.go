// Copyright 2026 The Wanlink Authors
// SPDX-License-Identifier: Apache-2.0

package supervise

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"sync"
)

// maxLineLength bounds a single scanned output line. Longer lines are
// truncated by the scanner rather than wedging the reader.
const maxLineLength = 1024 * 1024

// ChildSpec describes one child process to launch and supervise.
type ChildSpec struct {
	// Name labels the child's output and exit reports.
	Name string

	// Command is the executable path.
	Command string

	// Args are the command arguments, in order.
	Args []string

	// Env holds environment overrides appended to the parent
	// environment.
	Env map[string]string
}

// child is the supervisor-owned record for one running process:
// process handle, per-stream line queues, and exit status once
// observed. Created at launch, mutated only by its own reader/waiter
// goroutines and the supervision loop.
type child struct {
	name   string
	cmd    *exec.Cmd
	stdout *lineQueue
	stderr *lineQueue

	// readers is waited on before reaping the process, so every line
	// the child wrote is enqueued before done closes. This is what
	// makes the exit-time flush lossless.
	readers sync.WaitGroup

	// done closes after the exit status is recorded in exitCode.
	done     chan struct{}
	exitCode int

	// reported is set by the supervision loop (its sole goroutine)
	// once the child's exit has been printed.
	reported bool
}

// launchChild starts the process with both output streams captured
// and the background readers running.
func launchChild(spec ChildSpec, logger *slog.Logger) (*child, error) {
	cmd := exec.Command(spec.Command, spec.Args...)
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), formatEnv(spec.Env)...)
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("supervise: stdout pipe for %s: %w", spec.Name, err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("supervise: stderr pipe for %s: %w", spec.Name, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("supervise: starting %s (%s): %w", spec.Name, spec.Command, err)
	}

	c := &child{
		name:   spec.Name,
		cmd:    cmd,
		stdout: &lineQueue{},
		stderr: &lineQueue{},
		done:   make(chan struct{}),
	}

	c.readers.Add(2)
	go c.readStream(stdoutPipe, c.stdout, logger)
	go c.readStream(stderrPipe, c.stderr, logger)
	go c.awaitExit()

	logger.Info("child started", "child", spec.Name, "command", spec.Command, "pid", cmd.Process.Pid)
	return c, nil
}

// readStream copies lines from one captured stream into its queue
// until EOF. A child that exits mid-line still has the partial line
// delivered (bufio.Scanner returns the final unterminated token).
func (c *child) readStream(stream io.Reader, queue *lineQueue, logger *slog.Logger) {
	defer c.readers.Done()

	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 64*1024), maxLineLength)
	for scanner.Scan() {
		queue.push(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("reading child stream", "child", c.name, "error", err)
	}
}

// awaitExit reaps the process after both stream readers reach EOF and
// records the exit code. Reader-first ordering matters: exec.Cmd.Wait
// tears down the pipes, so reaping before EOF could lose buffered
// output.
func (c *child) awaitExit() {
	c.readers.Wait()

	err := c.cmd.Wait()
	switch exitErr := err.(type) {
	case nil:
		c.exitCode = 0
	case *exec.ExitError:
		c.exitCode = exitErr.ExitCode()
	default:
		// Wait failed for a non-exit reason; nothing better to report.
		c.exitCode = -1
	}
	close(c.done)
}

// exitStatus reports the child's exit code, if it has exited. Never
// blocks.
func (c *child) exitStatus() (int, bool) {
	select {
	case <-c.done:
		return c.exitCode, true
	default:
		return 0, false
	}
}

// signal delivers sig to the child. Fire-and-forget: delivery to an
// already-exited process fails harmlessly.
func (c *child) signal(sig os.Signal) {
	if _, exited := c.exitStatus(); exited {
		return
	}
	_ = c.cmd.Process.Signal(sig)
}

// formatEnv renders the override map as KEY=VALUE strings in sorted
// key order, so a child's environment is deterministic.
func formatEnv(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	formatted := make([]string, 0, len(keys))
	for _, key := range keys {
		formatted = append(formatted, key+"="+env[key])
	}
	return formatted
}
