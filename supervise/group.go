// Copyright 2026 The Wanlink Authors
// SPDX-License-Identifier: Apache-2.0

package supervise

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/relayforge/wanlink/lib/clock"
)

// DefaultPollInterval is the idle supervision-loop cadence: fast
// enough that output and exits surface with sub-second latency, slow
// enough not to busy-spin. Iterations that made progress loop again
// immediately.
const DefaultPollInterval = 50 * time.Millisecond

// GroupConfig holds parameters for creating a Group.
type GroupConfig struct {
	// Name labels all output lines and exit reports for this group
	// (e.g. "server", "client").
	Name string

	// Output receives labeled child output and exit reports. If nil,
	// os.Stdout is used.
	Output io.Writer

	// PollInterval overrides the idle loop cadence. Defaults to
	// DefaultPollInterval.
	PollInterval time.Duration

	// Clock abstracts time for tests. If nil, clock.Real() is used.
	Clock clock.Clock

	// Logger is used for structured logging of supervisor events. If
	// nil, slog.Default() is used.
	Logger *slog.Logger
}

// Result reports how a supervision run ended.
type Result struct {
	// Interrupted is true when the run ended because the operator
	// interrupted the supervisor, which is a controlled shutdown, not
	// a failure.
	Interrupted bool

	// Child names the first child observed to exit. Empty on the
	// interrupt path.
	Child string

	// ExitCode is that child's exit code. Zero on the interrupt path.
	ExitCode int
}

// Group supervises an ordered set of child processes: it launches
// them with captured output, drains that output without ever blocking
// on an idle stream, and ends supervision at the first child exit or
// on operator interrupt. Insertion order is significant: it is the
// signal propagation and display order.
//
// No child is ever restarted, and a child exit does not cause its
// siblings to be signalled; only an operator interrupt does.
type Group struct {
	name         string
	output       io.Writer
	pollInterval time.Duration
	clk          clock.Clock
	logger       *slog.Logger
	termSignal   os.Signal

	children []*child
}

// NewGroup creates an empty group. The platform's graceful-termination
// signal is selected here, once, not per delivery.
func NewGroup(config GroupConfig) *Group {
	output := config.Output
	if output == nil {
		output = os.Stdout
	}
	pollInterval := config.PollInterval
	if pollInterval == 0 {
		pollInterval = DefaultPollInterval
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Group{
		name:         config.Name,
		output:       output,
		pollInterval: pollInterval,
		clk:          clk,
		logger:       logger,
		termSignal:   terminationSignal(),
	}
}

// Start launches every child in order. If any child fails to launch,
// the already-started children are sent the termination signal and the
// error is returned; a partially started group is never supervised.
func (g *Group) Start(specs []ChildSpec) error {
	for _, spec := range specs {
		c, err := launchChild(spec, g.logger)
		if err != nil {
			g.signalAll()
			return err
		}
		g.children = append(g.children, c)
	}
	return nil
}

// Run supervises the group until the first child exit or an operator
// interrupt (ctx cancellation).
//
// On a child exit, the exiting child's remaining output is flushed and
// its code reported; siblings are left running and the result carries
// the child's name and code.
//
// On interrupt, every child receives the termination signal in group
// order, and the same drain-and-report loop continues until all
// children have exited, so each child's final output and exit code are
// printed with nothing truncated, before Run returns with
// Result.Interrupted set.
func (g *Group) Run(ctx context.Context) (Result, error) {
	if len(g.children) == 0 {
		return Result{}, fmt.Errorf("supervise: no children started")
	}

	interrupted := false
	for {
		// Interrupt is checked every iteration, not only when idle, so
		// a chatty child cannot delay shutdown.
		if !interrupted && ctx.Err() != nil {
			interrupted = true
			g.logger.Info("interrupt received, stopping all children", "children", len(g.children))
			fmt.Fprintf(g.output, "%s: stopping all processes...\n", g.name)
			g.signalAll()
		}

		progress := false

		for _, c := range g.children {
			// At most one line per stream per child per iteration, so
			// a chatty child cannot starve observation of its
			// siblings.
			if line, ok := c.stdout.tryPop(); ok {
				g.printLine(c, "stdout", line)
				progress = true
			}
			if line, ok := c.stderr.tryPop(); ok {
				g.printLine(c, "stderr", line)
				progress = true
			}

			code, exited := c.exitStatus()
			if !exited || c.reported {
				continue
			}
			progress = true
			c.reported = true
			g.flush(c)
			fmt.Fprintf(g.output, "%s: %s exited with return code %d\n", g.name, c.name, code)
			g.logger.Info("child exited", "child", c.name, "code", code)

			if !interrupted {
				// First-exit-ends-the-group: siblings keep running.
				return Result{Child: c.name, ExitCode: code}, nil
			}
		}

		if interrupted && g.allReported() {
			return Result{Interrupted: true}, nil
		}

		if progress {
			continue
		}
		if interrupted {
			g.clk.Sleep(g.pollInterval)
			continue
		}
		select {
		case <-ctx.Done():
			// Handled at the top of the next iteration.
		case <-g.clk.After(g.pollInterval):
		}
	}
}

// printLine writes one labeled child output line.
func (g *Group) printLine(c *child, stream, line string) {
	fmt.Fprintf(g.output, "%s: %s (%s): %s\n", g.name, c.name, stream, line)
}

// flush prints everything still buffered for an exited child. By the
// time done closes both readers have hit EOF, so this is the complete
// remainder of the child's output.
func (g *Group) flush(c *child) {
	for {
		line, ok := c.stdout.tryPop()
		if !ok {
			break
		}
		g.printLine(c, "stdout", line)
	}
	for {
		line, ok := c.stderr.tryPop()
		if !ok {
			break
		}
		g.printLine(c, "stderr", line)
	}
}

// signalAll sends the termination signal to every child in group
// order. Fire-and-forget; the poll loop observes the resulting exits.
func (g *Group) signalAll() {
	for _, c := range g.children {
		g.logger.Info("signalling child", "child", c.name, "signal", g.termSignal)
		c.signal(g.termSignal)
	}
}

// allReported reports whether every child's exit has been printed.
func (g *Group) allReported() bool {
	for _, c := range g.children {
		if !c.reported {
			return false
		}
	}
	return true
}
