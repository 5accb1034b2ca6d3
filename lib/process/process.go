// Copyright 2026 The Wanlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for wanlink
// commands: fatal error reporting for main() before the structured
// logger exists, and exit-code extraction from errors returned by
// run().
package process

import (
	"errors"
	"fmt"
	"os"
)

// Fatal writes "error: err" to stderr and exits with code 1. Use it in
// main() for errors from run() where the structured logger may not be
// initialized.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

// Exit terminates the process with the code carried by err, if any.
// Errors implementing ExitCode() int (such as cli.ExitError) exit with
// their code and no message; the command already produced its own
// output. A nil error exits 0. Anything else goes through Fatal.
func Exit(err error) {
	if err == nil {
		os.Exit(0)
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		os.Exit(coder.ExitCode())
	}
	Fatal(err)
}
