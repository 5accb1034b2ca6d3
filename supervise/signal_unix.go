// Copyright 2026 The Wanlink Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package supervise

import (
	"os"

	"golang.org/x/sys/unix"
)

// terminationSignal returns the graceful-termination signal for this
// platform's process model, selected once at group construction.
func terminationSignal() os.Signal {
	return unix.SIGTERM
}
