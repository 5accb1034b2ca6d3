// Copyright 2026 The Wanlink Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !unix

package supervise

import "os"

// terminationSignal returns the graceful-termination signal for this
// platform's process model. Platforms without unix signal semantics
// get os.Kill, the only signal guaranteed deliverable everywhere.
func terminationSignal() os.Signal {
	return os.Kill
}
