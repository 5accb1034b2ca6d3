// Copyright 2026 The Wanlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package supervise launches and monitors a group of long-running
// child processes, the tunnel transport and the liveness monitor,
// without ever blocking on their output streams.
//
// Each child's stdout and stderr are captured and copied by dedicated
// reader goroutines into per-stream line queues, so a silent child
// never delays observation of a chatty one and a chatty child never
// delays exit detection. The supervision loop drains the queues one
// line per stream per iteration, labels each line with the group and
// child name, and ends the run as soon as any child exits
// (first-exit-ends-the-group). On operator interrupt it instead
// propagates the platform's graceful-termination signal to every
// child in group order and keeps draining until all of them have
// exited, so no final output is lost.
//
// There is no restart policy: a child's exit is terminal for its
// group.
package supervise
