// Copyright 2026 The Wanlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package heartbeat implements the tunnel liveness monitor: a
// bidirectional probe protocol that detects whether the tunnel is
// alive and measures round-trip latency.
//
// One end runs the [Initiator], which publishes sequence-numbered
// heartbeat packets on a fixed period and correlates returning
// acknowledgements against a pending-ack table to log round-trip
// times. The other end runs the [Responder], which echoes every
// observed heartbeat's sequence number back as an acknowledgement.
// The two never talk to each other directly, only through the
// [bus.Bus] capability, whose traffic rides the tunnel transport that
// the supervisor monitors.
//
// The protocol tolerates arbitrary loss and duplication: an
// acknowledgement for an unknown sequence is logged informationally
// (monitor restarts produce them legitimately) and duplicate
// acknowledgements are idempotent against the table.
package heartbeat
