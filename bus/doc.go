// Copyright 2026 The Wanlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package bus provides the message-bus capability the liveness monitor
// uses to exchange heartbeat and acknowledgement packets between the
// two tunnel endpoints.
//
// The [Bus] interface is deliberately small: publish, non-blocking
// drain, and bounded wait. Two implementations exist:
//
//   - [RedisBus]: Redis pub/sub on a domain-scoped channel, the
//     production transport. The Redis traffic itself rides the tunnel
//     transport that the supervisor monitors.
//   - [MemoryBus]: an in-process broadcast domain for tests and
//     loopback runs.
//
// Bus instances are not safe for concurrent use. A component that
// shares one instance across concurrent duties must guard every
// interaction with a single mutex; see heartbeat.Initiator.
package bus
