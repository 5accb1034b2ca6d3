// Copyright 2026 The Wanlink Authors
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by operations on a closed bus.
var ErrClosed = errors.New("bus: closed")

// Bus is the capability the liveness monitor consumes to exchange
// heartbeat and acknowledgement packets between the two tunnel
// endpoints. A bus is a broadcast domain: every endpoint attached to
// the same domain observes every packet, including its own publishes.
// Roles filter by [Packet.Kind].
//
// Implementations are not reentrant. Exactly one logical thread of
// control may use a given instance at a time; callers that share a Bus
// across concurrent duties must serialize every interaction through a
// single mutex (see heartbeat.Initiator).
type Bus interface {
	// Publish sends a packet to every endpoint in the domain. No
	// delivery acknowledgement is provided or expected.
	Publish(ctx context.Context, packet Packet) error

	// TakeAvailable drains and returns the packets currently buffered
	// for this endpoint, in arrival order. It never blocks; an empty
	// result means no data yet, not an error.
	TakeAvailable(ctx context.Context) ([]Packet, error)

	// WaitForData blocks until a packet is buffered, the timeout
	// elapses, or ctx is cancelled. It reports whether data may be
	// available; false on timeout is the normal periodic re-check
	// path, not an error. No busy loop.
	WaitForData(ctx context.Context, timeout time.Duration) (bool, error)

	// Close releases the endpoint. Subsequent operations return
	// ErrClosed.
	Close() error
}
