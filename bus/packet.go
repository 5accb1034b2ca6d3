// Copyright 2026 The Wanlink Authors
// SPDX-License-Identifier: Apache-2.0

package bus

import "fmt"

// Kind discriminates packet types on the heartbeat bus. The integer
// values are a fixed wire contract shared by both ends of the tunnel;
// they cross process and machine boundaries and must never change.
type Kind int

const (
	// KindHeartbeat is a liveness probe from the initiator.
	KindHeartbeat Kind = 0
	// KindAck echoes a heartbeat's sequence number back from the
	// responder.
	KindAck Kind = 1
)

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case KindHeartbeat:
		return "heartbeat"
	case KindAck:
		return "ack"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Packet is the wire-level unit exchanged over the bus. Sequence
// numbers are monotonically increasing per initiator session, starting
// at 0. Seq is 64 bits wide: at one heartbeat per second a session
// would need half a trillion years to wrap, so no wraparound handling
// exists anywhere in this codebase.
//
// Packets are encoded as CBOR maps with keys "seq" and "type"
// (lib/codec, deterministic encoding).
type Packet struct {
	Seq  uint64 `cbor:"seq"`
	Kind Kind   `cbor:"type"`
}
