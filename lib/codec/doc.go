// Copyright 2026 The Wanlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding used for packets on the
// heartbeat bus. Encoding is deterministic (RFC 8949 Core
// Deterministic Encoding) and decoding tolerates unknown fields, so
// the two ends of a tunnel can run different versions. Consumers
// import this package rather than fxamacker/cbor directly.
package codec
