// Copyright 2026 The Wanlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source. Production code
// uses [Real]; tests use [Fake] and drive time with
// [FakeClock.Advance], making heartbeat periods, poll intervals, and
// round-trip measurements deterministic under test.
package clock
