// Copyright 2026 The Wanlink Authors
// SPDX-License-Identifier: Apache-2.0

package heartbeat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/relayforge/wanlink/bus"
)

// DefaultWaitTimeout bounds the responder's wait for new data. The
// timeout is the normal periodic re-check mechanism, not an error;
// half a second keeps heartbeat observation prompt without a tight
// spin loop.
const DefaultWaitTimeout = 500 * time.Millisecond

// ResponderConfig holds parameters for creating a Responder.
type ResponderConfig struct {
	// Bus carries heartbeats in and acknowledgements out. Required.
	// The responder is the sole user of the instance within its
	// process, which trivially satisfies the bus exclusion contract.
	Bus bus.Bus

	// WaitTimeout bounds each wait for new data. Defaults to
	// DefaultWaitTimeout.
	WaitTimeout time.Duration

	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Responder is the answering role of the liveness monitor: for every
// heartbeat observed it publishes an acknowledgement echoing the
// sequence number, in observation order. It never initiates; ACK
// packets (including its own echoed back by the bus) are ignored.
type Responder struct {
	config ResponderConfig
	logger *slog.Logger
}

// NewResponder validates the configuration and creates a Responder.
func NewResponder(config ResponderConfig) (*Responder, error) {
	if config.Bus == nil {
		return nil, fmt.Errorf("heartbeat: Bus is required")
	}
	if config.WaitTimeout == 0 {
		config.WaitTimeout = DefaultWaitTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{config: config, logger: logger}, nil
}

// Run answers heartbeats until ctx is cancelled, then returns nil.
func (r *Responder) Run(ctx context.Context) error {
	r.logger.Info("liveness responder starting", "wait_timeout", r.config.WaitTimeout)

	for {
		// A false result is "no data yet"; the drain below is cheap
		// and runs regardless, which also picks up packets that
		// arrived between drain and wait.
		if _, err := r.config.Bus.WaitForData(ctx, r.config.WaitTimeout); err != nil {
			if ctx.Err() != nil {
				r.logger.Info("liveness responder stopped")
				return nil
			}
			return fmt.Errorf("heartbeat: waiting for data: %w", err)
		}

		packets, err := r.config.Bus.TakeAvailable(ctx)
		if err != nil {
			if ctx.Err() != nil {
				r.logger.Info("liveness responder stopped")
				return nil
			}
			return fmt.Errorf("heartbeat: draining bus: %w", err)
		}

		for _, packet := range packets {
			if packet.Kind != bus.KindHeartbeat {
				continue
			}
			r.logger.Info("heartbeat observed", "seq", packet.Seq)
			ack := bus.Packet{Seq: packet.Seq, Kind: bus.KindAck}
			if err := r.config.Bus.Publish(ctx, ack); err != nil {
				if ctx.Err() != nil {
					r.logger.Info("liveness responder stopped")
					return nil
				}
				r.logger.Error("publishing ack", "seq", packet.Seq, "error", err)
			}
		}
	}
}
