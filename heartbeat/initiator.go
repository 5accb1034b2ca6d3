// Copyright 2026 The Wanlink Authors
// SPDX-License-Identifier: Apache-2.0

package heartbeat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/relayforge/wanlink/bus"
	"github.com/relayforge/wanlink/lib/clock"
)

const (
	// DefaultPeriod is the interval between heartbeat sends.
	DefaultPeriod = time.Second

	// DefaultPollInterval is the interval between receive-duty drains
	// of the bus. Short enough that round-trip measurements carry
	// negligible sampling error at WAN latencies.
	DefaultPollInterval = time.Millisecond
)

// InitiatorConfig holds parameters for creating an Initiator.
type InitiatorConfig struct {
	// Bus carries heartbeats out and acknowledgements back. Required.
	// The initiator serializes all access through one mutex; no other
	// component may use the instance concurrently.
	Bus bus.Bus

	// Period is the heartbeat send interval. Defaults to
	// DefaultPeriod.
	Period time.Duration

	// PollInterval is the receive-duty drain interval. Defaults to
	// DefaultPollInterval.
	PollInterval time.Duration

	// ExpireAfter evicts pending-ack entries older than this age, so
	// a permanently lost ACK does not leak a table entry forever.
	// Zero preserves the baseline behavior: entries are only removed
	// by a matching ACK. Evictions are logged.
	ExpireAfter time.Duration

	// Clock abstracts time for tests. If nil, clock.Real() is used.
	Clock clock.Clock

	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Initiator is the probing role of the liveness monitor. Its send duty
// publishes a heartbeat with the next sequence number on a fixed
// period; its receive duty drains the bus on a short poll interval and
// correlates returning acknowledgements against the pending-ack table
// to measure round-trip time.
//
// The two duties run as separate goroutines but share the
// non-reentrant bus and the table, so a single mutex guards every
// interaction with either. The mutex is never held across a sleep.
type Initiator struct {
	config InitiatorConfig
	logger *slog.Logger

	mu      sync.Mutex
	pending *pendingAcks
	nextSeq uint64
}

// NewInitiator validates the configuration and creates an Initiator.
func NewInitiator(config InitiatorConfig) (*Initiator, error) {
	if config.Bus == nil {
		return nil, fmt.Errorf("heartbeat: Bus is required")
	}
	if config.Period == 0 {
		config.Period = DefaultPeriod
	}
	if config.PollInterval == 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Initiator{
		config:  config,
		logger:  logger,
		pending: newPendingAcks(),
	}, nil
}

// Run executes both duties until ctx is cancelled, then returns nil;
// operator interrupt is a clean exit, and there is no table cleanup to
// do because the pending-ack table is process-local and ephemeral.
func (i *Initiator) Run(ctx context.Context) error {
	i.logger.Info("liveness initiator starting",
		"period", i.config.Period,
		"poll_interval", i.config.PollInterval,
		"expire_after", i.config.ExpireAfter,
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		i.sendLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		i.receiveLoop(ctx)
	}()
	wg.Wait()

	i.logger.Info("liveness initiator stopped")
	return nil
}

// PendingCount returns the number of heartbeats awaiting
// acknowledgement.
func (i *Initiator) PendingCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.pending.size()
}

// sendLoop publishes one heartbeat immediately and then one per
// period. The send time is recorded in the pending table before the
// publish so a racing ACK can never observe a missing entry.
func (i *Initiator) sendLoop(ctx context.Context) {
	for {
		seq := i.nextSeq
		i.logger.Info("sending heartbeat", "seq", seq)

		i.mu.Lock()
		i.pending.record(seq, i.config.Clock.Now())
		err := i.config.Bus.Publish(ctx, bus.Packet{Seq: seq, Kind: bus.KindHeartbeat})
		i.mu.Unlock()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			i.logger.Error("publishing heartbeat", "seq", seq, "error", err)
		}
		i.nextSeq++

		select {
		case <-ctx.Done():
			return
		case <-i.config.Clock.After(i.config.Period):
		}
	}
}

// receiveLoop drains the bus every poll interval and correlates ACKs.
// Heartbeat packets (including the initiator's own, which the bus
// echoes back) are ignored.
func (i *Initiator) receiveLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-i.config.Clock.After(i.config.PollInterval):
		}

		now := i.config.Clock.Now()

		i.mu.Lock()
		packets, err := i.config.Bus.TakeAvailable(ctx)
		var evicted []uint64
		if i.config.ExpireAfter > 0 {
			evicted = i.pending.expire(now.Add(-i.config.ExpireAfter))
		}
		type ackResult struct {
			seq     uint64
			rtt     time.Duration
			matched bool
		}
		var results []ackResult
		for _, packet := range packets {
			if packet.Kind != bus.KindAck {
				continue
			}
			sentAt, found := i.pending.match(packet.Seq)
			results = append(results, ackResult{
				seq:     packet.Seq,
				rtt:     now.Sub(sentAt),
				matched: found,
			})
		}
		i.mu.Unlock()

		// Log outside the mutex: the lock covers only bus and table
		// interactions.
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			i.logger.Error("draining bus", "error", err)
			continue
		}
		for _, seq := range evicted {
			i.logger.Warn("expiring unacknowledged heartbeat",
				"seq", seq,
				"older_than", i.config.ExpireAfter,
			)
		}
		for _, result := range results {
			if result.matched {
				i.logger.Info("ack received",
					"seq", result.seq,
					"rtt", result.rtt,
				)
			} else {
				// Not an error: monitor restarts and cross-run
				// packets legitimately produce unmatched sequences.
				i.logger.Info("ack for unknown seq", "seq", result.seq)
			}
		}
	}
}
