// Copyright 2026 The Wanlink Authors
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"context"
	"sync"
	"time"
)

// mailbox accumulates inbound packets for one bus endpoint. A single
// producer (the subscriber goroutine for Redis, the peer endpoint for
// the memory pair) appends; a single consumer drains. The notify
// channel carries a coalesced "data arrived" signal for WaitForData:
// capacity 1, so an idle consumer learns about any number of arrivals
// with one token.
type mailbox struct {
	mu     sync.Mutex
	queue  []Packet
	notify chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

// put appends a packet and signals any waiting consumer.
func (m *mailbox) put(packet Packet) {
	m.mu.Lock()
	m.queue = append(m.queue, packet)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// drain removes and returns all buffered packets in arrival order.
func (m *mailbox) drain() []Packet {
	m.mu.Lock()
	defer m.mu.Unlock()
	packets := m.queue
	m.queue = nil
	return packets
}

// wait blocks until data is buffered, the timeout elapses, or ctx is
// cancelled. A stale notify token can produce a spurious true; the
// consumer's subsequent drain simply comes back empty, which every
// caller treats as "no data yet."
func (m *mailbox) wait(ctx context.Context, timeout time.Duration) (bool, error) {
	m.mu.Lock()
	buffered := len(m.queue) > 0
	m.mu.Unlock()
	if buffered {
		return true, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-m.notify:
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
