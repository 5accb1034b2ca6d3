// Copyright 2026 The Wanlink Authors
// SPDX-License-Identifier: Apache-2.0

package heartbeat

import "time"

// pendingAcks maps the sequence number of every heartbeat that has
// been sent but not yet acknowledged to its send time. Owned
// exclusively by the initiator; access is serialized by the
// initiator's mutex, so the table itself carries no lock.
type pendingAcks struct {
	entries map[uint64]time.Time
}

func newPendingAcks() *pendingAcks {
	return &pendingAcks{entries: make(map[uint64]time.Time)}
}

// record stores the send time for a sequence at heartbeat send time.
func (p *pendingAcks) record(seq uint64, sentAt time.Time) {
	p.entries[seq] = sentAt
}

// match removes the entry for seq and returns its send time. The entry
// is removed whether or not it exists; an ACK for an unknown sequence
// is reported by the caller but never an error.
func (p *pendingAcks) match(seq uint64) (time.Time, bool) {
	sentAt, found := p.entries[seq]
	delete(p.entries, seq)
	return sentAt, found
}

// expire evicts every entry sent before the cutoff and returns the
// evicted sequences. A permanently lost ACK would otherwise leak its
// entry forever; see the ExpireAfter knob on InitiatorConfig.
func (p *pendingAcks) expire(cutoff time.Time) []uint64 {
	var evicted []uint64
	for seq, sentAt := range p.entries {
		if sentAt.Before(cutoff) {
			delete(p.entries, seq)
			evicted = append(evicted, seq)
		}
	}
	return evicted
}

func (p *pendingAcks) size() int { return len(p.entries) }
