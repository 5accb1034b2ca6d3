// Copyright 2026 The Wanlink Authors
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"context"
	"sync"
	"time"
)

// Compile-time interface check.
var _ Bus = (*MemoryBus)(nil)

// MemoryBus is an in-process Bus endpoint for tests and single-machine
// loopback runs. Endpoints created by NewMemoryDomain share a
// broadcast domain without any network transport: a publish on any
// endpoint is delivered to every endpoint in the domain, including the
// publisher to match the self-delivery behavior of the Redis bus.
type MemoryBus struct {
	domain *memoryDomain
	inbox  *mailbox

	mu     sync.Mutex
	closed bool
}

// memoryDomain is the shared broadcast fabric behind a set of
// MemoryBus endpoints.
type memoryDomain struct {
	mu        sync.Mutex
	endpoints []*MemoryBus
}

// NewMemoryDomain returns n connected MemoryBus endpoints sharing one
// broadcast domain.
func NewMemoryDomain(n int) []*MemoryBus {
	domain := &memoryDomain{}
	endpoints := make([]*MemoryBus, n)
	for i := range endpoints {
		endpoints[i] = &MemoryBus{
			domain: domain,
			inbox:  newMailbox(),
		}
	}
	domain.endpoints = endpoints
	return endpoints
}

// NewMemoryPair returns two connected endpoints, one per tunnel end.
func NewMemoryPair() (*MemoryBus, *MemoryBus) {
	endpoints := NewMemoryDomain(2)
	return endpoints[0], endpoints[1]
}

func (b *MemoryBus) Publish(_ context.Context, packet Packet) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}

	b.domain.mu.Lock()
	endpoints := b.domain.endpoints
	b.domain.mu.Unlock()

	for _, endpoint := range endpoints {
		endpoint.mu.Lock()
		open := !endpoint.closed
		endpoint.mu.Unlock()
		if open {
			endpoint.inbox.put(packet)
		}
	}
	return nil
}

func (b *MemoryBus) TakeAvailable(_ context.Context) ([]Packet, error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	return b.inbox.drain(), nil
}

func (b *MemoryBus) WaitForData(ctx context.Context, timeout time.Duration) (bool, error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return false, ErrClosed
	}
	return b.inbox.wait(ctx, timeout)
}

// Close detaches the endpoint from the domain. Idempotent.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}
