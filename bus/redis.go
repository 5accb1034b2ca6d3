// Copyright 2026 The Wanlink Authors
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/relayforge/wanlink/lib/codec"
)

// DefaultChannelPrefix is the Redis channel namespace for heartbeat
// packets. The full channel name is derived with [Channel].
const DefaultChannelPrefix = "wanlink:hb"

// Channel derives the Redis pub/sub channel for a tunnel domain. Both
// ends of a tunnel must use the same prefix and domain to observe each
// other's packets.
func Channel(prefix string, domain int) string {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return fmt.Sprintf("%s:%d", prefix, domain)
}

// Compile-time interface check.
var _ Bus = (*RedisBus)(nil)

// RedisConfig holds parameters for dialing a Redis-backed bus.
type RedisConfig struct {
	// Address is the host:port of the Redis server whose traffic the
	// tunnel transport carries between the two endpoints.
	Address string

	// Channel is the pub/sub channel packets travel on. Required; use
	// [Channel] to derive it from a domain ID.
	Channel string

	// Client overrides the Redis client, for tests against miniredis.
	// When set, Address is ignored and Close does not close the
	// client.
	Client *redis.Client

	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// RedisBus is a Bus endpoint backed by Redis pub/sub. Publishes go out
// as deterministic CBOR on the configured channel; a subscriber
// goroutine (the sole producer for the inbound mailbox) decodes
// arriving payloads and buffers them for TakeAvailable. Redis delivers
// a publish to every subscriber of the channel, so an endpoint
// observes its own packets; roles filter by kind.
type RedisBus struct {
	client     *redis.Client
	ownsClient bool
	pubsub     *redis.PubSub
	channel    string
	inbox      *mailbox
	logger     *slog.Logger

	mu     sync.Mutex
	closed bool

	// subscriberDone is closed when the subscriber goroutine exits.
	subscriberDone chan struct{}
}

// DialRedis connects to Redis, verifies the server is reachable, and
// subscribes to the configured channel. An unreachable bus is a
// startup error: the liveness monitor must not enter its loop on a
// misconfigured capability.
func DialRedis(ctx context.Context, config RedisConfig) (*RedisBus, error) {
	if config.Channel == "" {
		return nil, fmt.Errorf("bus: Channel is required")
	}

	client := config.Client
	ownsClient := false
	if client == nil {
		if config.Address == "" {
			return nil, fmt.Errorf("bus: Address is required")
		}
		client = redis.NewClient(&redis.Options{Addr: config.Address})
		ownsClient = true
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := client.Ping(ctx).Err(); err != nil {
		if ownsClient {
			client.Close()
		}
		return nil, fmt.Errorf("bus: redis unreachable at %s: %w", config.Address, err)
	}

	pubsub := client.Subscribe(ctx, config.Channel)
	// Receive blocks until the subscription is confirmed, so packets
	// published after DialRedis returns are guaranteed to be observed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		if ownsClient {
			client.Close()
		}
		return nil, fmt.Errorf("bus: subscribing to %s: %w", config.Channel, err)
	}

	b := &RedisBus{
		client:         client,
		ownsClient:     ownsClient,
		pubsub:         pubsub,
		channel:        config.Channel,
		inbox:          newMailbox(),
		logger:         logger,
		subscriberDone: make(chan struct{}),
	}
	go b.subscribe()
	return b, nil
}

// subscribe is the sole producer for the inbound mailbox. It exits
// when the pub/sub connection is closed.
func (b *RedisBus) subscribe() {
	defer close(b.subscriberDone)
	for message := range b.pubsub.Channel() {
		var packet Packet
		if err := codec.Unmarshal([]byte(message.Payload), &packet); err != nil {
			// Malformed payloads are dropped, not fatal: the channel
			// is shared infrastructure and may carry stray traffic.
			b.logger.Warn("dropping undecodable bus payload",
				"channel", b.channel,
				"bytes", len(message.Payload),
				"error", err,
			)
			continue
		}
		b.inbox.put(packet)
	}
}

func (b *RedisBus) Publish(ctx context.Context, packet Packet) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}

	data, err := codec.Marshal(packet)
	if err != nil {
		return fmt.Errorf("bus: encoding packet: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("bus: publishing to %s: %w", b.channel, err)
	}
	return nil
}

func (b *RedisBus) TakeAvailable(_ context.Context) ([]Packet, error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	return b.inbox.drain(), nil
}

func (b *RedisBus) WaitForData(ctx context.Context, timeout time.Duration) (bool, error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return false, ErrClosed
	}
	return b.inbox.wait(ctx, timeout)
}

// Close unsubscribes and releases the connection. Blocks until the
// subscriber goroutine has exited so no mailbox writes follow Close.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	err := b.pubsub.Close()
	<-b.subscriberDone
	if b.ownsClient {
		if closeErr := b.client.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}
