// Copyright 2026 The Wanlink Authors
// SPDX-License-Identifier: Apache-2.0

package heartbeat

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/relayforge/wanlink/bus"
	"github.com/relayforge/wanlink/lib/clock"
	"github.com/relayforge/wanlink/lib/testutil"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// recordedEntry is one captured log record with its attributes
// flattened into a map.
type recordedEntry struct {
	message string
	attrs   map[string]slog.Value
}

// recordingHandler captures slog records so tests can assert on the
// initiator's observable behavior, which the liveness contract defines
// entirely in terms of log output.
type recordingHandler struct {
	mu      sync.Mutex
	entries []recordedEntry
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, record slog.Record) error {
	entry := recordedEntry{
		message: record.Message,
		attrs:   make(map[string]slog.Value),
	}
	record.Attrs(func(attr slog.Attr) bool {
		entry.attrs[attr.Key] = attr.Value
		return true
	})
	h.mu.Lock()
	h.entries = append(h.entries, entry)
	h.mu.Unlock()
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

// find returns all captured entries with the given message.
func (h *recordingHandler) find(message string) []recordedEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	var matches []recordedEntry
	for _, entry := range h.entries {
		if entry.message == message {
			matches = append(matches, entry)
		}
	}
	return matches
}

// startInitiator runs an initiator against one end of a memory pair
// under a fake clock and returns the pieces the test drives. The
// returned done channel closes when Run returns.
func startInitiator(t *testing.T, config InitiatorConfig) (*Initiator, context.CancelFunc, chan struct{}) {
	t.Helper()
	initiator, err := NewInitiator(config)
	if err != nil {
		t.Fatalf("NewInitiator: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		initiator.Run(ctx)
		close(done)
	}()
	return initiator, cancel, done
}

// waitPendingCount polls until the initiator's pending table reaches
// want, failing the test after five seconds.
func waitPendingCount(t *testing.T, initiator *Initiator, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if initiator.PendingCount() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("PendingCount() = %d, want %d", initiator.PendingCount(), want)
}

func TestInitiatorMeasuresRoundTrip(t *testing.T) {
	fakeClock := clock.Fake(testEpoch)
	handler := &recordingHandler{}
	left, right := bus.NewMemoryPair()

	initiator, cancel, done := startInitiator(t, InitiatorConfig{
		Bus:    left,
		Clock:  fakeClock,
		Logger: slog.New(handler),
	})
	defer cancel()

	// The first heartbeat (seq 0) goes out immediately; both duties
	// then park on their timers.
	fakeClock.WaitForTimers(2)
	waitPendingCount(t, initiator, 1)

	// The responder's ACK arrives; the initiator's next drain is 20ms
	// of fake time after the send.
	if err := right.Publish(context.Background(), bus.Packet{Seq: 0, Kind: bus.KindAck}); err != nil {
		t.Fatalf("Publish ack: %v", err)
	}
	fakeClock.Advance(20 * time.Millisecond)

	waitPendingCount(t, initiator, 0)
	acks := handler.find("ack received")
	if len(acks) != 1 {
		t.Fatalf("got %d ack records, want 1", len(acks))
	}
	if got := acks[0].attrs["rtt"].Duration(); got != 20*time.Millisecond {
		t.Errorf("logged rtt = %v, want 20ms", got)
	}
	if got := acks[0].attrs["seq"].Any(); got != uint64(0) {
		t.Errorf("logged seq = %v, want 0", got)
	}

	cancel()
	testutil.RequireClosed(t, done, 5*time.Second, "initiator Run should return on cancel")
}

func TestInitiatorAllAckedLeavesEmptyTable(t *testing.T) {
	fakeClock := clock.Fake(testEpoch)
	handler := &recordingHandler{}
	left, right := bus.NewMemoryPair()

	initiator, cancel, done := startInitiator(t, InitiatorConfig{
		Bus:    left,
		Clock:  fakeClock,
		Logger: slog.New(handler),
	})
	defer cancel()

	// Let three heartbeats go out. WaitForTimers(2) between advances
	// guarantees both duties completed their iteration and parked
	// again, so each advance fires exactly one send.
	fakeClock.WaitForTimers(2)
	for i := 0; i < 2; i++ {
		fakeClock.Advance(time.Second)
		fakeClock.WaitForTimers(2)
	}
	waitPendingCount(t, initiator, 3)

	// Play the responder: drain the observed heartbeats and echo each
	// sequence, in order.
	ctx := context.Background()
	observed, err := right.TakeAvailable(ctx)
	if err != nil {
		t.Fatalf("TakeAvailable: %v", err)
	}
	var heartbeats []uint64
	for _, packet := range observed {
		if packet.Kind == bus.KindHeartbeat {
			heartbeats = append(heartbeats, packet.Seq)
		}
	}
	if len(heartbeats) != 3 {
		t.Fatalf("responder end observed %d heartbeats, want 3", len(heartbeats))
	}
	for _, seq := range heartbeats {
		if err := right.Publish(ctx, bus.Packet{Seq: seq, Kind: bus.KindAck}); err != nil {
			t.Fatalf("Publish ack %d: %v", seq, err)
		}
	}

	fakeClock.Advance(time.Millisecond)
	waitPendingCount(t, initiator, 0)

	acks := handler.find("ack received")
	if len(acks) != 3 {
		t.Fatalf("got %d round-trip measurements, want exactly 3", len(acks))
	}
	for _, entry := range acks {
		if rtt := entry.attrs["rtt"].Duration(); rtt < 0 {
			t.Errorf("negative round-trip time %v", rtt)
		}
	}

	cancel()
	testutil.RequireClosed(t, done, 5*time.Second, "initiator Run should return on cancel")
}

func TestInitiatorUnmatchedAckIsNotAnError(t *testing.T) {
	fakeClock := clock.Fake(testEpoch)
	handler := &recordingHandler{}
	left, right := bus.NewMemoryPair()

	initiator, cancel, done := startInitiator(t, InitiatorConfig{
		Bus:    left,
		Clock:  fakeClock,
		Logger: slog.New(handler),
	})
	defer cancel()

	fakeClock.WaitForTimers(2)
	waitPendingCount(t, initiator, 1)

	// An ACK for a sequence never sent: attributable to a monitor
	// restart or a cross-run packet. Must be reported, must not
	// perturb other entries.
	ctx := context.Background()
	if err := right.Publish(ctx, bus.Packet{Seq: 99, Kind: bus.KindAck}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	fakeClock.Advance(time.Millisecond)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && len(handler.find("ack for unknown seq")) == 0 {
		time.Sleep(time.Millisecond)
	}
	unknown := handler.find("ack for unknown seq")
	if len(unknown) != 1 {
		t.Fatalf("got %d unknown-seq records, want 1", len(unknown))
	}
	if got := unknown[0].attrs["seq"].Any(); got != uint64(99) {
		t.Errorf("logged seq = %v, want 99", got)
	}
	if got := initiator.PendingCount(); got != 1 {
		t.Errorf("PendingCount() = %d after unmatched ack, want 1 (seq 0 untouched)", got)
	}

	// Delivering the same unmatched ACK again is equally harmless.
	if err := right.Publish(ctx, bus.Packet{Seq: 99, Kind: bus.KindAck}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	fakeClock.WaitForTimers(2)
	fakeClock.Advance(time.Millisecond)
	waitPendingCount(t, initiator, 1)

	cancel()
	testutil.RequireClosed(t, done, 5*time.Second, "initiator Run should return on cancel")
}

func TestInitiatorExpiresUnacknowledgedEntries(t *testing.T) {
	fakeClock := clock.Fake(testEpoch)
	handler := &recordingHandler{}
	left, _ := bus.NewMemoryPair()

	initiator, cancel, done := startInitiator(t, InitiatorConfig{
		Bus:         left,
		Clock:       fakeClock,
		Logger:      slog.New(handler),
		ExpireAfter: 10 * time.Millisecond,
	})
	defer cancel()

	fakeClock.WaitForTimers(2)
	waitPendingCount(t, initiator, 1)

	// No ACK ever arrives. Once the entry outlives ExpireAfter, the
	// receive duty evicts it instead of leaking it forever.
	fakeClock.Advance(11 * time.Millisecond)
	waitPendingCount(t, initiator, 0)

	evictions := handler.find("expiring unacknowledged heartbeat")
	if len(evictions) != 1 {
		t.Fatalf("got %d eviction records, want 1", len(evictions))
	}
	if got := evictions[0].attrs["seq"].Any(); got != uint64(0) {
		t.Errorf("evicted seq = %v, want 0", got)
	}

	cancel()
	testutil.RequireClosed(t, done, 5*time.Second, "initiator Run should return on cancel")
}

func TestInitiatorRequiresBus(t *testing.T) {
	if _, err := NewInitiator(InitiatorConfig{}); err == nil {
		t.Fatal("NewInitiator accepted a nil Bus")
	}
}

// collectAcks drains the given endpoint until count ACK packets have
// been observed or the deadline passes, returning the ACKs in arrival
// order. Non-ACK packets (the test's own heartbeats echoed back) are
// skipped.
func collectAcks(t *testing.T, endpoint bus.Bus, count int) []bus.Packet {
	t.Helper()
	ctx := context.Background()
	var acks []bus.Packet
	deadline := time.Now().Add(5 * time.Second)
	for len(acks) < count && time.Now().Before(deadline) {
		if _, err := endpoint.WaitForData(ctx, 50*time.Millisecond); err != nil {
			t.Fatalf("WaitForData: %v", err)
		}
		packets, err := endpoint.TakeAvailable(ctx)
		if err != nil {
			t.Fatalf("TakeAvailable: %v", err)
		}
		for _, packet := range packets {
			if packet.Kind == bus.KindAck {
				acks = append(acks, packet)
			}
		}
	}
	return acks
}

func TestResponderAcksHeartbeatsInOrder(t *testing.T) {
	left, right := bus.NewMemoryPair()
	responder, err := NewResponder(ResponderConfig{
		Bus:         right,
		WaitTimeout: 20 * time.Millisecond,
		Logger:      slog.New(&recordingHandler{}),
	})
	if err != nil {
		t.Fatalf("NewResponder: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		responder.Run(ctx)
		close(done)
	}()

	for _, seq := range []uint64{4, 5, 6} {
		if err := left.Publish(ctx, bus.Packet{Seq: seq, Kind: bus.KindHeartbeat}); err != nil {
			t.Fatalf("Publish heartbeat %d: %v", seq, err)
		}
	}

	acks := collectAcks(t, left, 3)
	if len(acks) != 3 {
		t.Fatalf("got %d acks, want 3", len(acks))
	}
	for i, want := range []uint64{4, 5, 6} {
		if acks[i].Seq != want {
			t.Errorf("ack %d has seq %d, want %d (observation order)", i, acks[i].Seq, want)
		}
	}

	cancel()
	testutil.RequireClosed(t, done, 5*time.Second, "responder Run should return on cancel")
}

func TestResponderNeverAcksAnAck(t *testing.T) {
	left, right := bus.NewMemoryPair()
	responder, err := NewResponder(ResponderConfig{
		Bus:         right,
		WaitTimeout: 20 * time.Millisecond,
		Logger:      slog.New(&recordingHandler{}),
	})
	if err != nil {
		t.Fatalf("NewResponder: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		responder.Run(ctx)
		close(done)
	}()

	// Publish a bare ACK. The bus echoes it back to this end once
	// (self-delivery); if the responder answered ACKs, a second copy
	// would arrive.
	if err := left.Publish(ctx, bus.Packet{Seq: 5, Kind: bus.KindAck}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	packets, err := left.TakeAvailable(ctx)
	if err != nil {
		t.Fatalf("TakeAvailable: %v", err)
	}
	ackCount := 0
	for _, packet := range packets {
		if packet.Kind == bus.KindAck {
			ackCount++
		}
	}
	if ackCount != 1 {
		t.Errorf("observed %d ack packets, want exactly 1 (the self-delivered original)", ackCount)
	}

	cancel()
	testutil.RequireClosed(t, done, 5*time.Second, "responder Run should return on cancel")
}

func TestResponderRequiresBus(t *testing.T) {
	if _, err := NewResponder(ResponderConfig{}); err == nil {
		t.Fatal("NewResponder accepted a nil Bus")
	}
}
