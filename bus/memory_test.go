// Copyright 2026 The Wanlink Authors
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryPairBroadcastsToBothEnds(t *testing.T) {
	ctx := context.Background()
	left, right := NewMemoryPair()

	packet := Packet{Seq: 7, Kind: KindHeartbeat}
	if err := left.Publish(ctx, packet); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	// Self-delivery: the publisher observes its own packet, same as
	// the Redis transport.
	for name, endpoint := range map[string]*MemoryBus{"left": left, "right": right} {
		got, err := endpoint.TakeAvailable(ctx)
		if err != nil {
			t.Fatalf("%s TakeAvailable: %v", name, err)
		}
		if len(got) != 1 || got[0] != packet {
			t.Errorf("%s received %v, want [%v]", name, got, packet)
		}
	}
}

func TestMemoryTakeAvailableDrains(t *testing.T) {
	ctx := context.Background()
	left, right := NewMemoryPair()

	for seq := uint64(0); seq < 3; seq++ {
		if err := left.Publish(ctx, Packet{Seq: seq, Kind: KindHeartbeat}); err != nil {
			t.Fatalf("Publish seq %d: %v", seq, err)
		}
	}

	got, err := right.TakeAvailable(ctx)
	if err != nil {
		t.Fatalf("TakeAvailable: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("first drain returned %d packets, want 3", len(got))
	}
	for i, packet := range got {
		if packet.Seq != uint64(i) {
			t.Errorf("packet %d has seq %d, want %d (arrival order)", i, packet.Seq, i)
		}
	}

	again, err := right.TakeAvailable(ctx)
	if err != nil {
		t.Fatalf("TakeAvailable: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second drain returned %d packets, want 0", len(again))
	}
}

func TestMemoryWaitForDataTimeout(t *testing.T) {
	_, right := NewMemoryPair()

	start := time.Now()
	ready, err := right.WaitForData(context.Background(), 20*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForData: %v", err)
	}
	if ready {
		t.Error("WaitForData reported data on an idle bus")
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("WaitForData returned after %v, want at least the 20ms timeout", elapsed)
	}
}

func TestMemoryWaitForDataWakesOnPublish(t *testing.T) {
	ctx := context.Background()
	left, right := NewMemoryPair()

	result := make(chan bool, 1)
	go func() {
		ready, _ := right.WaitForData(ctx, 5*time.Second)
		result <- ready
	}()

	// Give the waiter a moment to park before publishing.
	time.Sleep(10 * time.Millisecond)
	if err := left.Publish(ctx, Packet{Seq: 0, Kind: KindHeartbeat}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case ready := <-result:
		if !ready {
			t.Error("WaitForData = false, want true after publish")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("WaitForData did not wake on publish")
	}
}

func TestMemoryWaitForDataContextCancel(t *testing.T) {
	_, right := NewMemoryPair()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := right.WaitForData(ctx, 5*time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("WaitForData error = %v, want context.Canceled", err)
	}
}

func TestMemoryClosedEndpoint(t *testing.T) {
	ctx := context.Background()
	left, right := NewMemoryPair()

	if err := right.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := right.TakeAvailable(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("TakeAvailable on closed bus: err = %v, want ErrClosed", err)
	}
	if err := right.Publish(ctx, Packet{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish on closed bus: err = %v, want ErrClosed", err)
	}

	// Publishing toward a closed peer is not an error for the sender.
	if err := left.Publish(ctx, Packet{Seq: 1, Kind: KindHeartbeat}); err != nil {
		t.Errorf("Publish to domain with closed peer: %v", err)
	}
}
