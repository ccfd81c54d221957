package alert

import (
	"testing"
	"time"

	"github.com/Sara-Samara/HealthAidProj-sub002/core/alert"
	"github.com/Sara-Samara/HealthAidProj-sub002/infra/logger"
)

func TestBusBroadcasterDelivers(t *testing.T) {
	b := NewBusBroadcaster(16, logger.NopLogger{})
	defer b.Close()

	ch := alert.CaseChannel("c1")
	sub := b.Subscribe(ch)
	b.Publish(ch, "created")

	select {
	case ev := <-sub:
		if ev != "created" {
			t.Fatalf("unexpected event %v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("event never delivered")
	}
}

func TestBusBroadcasterPerChannelOrder(t *testing.T) {
	b := NewBusBroadcaster(64, logger.NopLogger{})
	defer b.Close()

	sub := b.Subscribe(alert.RegionChannel("40.0,-75.0"))
	for i := 0; i < 10; i++ {
		b.Publish(alert.RegionChannel("40.0,-75.0"), i)
	}
	for i := 0; i < 10; i++ {
		select {
		case ev := <-sub:
			if ev != i {
				t.Fatalf("order broken: expected %d, got %v", i, ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing event %d", i)
		}
	}
}

func TestBusBroadcasterNeverBlocksPublisher(t *testing.T) {
	b := NewBusBroadcaster(4, logger.NopLogger{})
	defer b.Close()

	b.Subscribe(alert.ChannelSupervisors) // never drained

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			b.Publish(alert.ChannelSupervisors, i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publish blocked")
	}
}

func TestBusBroadcasterCloseDrains(t *testing.T) {
	b := NewBusBroadcaster(16, logger.NopLogger{})
	sub := b.Subscribe(alert.CaseChannel("c1"))
	b.Publish(alert.CaseChannel("c1"), "last")
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// The queued event was delivered before the subscriber closed.
	ev, ok := <-sub
	if !ok || ev != "last" {
		t.Fatalf("expected drained event, got %v (open=%v)", ev, ok)
	}
	if _, ok := <-sub; ok {
		t.Fatalf("subscriber should be closed")
	}
	// Second close is a no-op.
	if err := b.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestBusBroadcasterPublishAfterClose(t *testing.T) {
	b := NewBusBroadcaster(16, logger.NopLogger{})
	sub := b.Subscribe(alert.CaseChannel("c1"))
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// Late publishers (ack timers can outlive shutdown) must be refused,
	// not crash on the closed queue.
	b.Publish(alert.CaseChannel("c1"), "late")
	if _, ok := <-sub; ok {
		t.Fatalf("late event delivered after close")
	}
}

func TestMultiBroadcasterFansOut(t *testing.T) {
	a := NewMockBroadcaster()
	b := NewMockBroadcaster()
	m := NewMultiBroadcaster(a, b)
	defer m.Close()

	m.Publish(alert.ChannelSupervisors, "esc")
	for _, mock := range []*MockBroadcaster{a, b} {
		evs := mock.Events(alert.ChannelSupervisors)
		if len(evs) != 1 || evs[0] != "esc" {
			t.Fatalf("fan-out failed: %v", evs)
		}
	}
}
