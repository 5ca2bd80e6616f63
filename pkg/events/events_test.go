package events

import (
	"testing"
	"time"
)

func waitEvent(t *testing.T, sub Subscriber) *Event {
	t.Helper()
	select {
	case e := <-sub:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub1 := b.Subscribe()
	sub2 := b.Subscribe()

	b.Publish(&Event{Type: EventOpReplayed, ID: "op-1"})

	for _, sub := range []Subscriber{sub1, sub2} {
		e := waitEvent(t, sub)
		if e.Type != EventOpReplayed {
			t.Errorf("expected %s, got %s", EventOpReplayed, e.Type)
		}
		if e.ID != "op-1" {
			t.Errorf("expected op-1, got %s", e.ID)
		}
		if e.Timestamp.IsZero() {
			t.Error("expected timestamp to be stamped")
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	if b.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", b.SubscriberCount())
	}

	b.Unsubscribe(sub)
	if b.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", b.SubscriberCount())
	}
	if _, ok := <-sub; ok {
		t.Error("expected channel to be closed")
	}
}
