package progress

import (
	"context"
	"testing"
	"time"
)

func recvEvent(t *testing.T, sub Subscription) Event {
	t.Helper()
	select {
	case event := <-sub.Events():
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestHubClampsPercent(t *testing.T) {
	hub := NewHub(NewMemoryQueue(4), nil)
	sub := hub.Subscribe()
	defer sub.Close()

	ctx := context.Background()
	hub.Progress(ctx, "c1", -5)
	hub.Progress(ctx, "c1", 150)

	if got := recvEvent(t, sub); got.Percent != 0 {
		t.Fatalf("negative percent not clamped: %v", got.Percent)
	}
	if got := recvEvent(t, sub); got.Percent != 100 {
		t.Fatalf("overshoot not clamped: %v", got.Percent)
	}
}

func TestHubStampsEvents(t *testing.T) {
	hub := NewHub(NewMemoryQueue(4), nil)
	sub := hub.Subscribe()
	defer sub.Close()

	before := time.Now().UTC()
	hub.Error(context.Background(), "c1", "encoder exploded")

	got := recvEvent(t, sub)
	if got.Kind != KindError || got.Message != "encoder exploded" {
		t.Fatalf("unexpected event %+v", got)
	}
	if got.OccurredAt.Before(before.Add(-time.Second)) || got.OccurredAt.IsZero() {
		t.Fatalf("event not timestamped: %v", got.OccurredAt)
	}
}

func TestHubDropsAnonymousEvents(t *testing.T) {
	hub := NewHub(NewMemoryQueue(4), nil)
	sub := hub.Subscribe()
	defer sub.Close()

	hub.Done(context.Background(), "")

	select {
	case got := <-sub.Events():
		t.Fatalf("event without a client must be discarded, got %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNilHubDiscardsEvents(t *testing.T) {
	var hub *Hub
	ctx := context.Background()
	hub.Progress(ctx, "c1", 50)
	hub.Stage(ctx, "c1", "preview")
	hub.Done(ctx, "c1")
	hub.Error(ctx, "c1", "nope")
}
