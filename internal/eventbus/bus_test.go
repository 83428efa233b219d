package eventbus

import "testing"

func TestPublishFiltersByType(t *testing.T) {
	b := New()
	all, unsubAll := b.Subscribe(4)
	defer unsubAll()
	only, unsubOnly := b.Subscribe(4, "dispatch.completed")
	defer unsubOnly()

	b.Publish(Event{Type: "other"})
	b.Publish(Event{Type: "dispatch.completed", Data: 1})

	if len(all) != 2 {
		t.Fatalf("unfiltered subscriber got %d events", len(all))
	}
	if len(only) != 1 {
		t.Fatalf("filtered subscriber got %d events", len(only))
	}
	if ev := <-only; ev.Data != 1 || ev.Time.IsZero() {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()
	for i := 0; i < 5; i++ {
		b.Publish(Event{Type: "x"})
	}
	if b.Dropped() != 4 {
		t.Fatalf("dropped = %d, want 4", b.Dropped())
	}
}

func TestUnsubscribeClosesAndIsIdempotent(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatalf("channel not closed")
	}
	b.Publish(Event{Type: "x"})
}
