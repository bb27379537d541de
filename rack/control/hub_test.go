package control

import (
	"testing"

	"github.com/cwbudde/algo-rack/rack/registry"
)

func TestHubFanOut(t *testing.T) {
	t.Parallel()

	h := NewHub()
	a, cancelA := h.Subscribe(1)
	b, cancelB := h.Subscribe(4)
	defer cancelB()

	h.Notify(registry.Event{Type: registry.EventReset})
	h.Notify(registry.Event{Type: registry.EventReset})

	if len(a) != 1 || len(b) != 2 {
		t.Fatalf("queued a=%d b=%d", len(a), len(b))
	}
	if h.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", h.Dropped())
	}

	cancelA()
	cancelA()
	h.Notify(registry.Event{Type: registry.EventReset})
	<-a
	if _, ok := <-a; ok {
		t.Fatal("channel not closed after cancel")
	}
	if len(b) != 3 {
		t.Fatalf("b queued %d, want 3", len(b))
	}
}
