package invalidation

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestPublishValidates(t *testing.T) {
	p := &Publisher{topic: "t", events: make(chan Event, 4), log: zerolog.Nop()}

	if err := p.Publish(Event{}); err == nil {
		t.Fatal("invalid event should be rejected")
	}
	if err := p.Publish(validEvent()); err != nil {
		t.Fatal(err)
	}
	if got := len(p.events); got != 1 {
		t.Fatalf("queued events = %d, want 1", got)
	}
}

func TestPublishQueueFull(t *testing.T) {
	p := &Publisher{topic: "t", events: make(chan Event, 1), log: zerolog.Nop()}

	if err := p.Publish(validEvent()); err != nil {
		t.Fatal(err)
	}
	err := p.Publish(validEvent())
	if err == nil || !strings.Contains(err.Error(), "queue full") {
		t.Fatalf("got %v, want queue full error", err)
	}
}
