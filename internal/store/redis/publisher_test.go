package redis

import (
	"context"
	"testing"

	"breakout-botv1/internal/engine"
)

func TestPublisher_DecisionAfterCloseDoesNotPanic(t *testing.T) {
	p := &Publisher{
		stream:  "bot:decisions",
		ch:      make(chan engine.Event, 4),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.run()

	if err := p.Close(); err != nil {
		t.Fatal(err)
	}

	// The scheduler goroutine can outlive the deferred Close in main;
	// late events must be dropped, never sent into a closed channel.
	for i := 0; i < 10; i++ {
		p.Decision(context.Background(), engine.Event{Kind: engine.EventOrder, Symbol: "EURUSDm"})
	}

	// Close is idempotent.
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
}
