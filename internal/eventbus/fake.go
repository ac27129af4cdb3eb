package eventbus

import (
	"context"
	"sync"
)

// FakePublisher is an in-memory Publisher recording every event it
// receives, for use in tests that assert on what got published.
type FakePublisher struct {
	mu     sync.Mutex
	events []Event
}

// NewFakePublisher builds an empty FakePublisher.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

func (p *FakePublisher) Publish(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *FakePublisher) Close() error { return nil }

// Events returns a snapshot of every event published so far, in order.
func (p *FakePublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Count returns how many events matching the given type were published.
func (p *FakePublisher) Count(t Type) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.GetType() == t {
			n++
		}
	}
	return n
}
