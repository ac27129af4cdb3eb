package eventbus

import "context"

// Publisher is the outbound port every component that emits a domain
// event writes to.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NoopPublisher discards every event. Useful as a Publisher for tests, and
// cmd/csms uses it outside the production profile, where no broker is wired.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
func (NoopPublisher) Close() error                          { return nil }
