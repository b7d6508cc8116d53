// Package queue carries provider delivery-status callbacks from the HTTP
// edge to the workers that fold them into the dispatch log. Decoupling
// the two keeps provider callback latency flat while the database is
// busy with a tick.
package queue

import "context"

const (
	// StatusQueue receives raw provider delivery-status events.
	StatusQueue = "delivery-status"
	// StatusDLQ collects events that could not be parsed or applied.
	StatusDLQ = "dlq.delivery-status"
)

// Publisher publishes delivery-status events.
type Publisher interface {
	Publish(ctx context.Context, queue string, event StatusEvent) error
	Close() error
}

// EventHandler handles a consumed delivery-status event.
type EventHandler func(ctx context.Context, event StatusEvent) error

// Consumer consumes delivery-status events from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler EventHandler) error
	Close() error
}
