package protocol

import "context"

// Receiver is a long-running adapter that feeds external events into the
// engine: the Kafka consumer for lead domain events and the Redis queue
// consumer for inbound resume events both implement it.
type Receiver interface {
	// Validate checks the receiver configuration before starting.
	Validate() error

	// Start begins consuming. It returns after the consume loop is
	// running; the loop itself stops when ctx is cancelled or Stop is
	// called.
	Start(ctx context.Context) error

	// Stop shuts the consume loop down and releases connections.
	Stop(ctx context.Context) error
}
