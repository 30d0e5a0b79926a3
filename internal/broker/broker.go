package broker

import "context"

// MessageQueue carries detection batches from the ingest endpoint to the
// workers.
type MessageQueue interface {
	Publish(ctx context.Context, data []byte) error
	// Subscribe must be called once before Consume.
	Subscribe() error
	// Consume delivers messages to handler until ctx is done. Handler errors
	// are logged and do not stop consumption.
	Consume(ctx context.Context, handler func([]byte) error) error
	Close() error
}
