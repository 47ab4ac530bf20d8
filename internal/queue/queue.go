package queue

import "context"

const (
	// DocumentProcessingQueue is the durable work queue that carries bulk
	// send batch messages.
	DocumentProcessingQueue = "document-processing"
)

// DLQName returns the dead-letter queue name, e.g. dlq.document-processing.
func DLQName() string {
	return "dlq." + DocumentProcessingQueue
}

// Publisher publishes batch messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg BatchMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg BatchMessage) error

// Consumer consumes batch messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}
