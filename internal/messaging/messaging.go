package messaging

import (
	"context"
	"errors"
)

// ErrStreamClosed is returned by Stream.Next once the stream has been closed
// or the underlying client has gone away.
var ErrStreamClosed = errors.New("message stream closed")

// Publisher defines an interface for publishing events to a message broker.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// Subscriber opens a consumer-group bound stream on a topic.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (Stream, error)
}

// Stream is a blocking iterator over the messages of one subscription. It
// owns its broker client; Close releases it.
type Stream interface {
	// Next blocks until a message is available, ctx is done, or the stream
	// is closed.
	Next(ctx context.Context) (Message, error)
	Close() error
}

// Message is one delivered record.
type Message interface {
	Payload() []byte
	// Position identifies the record in the log, for logging.
	Position() string
	// Commit acknowledges the record so it is not redelivered to the group.
	Commit(ctx context.Context) error
}
