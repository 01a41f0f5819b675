// Package watermill adapts ThreeDotsLabs/watermill publishers and subscribers
// to the messaging contracts. Kafka is reached through watermill-kafka over
// sarama; gochannel serves in-process runs.
package watermill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/messaging"
)

type publisher struct {
	pub message.Publisher
}

// NewPublisher wraps a watermill publisher.
func NewPublisher(pub message.Publisher) messaging.Publisher {
	return &publisher{pub: pub}
}

func (p *publisher) Publish(ctx context.Context, topic string, payload []byte) error {
	msg := message.NewMessage(uuid.NewString(), payload)
	msg.SetContext(ctx)
	if err := p.pub.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (p *publisher) Close() error {
	return p.pub.Close()
}

// SubscriberFactory builds a fresh watermill subscriber. Each stream gets its
// own and closes it when done.
type SubscriberFactory func() (message.Subscriber, error)

type subscriber struct {
	factory SubscriberFactory
}

// NewSubscriber returns a subscriber whose streams are backed by clients from
// factory.
func NewSubscriber(factory SubscriberFactory) messaging.Subscriber {
	return &subscriber{factory: factory}
}

func (s *subscriber) Subscribe(ctx context.Context, topic string) (messaging.Stream, error) {
	client, err := s.factory()
	if err != nil {
		return nil, fmt.Errorf("failed to create subscriber: %w", err)
	}

	// The subscription outlives the caller's ctx; Close ends it.
	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	ch, err := client.Subscribe(subCtx, topic)
	if err != nil {
		cancel()
		_ = client.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	return &stream{client: client, messages: ch, cancel: cancel, done: make(chan struct{})}, nil
}

type stream struct {
	client   message.Subscriber
	messages <-chan *message.Message
	cancel   context.CancelFunc

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

func (s *stream) Next(ctx context.Context) (messaging.Message, error) {
	select {
	case <-s.done:
		return nil, messaging.ErrStreamClosed
	default:
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, messaging.ErrStreamClosed
	case msg, ok := <-s.messages:
		if !ok {
			return nil, messaging.ErrStreamClosed
		}
		return &delivery{msg: msg}, nil
	}
}

func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
		s.closeErr = s.client.Close()
	})
	return s.closeErr
}

type delivery struct {
	msg *message.Message
}

func (d *delivery) Payload() []byte { return d.msg.Payload }

func (d *delivery) Position() string { return d.msg.UUID }

func (d *delivery) Commit(context.Context) error {
	if !d.msg.Ack() {
		return errors.New("message was already nacked")
	}
	return nil
}

// Logger adapts slog for watermill components.
func Logger(logger *slog.Logger) watermill.LoggerAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return watermill.NewSlogLogger(logger)
}
