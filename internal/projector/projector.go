// Package projector runs the order-side subscriber loop that keeps the
// projection store in step with the product-created topic.
package projector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/messaging"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/metrics"
)

// State is the lifecycle position of a Subscriber.
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Applier stores one decoded event.
type Applier interface {
	Apply(ctx context.Context, e entity.ProductCreated) (entity.Product, error)
}

// Option configures a Subscriber.
type Option func(*Subscriber)

func WithLogger(l *slog.Logger) Option {
	return func(s *Subscriber) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Subscriber) { s.metrics = m }
}

// WithDeadLetter forwards the raw payload of every message that could not be
// decoded or applied to topic.
func WithDeadLetter(pub messaging.Publisher, topic string) Option {
	return func(s *Subscriber) {
		s.deadLetter = pub
		s.deadLetterTopic = topic
	}
}

// WithRetryDelay sets the pause after a failed read.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Subscriber) { s.retryDelay = d }
}

// Subscriber consumes product-created events one at a time and commits each
// only after it has been handled.
type Subscriber struct {
	sub     messaging.Subscriber
	topic   string
	applier Applier

	logger          *slog.Logger
	metrics         *metrics.Metrics
	deadLetter      messaging.Publisher
	deadLetterTopic string
	retryDelay      time.Duration

	state atomic.Int32
}

func New(sub messaging.Subscriber, topic string, applier Applier, opts ...Option) *Subscriber {
	s := &Subscriber{
		sub:        sub,
		topic:      topic,
		applier:    applier,
		logger:     slog.Default(),
		retryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Subscriber) State() State {
	return State(s.state.Load())
}

func (s *Subscriber) setState(st State) {
	s.state.Store(int32(st))
}

// Run subscribes and processes messages until ctx is cancelled, in which case
// it returns nil. A failed subscription or a stream that ends on its own is
// returned as an error.
func (s *Subscriber) Run(ctx context.Context) error {
	s.setState(StateStarting)
	stream, err := s.sub.Subscribe(ctx, s.topic)
	if err != nil {
		s.setState(StateStopped)
		return fmt.Errorf("failed to subscribe to %s: %w", s.topic, err)
	}
	defer func() {
		s.setState(StateStopping)
		if err := stream.Close(); err != nil {
			s.logger.Error("Failed to close stream", "topic", s.topic, "err", err)
		}
		s.setState(StateStopped)
	}()

	s.setState(StateRunning)
	s.logger.Info("Projector running", "topic", s.topic)

	for {
		msg, err := stream.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("Projector shutting down", "topic", s.topic)
				return nil
			}
			if errors.Is(err, messaging.ErrStreamClosed) {
				return fmt.Errorf("subscription to %s ended: %w", s.topic, err)
			}
			s.logger.Error("Error reading message", "topic", s.topic, "err", err)
			if !s.sleep(ctx) {
				s.logger.Info("Projector shutting down", "topic", s.topic)
				return nil
			}
			continue
		}

		s.handle(ctx, msg)

		// Interrupted mid-message: leave it uncommitted so it is redelivered.
		if ctx.Err() != nil {
			s.logger.Info("Projector shutting down", "topic", s.topic, "uncommitted", msg.Position())
			return nil
		}
		if err := msg.Commit(ctx); err != nil {
			s.logger.Error("Failed to commit message", "position", msg.Position(), "err", err)
		}
	}
}

func (s *Subscriber) handle(ctx context.Context, msg messaging.Message) {
	e, err := entity.DecodeProductCreated(msg.Payload())
	if err != nil {
		s.logger.Error("Skipping undecodable message", "position", msg.Position(), "err", err)
		s.metrics.Message(metrics.ResultDecodeError)
		s.deadLetterMessage(ctx, msg)
		return
	}

	p, err := s.apply(ctx, e)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("Failed to apply product event", "position", msg.Position(), "product_id", e.ID, "err", err)
		s.metrics.Message(metrics.ResultApplyError)
		s.deadLetterMessage(ctx, msg)
		return
	}

	s.metrics.Message(metrics.ResultApplied)
	s.logger.Debug("Product projected", "position", msg.Position(), "product_id", p.ID)
}

func (s *Subscriber) apply(ctx context.Context, e entity.ProductCreated) (p entity.Product, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic applying product %d: %v", e.ID, r)
		}
	}()
	return s.applier.Apply(ctx, e)
}

func (s *Subscriber) deadLetterMessage(ctx context.Context, msg messaging.Message) {
	if s.deadLetter == nil {
		return
	}
	if err := s.deadLetter.Publish(ctx, s.deadLetterTopic, msg.Payload()); err != nil {
		s.logger.Error("Failed to dead-letter message", "position", msg.Position(), "topic", s.deadLetterTopic, "err", err)
	}
}

func (s *Subscriber) sleep(ctx context.Context) bool {
	t := time.NewTimer(s.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
