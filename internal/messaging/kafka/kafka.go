package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	kafkaGo "github.com/segmentio/kafka-go"

	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/messaging"
)

// Config holds the connection settings shared by the publisher and subscriber.
type Config struct {
	Brokers     []string
	GroupID     string
	DialTimeout time.Duration
	Logger      *slog.Logger
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c Config) dialTimeout() time.Duration {
	if c.DialTimeout > 0 {
		return c.DialTimeout
	}
	return 5 * time.Second
}

type publisher struct {
	w *kafkaGo.Writer
}

// NewPublisher creates a Kafka publisher. Messages are written without a key
// and acknowledged by all in-sync replicas.
func NewPublisher(cfg Config) (messaging.Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka publisher: no brokers configured")
	}
	w := &kafkaGo.Writer{
		Addr:                   kafkaGo.TCP(cfg.Brokers...),
		Balancer:               &kafkaGo.LeastBytes{},
		RequiredAcks:           kafkaGo.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &publisher{w: w}, nil
}

func (p *publisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := p.w.WriteMessages(ctx, kafkaGo.Message{Topic: topic, Value: payload}); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (p *publisher) Close() error {
	return p.w.Close()
}

type subscriber struct {
	cfg Config
}

// NewSubscriber creates a subscriber bound to cfg.GroupID.
func NewSubscriber(cfg Config) (messaging.Subscriber, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka subscriber: no brokers configured")
	}
	if cfg.GroupID == "" {
		return nil, errors.New("kafka subscriber: group id is required")
	}
	return &subscriber{cfg: cfg}, nil
}

// Subscribe dials the cluster before creating the reader so that an
// unreachable broker surfaces here rather than as a stream of read errors.
func (s *subscriber) Subscribe(ctx context.Context, topic string) (messaging.Stream, error) {
	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.dialTimeout())
	defer cancel()

	var lastErr error
	for _, broker := range s.cfg.Brokers {
		conn, err := kafkaGo.DialContext(dialCtx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		_ = conn.Close()
		lastErr = nil
		break
	}
	if lastErr != nil {
		return nil, fmt.Errorf("failed to reach kafka brokers %v: %w", s.cfg.Brokers, lastErr)
	}

	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers:     s.cfg.Brokers,
		Topic:       topic,
		GroupID:     s.cfg.GroupID,
		StartOffset: kafkaGo.FirstOffset,
	})
	s.cfg.logger().Info("Kafka reader started", "topic", topic, "group", s.cfg.GroupID)
	return &stream{reader: reader}, nil
}

type stream struct {
	reader *kafkaGo.Reader
}

func (s *stream) Next(ctx context.Context) (messaging.Message, error) {
	msg, err := s.reader.FetchMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, io.EOF) {
			return nil, messaging.ErrStreamClosed
		}
		return nil, fmt.Errorf("failed to fetch message: %w", err)
	}
	return &message{reader: s.reader, msg: msg}, nil
}

func (s *stream) Close() error {
	return s.reader.Close()
}

type message struct {
	reader *kafkaGo.Reader
	msg    kafkaGo.Message
}

func (m *message) Payload() []byte { return m.msg.Value }

func (m *message) Position() string {
	return m.msg.Topic + "/" + strconv.Itoa(m.msg.Partition) + "@" + strconv.FormatInt(m.msg.Offset, 10)
}

func (m *message) Commit(ctx context.Context) error {
	if err := m.reader.CommitMessages(ctx, m.msg); err != nil {
		return fmt.Errorf("failed to commit offset %d: %w", m.msg.Offset, err)
	}
	return nil
}
