package watermill

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/messaging"
)

// KafkaConfig holds the broker settings for the watermill Kafka client.
type KafkaConfig struct {
	Brokers []string
	GroupID string
	Logger  *slog.Logger
}

// SaramaSubscriberConfig starts new consumer groups at the oldest retained
// offset so that events published before the first run are still seen.
func SaramaSubscriberConfig() *sarama.Config {
	cfg := kafka.DefaultSaramaSubscriberConfig()
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	return cfg
}

// SaramaPublisherConfig waits for all in-sync replicas.
func SaramaPublisherConfig() *sarama.Config {
	cfg := kafka.DefaultSaramaSyncPublisherConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	return cfg
}

// NewKafkaPublisher creates a watermill-kafka backed publisher.
func NewKafkaPublisher(cfg KafkaConfig) (messaging.Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka publisher: no brokers configured")
	}
	pub, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:               cfg.Brokers,
		Marshaler:             kafka.DefaultMarshaler{},
		OverwriteSaramaConfig: SaramaPublisherConfig(),
	}, Logger(cfg.Logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}
	return NewPublisher(pub), nil
}

// NewKafkaSubscriber creates a subscriber that opens a new consumer-group
// client per stream.
func NewKafkaSubscriber(cfg KafkaConfig) (messaging.Subscriber, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka subscriber: no brokers configured")
	}
	if cfg.GroupID == "" {
		return nil, errors.New("kafka subscriber: group id is required")
	}
	return NewSubscriber(func() (message.Subscriber, error) {
		return kafka.NewSubscriber(kafka.SubscriberConfig{
			Brokers:               cfg.Brokers,
			Unmarshaler:           kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: SaramaSubscriberConfig(),
			ConsumerGroup:         cfg.GroupID,
		}, Logger(cfg.Logger))
	}), nil
}
