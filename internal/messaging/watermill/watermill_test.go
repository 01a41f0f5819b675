package watermill_test

import (
	"context"
	"errors"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/messaging"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/messaging/watermill"
)

func TestChannelDeliversInOrder(t *testing.T) {
	c := qt.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch := watermill.NewChannel(nil)
	defer ch.Close()

	pub := ch.Publisher()
	for _, p := range []string{"one", "two", "three"} {
		c.Assert(pub.Publish(ctx, "events", []byte(p)), qt.IsNil)
	}

	stream, err := ch.Subscriber().Subscribe(ctx, "events")
	c.Assert(err, qt.IsNil)
	defer stream.Close()

	for _, want := range []string{"one", "two", "three"} {
		msg, err := stream.Next(ctx)
		c.Assert(err, qt.IsNil)
		c.Assert(string(msg.Payload()), qt.Equals, want)
		c.Assert(msg.Position(), qt.Not(qt.Equals), "")
		c.Assert(msg.Commit(ctx), qt.IsNil)
	}
}

func TestNextReturnsContextError(t *testing.T) {
	c := qt.New(t)
	ch := watermill.NewChannel(nil)
	defer ch.Close()

	stream, err := ch.Subscriber().Subscribe(context.Background(), "quiet")
	c.Assert(err, qt.IsNil)
	defer stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = stream.Next(ctx)
	c.Assert(errors.Is(err, context.DeadlineExceeded), qt.IsTrue)
}

func TestNextAfterCloseReportsClosedStream(t *testing.T) {
	c := qt.New(t)
	ch := watermill.NewChannel(nil)
	defer ch.Close()

	stream, err := ch.Subscriber().Subscribe(context.Background(), "quiet")
	c.Assert(err, qt.IsNil)
	c.Assert(stream.Close(), qt.IsNil)
	c.Assert(stream.Close(), qt.IsNil)

	_, err = stream.Next(context.Background())
	c.Assert(err, qt.Equals, messaging.ErrStreamClosed)
}

func TestKafkaConstructorsValidateConfig(t *testing.T) {
	c := qt.New(t)

	_, err := watermill.NewKafkaPublisher(watermill.KafkaConfig{})
	c.Assert(err, qt.ErrorMatches, "kafka publisher: no brokers configured")

	_, err = watermill.NewKafkaSubscriber(watermill.KafkaConfig{Brokers: []string{"localhost:9092"}})
	c.Assert(err, qt.ErrorMatches, "kafka subscriber: group id is required")
}

func TestSaramaSubscriberConfigStartsAtOldest(t *testing.T) {
	c := qt.New(t)
	cfg := watermill.SaramaSubscriberConfig()
	c.Assert(cfg.Consumer.Offsets.Initial, qt.Equals, int64(-2))
}
