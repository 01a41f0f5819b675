package watermill

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/messaging"
)

// Channel is an in-process pub/sub. It is persistent, so a subscriber that
// attaches late still receives everything published so far.
type Channel struct {
	gc *gochannel.GoChannel
}

func NewChannel(logger *slog.Logger) *Channel {
	return &Channel{gc: gochannel.NewGoChannel(gochannel.Config{Persistent: true}, Logger(logger))}
}

// Publisher returns a publisher on the channel. Closing it shuts the whole
// channel down.
func (c *Channel) Publisher() messaging.Publisher {
	return NewPublisher(c.gc)
}

// Subscriber returns a subscriber on the channel. Streams end their own
// subscription on Close without shutting the channel down.
func (c *Channel) Subscriber() messaging.Subscriber {
	return NewSubscriber(func() (message.Subscriber, error) {
		return sharedSubscriber{c.gc}, nil
	})
}

func (c *Channel) Close() error {
	return c.gc.Close()
}

type sharedSubscriber struct {
	message.Subscriber
}

func (sharedSubscriber) Close() error { return nil }
