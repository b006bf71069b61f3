package goIdentity

import (
	"context"

	"github.com/MrEthical07/goIdentity/internal/events"
	"github.com/redis/go-redis/v9"
)

const (
	EventOTPGenerated          = "otp.generated"
	EventTOTPLinkerGenerated   = "totp.linker.generated"
	EventPasswordlessGenerated = "passwordless.generated"
)

// Event is a generation event handed to out-of-band delivery collaborators.
type Event = events.Event

// EventPublisher delivers events. Publish failures are logged and never fail
// the issuance that produced the event.
type EventPublisher = events.Publisher

// ChannelPublisher writes events into a buffered channel.
type ChannelPublisher = events.ChannelPublisher

// EventMessage pairs a published event with its channel.
type EventMessage = events.Message

// NewChannelPublisher returns a publisher that buffers up to buffer events.
func NewChannelPublisher(buffer int) *ChannelPublisher {
	return events.NewChannelPublisher(buffer)
}

// NewRedisPublisher returns a publisher that sends JSON events over Redis
// pub/sub, prefixing every channel name with prefix.
func NewRedisPublisher(client redis.UniversalClient, prefix string) EventPublisher {
	return events.NewRedisPublisher(client, prefix)
}

// MultiPublisher fans events out to every publisher and returns the first error.
type MultiPublisher []EventPublisher

func (m MultiPublisher) Publish(ctx context.Context, channel string, event Event) error {
	var first error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, channel, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

