package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event is the canonical generation event published to delivery collaborators.
type Event struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	AccountID string            `json:"account_id,omitempty"`
	Domain    string            `json:"domain,omitempty"`
	Payload   map[string]string `json:"payload,omitempty"`
}

// Publisher delivers an event to a named channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, event Event) error
}

// Message pairs a published event with its channel.
type Message struct {
	Channel string
	Event   Event
}

// ChannelPublisher writes events into a buffered channel.
type ChannelPublisher struct {
	messages chan Message
}

func NewChannelPublisher(buffer int) *ChannelPublisher {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelPublisher{
		messages: make(chan Message, buffer),
	}
}

func (p *ChannelPublisher) Publish(ctx context.Context, channel string, event Event) error {
	select {
	case p.messages <- Message{Channel: channel, Event: event}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *ChannelPublisher) Messages() <-chan Message {
	return p.messages
}

// RedisPublisher publishes JSON-encoded events over Redis pub/sub.
type RedisPublisher struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisPublisher(redisClient redis.UniversalClient, prefix string) *RedisPublisher {
	return &RedisPublisher{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.redis.Publish(ctx, p.prefix+channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// ErrDropped is reported to the error callback when a full buffer discards an event.
var ErrDropped = errors.New("event dropped: dispatcher buffer full")

// ErrClosed is reported for events emitted after the dispatcher closed.
var ErrClosed = errors.New("event dropped: dispatcher closed")
