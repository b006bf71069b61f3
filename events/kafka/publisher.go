// Package kafka publishes goIdentity generation events to Kafka topics.
//
// Each event channel maps to a topic. Writes go through a circuit breaker so
// a broker outage fails fast instead of holding dispatcher workers for the
// full publish timeout.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned while the breaker rejects writes.
var ErrCircuitOpen = errors.New("kafka publisher: circuit open")

// Config holds producer and breaker settings.
type Config struct {
	Brokers      []string
	TopicPrefix  string
	BatchSize    int
	BatchTimeout time.Duration

	// Breaker
	BreakerName  string
	MaxRequests  uint32
	Interval     time.Duration
	OpenTimeout  time.Duration
	FailureRatio float64
	MinRequests  uint32
}

// DefaultConfig returns producer defaults for brokers.
func DefaultConfig(brokers []string) Config {
	return Config{
		Brokers:      brokers,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		BreakerName:  "goidentity-kafka",
		MaxRequests:  1,
		Interval:     60 * time.Second,
		OpenTimeout:  30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher implements goIdentity.EventPublisher on a kafka-go writer.
type Publisher struct {
	writer  messageWriter
	breaker *gobreaker.CircuitBreaker[struct{}]
	prefix  string
	logger  zerolog.Logger
}

var _ goIdentity.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a publisher writing to cfg.Brokers.
func NewPublisher(cfg Config, logger zerolog.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: false,
	}
	return newPublisher(w, cfg, logger)
}

func newPublisher(w messageWriter, cfg Config, logger zerolog.Logger) *Publisher {
	logger = logger.With().Str("component", "kafka_publisher").Logger()
	settings := gobreaker.Settings{
		Name:        cfg.BreakerName,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up is not a broker failure.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	}
	return &Publisher{
		writer:  w,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
		prefix:  cfg.TopicPrefix,
		logger:  logger,
	}
}

// Publish writes event to the topic named after channel, keyed by account so
// one account's events stay ordered within a partition.
func (p *Publisher) Publish(ctx context.Context, channel string, event goIdentity.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	topic := p.prefix + channel
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(event.AccountID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
		Time: event.Timestamp,
	}

	_, err = p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.writer.WriteMessages(ctx, msg)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %s", ErrCircuitOpen, topic)
		}
		p.logger.Error().Err(err).
			Str("topic", topic).
			Str("event_type", event.Type).
			Msg("failed to publish event")
		return fmt.Errorf("publish event to %s: %w", topic, err)
	}

	p.logger.Debug().
		Str("topic", topic).
		Str("event_type", event.Type).
		Str("event_id", event.ID).
		Msg("event published")
	return nil
}

// State reports the breaker state.
func (p *Publisher) State() gobreaker.State {
	return p.breaker.State()
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
