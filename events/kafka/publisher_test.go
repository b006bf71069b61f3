package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func testConfig() Config {
	cfg := DefaultConfig([]string{"localhost:9092"})
	cfg.TopicPrefix = "test."
	cfg.MinRequests = 3
	cfg.OpenTimeout = time.Minute
	return cfg
}

func sampleEvent() goIdentity.Event {
	return goIdentity.Event{
		ID:        "evt-1",
		Type:      goIdentity.EventOTPGenerated,
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		AccountID: "acc-1",
		Domain:    "global",
		Payload:   map[string]string{"otp_id": "otp-1", "code": "123456"},
	}
}

func TestPublisher_Publish_WritesKeyedMessage(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, testConfig(), zerolog.Nop())

	require.NoError(t, p.Publish(context.Background(), "identity.otp", sampleEvent()))

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "test.identity.otp", msg.Topic)
	assert.Equal(t, []byte("acc-1"), msg.Key)
	assert.Contains(t, msg.Headers, kafka.Header{Key: "event_type", Value: []byte(goIdentity.EventOTPGenerated)})
	assert.Contains(t, msg.Headers, kafka.Header{Key: "event_id", Value: []byte("evt-1")})

	var decoded goIdentity.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "123456", decoded.Payload["code"])
}

func TestPublisher_Publish_WrapsWriterError(t *testing.T) {
	boom := errors.New("leader not available")
	p := newPublisher(&fakeWriter{err: boom}, testConfig(), zerolog.Nop())

	err := p.Publish(context.Background(), "identity.otp", sampleEvent())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, gobreaker.StateClosed, p.State())
}

func TestPublisher_BreakerOpensAfterFailures(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newPublisher(w, testConfig(), zerolog.Nop())

	for i := 0; i < 3; i++ {
		require.Error(t, p.Publish(context.Background(), "identity.otp", sampleEvent()))
	}
	assert.Equal(t, gobreaker.StateOpen, p.State())

	w.mu.Lock()
	w.err = nil
	w.mu.Unlock()

	err := p.Publish(context.Background(), "identity.otp", sampleEvent())
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Empty(t, w.messages)
}

func TestPublisher_CanceledContextDoesNotTrip(t *testing.T) {
	w := &fakeWriter{err: context.Canceled}
	p := newPublisher(w, testConfig(), zerolog.Nop())

	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, p.Publish(context.Background(), "identity.otp", sampleEvent()), context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, p.State())
}

func TestPublisher_Close(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, testConfig(), zerolog.Nop())

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}
