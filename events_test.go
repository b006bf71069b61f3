package goIdentity

import (
	"context"
	"errors"
	"testing"
)

type recordingPublisher struct {
	channels []string
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, _ Event) error {
	p.channels = append(p.channels, channel)
	return p.err
}

func TestMultiPublisherFansOutAndReturnsFirstError(t *testing.T) {
	first := errors.New("first down")
	a := &recordingPublisher{}
	b := &recordingPublisher{err: first}
	c := &recordingPublisher{err: errors.New("second down")}

	m := MultiPublisher{a, nil, b, c}
	err := m.Publish(context.Background(), "identity.otp", Event{ID: "e1"})
	if !errors.Is(err, first) {
		t.Fatalf("expected first error, got %v", err)
	}
	for i, p := range []*recordingPublisher{a, b, c} {
		if len(p.channels) != 1 || p.channels[0] != "identity.otp" {
			t.Fatalf("publisher %d saw %v", i, p.channels)
		}
	}

	if err := (MultiPublisher{a}).Publish(context.Background(), "identity.totp", Event{}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestMultiPublisherThroughEngine(t *testing.T) {
	f := newFixture(t, nil)
	extra := NewChannelPublisher(4)

	engine, err := New().
		WithConfig(f.cfg).
		WithAccountStore(f.accounts).
		WithOpaqueTokenStore(f.engine.core.opaque).
		WithOTPStore(f.engine.core.otps).
		WithRevocationLedger(f.engine.core.ledger).
		WithEventPublisher(MultiPublisher{f.publisher, extra}).
		WithClock(f.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })
	f.engine = engine
	f.addAccount(t, "acct-1", "alice@example.com", "pw-123456")

	if _, err := engine.Exchange(context.Background(), AuthRequest{Credential: "alice@example.com"}, TypeIdentifier, TypeOTP); err != nil {
		t.Fatalf("identifier->otp failed: %v", err)
	}
	_ = engine.Close()

	if len(f.publisher.Messages()) != 1 || len(extra.Messages()) != 1 {
		t.Fatalf("expected the event on both publishers, got %d and %d", len(f.publisher.Messages()), len(extra.Messages()))
	}
	if msg := <-extra.Messages(); msg.Event.AccountID != "acct-1" {
		t.Fatalf("unexpected event %+v", msg)
	}
}
