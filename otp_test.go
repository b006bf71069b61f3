package goIdentity

import (
	"context"
	"testing"
	"time"
)

func requestOTP(t *testing.T, f *fixture, identifier string) (*Tokens, string) {
	t.Helper()
	tokens, err := f.engine.Exchange(context.Background(), AuthRequest{Credential: identifier}, TypeIdentifier, TypeOTP)
	if err != nil {
		t.Fatalf("identifier->otp failed: %v", err)
	}
	msg := f.nextEvent(t)
	if msg.Channel != f.cfg.Events.OTPChannel || msg.Event.Type != EventOTPGenerated {
		t.Fatalf("unexpected event %+v", msg)
	}
	if msg.Event.Payload["otp_id"] != tokens.Token {
		t.Fatalf("event otp id %q does not match issued id %q", msg.Event.Payload["otp_id"], tokens.Token)
	}
	return tokens, msg.Event.Payload["code"]
}

func TestOTPEndToEnd(t *testing.T) {
	f := newFixture(t, nil)
	f.addAccount(t, "acct-1", "alice@example.com", "pw-123456")

	tokens, code := requestOTP(t, f, "alice@example.com")
	if len(code) != 6 || !isNumeric(code) {
		t.Fatalf("expected 6 digit numeric code, got %q", code)
	}
	if tokens.Type != TypeOTP || tokens.EntityID != "acct-1" {
		t.Fatalf("unexpected tokens %+v", tokens)
	}

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	_, err := f.engine.Exchange(context.Background(), AuthRequest{Credential: tokens.Token + ":" + wrong}, TypeOTP, TypeAccessToken)
	expectErr(t, err, ErrPasswordsDoNotMatch)

	access, err := f.engine.Exchange(context.Background(), AuthRequest{Credential: tokens.Token + ":" + code}, TypeOTP, TypeAccessToken)
	if err != nil {
		t.Fatalf("otp->accessToken failed: %v", err)
	}
	if access.EntityID != "acct-1" {
		t.Fatalf("unexpected subject %q", access.EntityID)
	}

	f.clock.Advance(f.cfg.OTP.TTL)
	_, err = f.engine.Exchange(context.Background(), AuthRequest{Credential: tokens.Token + ":" + code}, TypeOTP, TypeAccessToken)
	expectErr(t, err, ErrExpiredToken)
}

func TestOTPMalformedAndUnknown(t *testing.T) {
	f := newFixture(t, nil)

	for _, cred := range []string{"", "only-id", "a:b:c", ":123456", "id:"} {
		_, err := f.engine.Exchange(context.Background(), AuthRequest{Credential: cred}, TypeOTP, TypeAccessToken)
		expectErr(t, err, ErrInvalidAuthorizationFormat)
	}

	_, err := f.engine.Exchange(context.Background(), AuthRequest{Credential: "00000000-0000-0000-0000-000000000000:123456"}, TypeOTP, TypeAccessToken)
	expectErr(t, err, ErrInvalidToken)
}

func TestOTPModes(t *testing.T) {
	tests := []struct {
		mode  OTPMode
		check func(rune) bool
	}{
		{OTPNumeric, func(r rune) bool { return r >= '0' && r <= '9' }},
		{OTPAlphabetic, func(r rune) bool { return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') }},
		{OTPAlphanumeric, func(r rune) bool {
			return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		}},
	}
	for _, tc := range tests {
		t.Run(string(tc.mode), func(t *testing.T) {
			f := newFixture(t, func(cfg *Config) {
				cfg.OTP.Mode = tc.mode
				cfg.OTP.Length = 10
			})
			f.addAccount(t, "acct-1", "alice@example.com", "pw-123456")
			_, code := requestOTP(t, f, "alice@example.com")
			if len(code) != 10 {
				t.Fatalf("expected 10 characters, got %q", code)
			}
			for _, r := range code {
				if !tc.check(r) {
					t.Fatalf("character %q outside %s alphabet", r, tc.mode)
				}
			}
		})
	}
}

func TestIdentifierVerifierRejectsInactive(t *testing.T) {
	f := newFixture(t, nil)
	a := f.addAccount(t, "acct-1", "alice@example.com", "pw-123456")
	a.Identifiers[0].Active = false
	f.accounts.put(a)

	_, err := f.engine.Exchange(context.Background(), AuthRequest{Credential: "alice@example.com"}, TypeIdentifier, TypeOTP)
	expectErr(t, err, ErrInactiveIdentifier)

	_, err = f.engine.Exchange(context.Background(), AuthRequest{Credential: "ghost@example.com"}, TypeIdentifier, TypeOTP)
	expectErr(t, err, ErrCredentialsDoesNotExist)
}

func TestOTPPublishFailureDoesNotFailIssuance(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		cfg.Events.BufferSize = 1
		cfg.Events.DropIfFull = true
		cfg.Events.PublishTimeout = 10 * time.Millisecond
	})
	f.addAccount(t, "acct-1", "alice@example.com", "pw-123456")

	// Nobody drains the channel publisher; deliveries time out or drop.
	for i := 0; i < 80; i++ {
		if _, err := f.engine.Exchange(context.Background(), AuthRequest{Credential: "alice@example.com"}, TypeIdentifier, TypeOTP); err != nil {
			t.Fatalf("issuance %d failed: %v", i, err)
		}
	}
}
