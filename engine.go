package goIdentity

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Engine dispatches credential exchanges to the registered Verifier and
// Provider pairs.
//
// Engine instances are immutable after Build and safe for concurrent use.
type Engine struct {
	core     *core
	registry *registry

	basicHeader  *BasicVerifier
	basicPair    *BasicVerifier
	accessToken  *JWTProvider
	idToken      *JWTProvider
	apiKey       *JWTProvider
	accessVerify *JWTVerifier
}

// Exchange verifies req as a from credential and mints a to token.
//
// Unregistered pairs fail with ErrUnsupportedExchange. Errors from the
// verifier and provider are returned unchanged; use KindOf to classify them
// and PublicError before rendering them to clients.
func (e *Engine) Exchange(ctx context.Context, req AuthRequest, from, to ExchangeType) (*Tokens, error) {
	if e == nil || e.core == nil || e.registry == nil {
		return nil, ErrEngineNotReady
	}
	if ctx == nil {
		ctx = context.Background()
	}
	c := e.core

	x, ok := e.registry.lookup(from, to)
	if !ok {
		c.inc(MetricExchangeUnsupported)
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExchange, ExchangePair{From: from, To: to})
	}

	start := time.Now()
	tokens, err := x.Run(ctx, withContextDefaults(ctx, req))
	if c.metrics.LatencyEnabled() {
		c.metrics.Observe(MetricExchangeLatency, time.Since(start))
	}

	kind := KindOf(err)
	e.record(kind)
	c.logger.Debug().
		Str("from", string(from)).
		Str("to", string(to)).
		Stringer("result", kind).
		Dur("elapsed", time.Since(start)).
		Msg("exchange")

	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// ExchangeRestricted runs Exchange with restrictions replacing any
// restrictions already present on req.
func (e *Engine) ExchangeRestricted(ctx context.Context, req AuthRequest, from, to ExchangeType, restrictions TokenRestrictions) (*Tokens, error) {
	req.Restrictions = &restrictions
	return e.Exchange(ctx, req, from, to)
}

// SupportsExchange reports whether a (from, to) pair is registered.
func (e *Engine) SupportsExchange(from, to ExchangeType) bool {
	if e == nil {
		return false
	}
	_, ok := e.registry.lookup(from, to)
	return ok
}

// SupportedExchanges lists the registered pairs in a stable order.
func (e *Engine) SupportedExchanges() []ExchangePair {
	if e == nil {
		return nil
	}
	return e.registry.pairs()
}

// RevokeToken removes the JTI of a signed token from the revocation ledger.
// Later verification of the token fails with ErrUnauthorized.
func (e *Engine) RevokeToken(ctx context.Context, token string) error {
	if e == nil || e.core == nil {
		return ErrEngineNotReady
	}
	return e.core.revoke(ctx, token)
}

// NeedsPasswordRehash reports whether account's password was hashed under a
// version other than the current one. Callers re-hash on successful login.
func (e *Engine) NeedsPasswordRehash(account *Account) bool {
	if e == nil || e.core == nil || account == nil {
		return false
	}
	return e.core.passwords.NeedsRehash(account.PasswordVersion)
}

// HashPassword hashes plaintext with the current password version and returns
// the values to store on the account.
func (e *Engine) HashPassword(plaintext string) (hash, salt string, version int, err error) {
	if e == nil || e.core == nil {
		return "", "", 0, ErrEngineNotReady
	}
	d, version, err := e.core.passwords.Hash(plaintext)
	if err != nil {
		return "", "", 0, err
	}
	return d.Hash, d.Salt, version, nil
}

// BasicVerifier returns the verifier backing the basic exchanges. header
// selects HTTP Basic decoding against the global domain.
func (e *Engine) BasicVerifier(header bool) *BasicVerifier {
	if header {
		return e.basicHeader
	}
	return e.basicPair
}

// AccessTokenProvider returns the provider minting access tokens.
func (e *Engine) AccessTokenProvider() Provider { return e.accessToken }

// IDTokenProvider returns the provider minting ID tokens.
func (e *Engine) IDTokenProvider() Provider { return e.idToken }

// AccessTokenVerifier returns the verifier of bearer access tokens.
func (e *Engine) AccessTokenVerifier() Verifier { return e.accessVerify }

// Close drains queued events and stops the event dispatcher.
func (e *Engine) Close() error {
	if e == nil || e.core == nil {
		return nil
	}
	e.core.events.Close()
	return nil
}

// EventsDropped reports events dropped because the dispatcher buffer was full
// or the engine was already closed.
func (e *Engine) EventsDropped() uint64 {
	if e == nil || e.core == nil {
		return 0
	}
	return e.core.events.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.core == nil || e.core.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.core.metrics.Snapshot()
}

// Logger returns the engine logger.
func (e *Engine) Logger() zerolog.Logger {
	if e == nil || e.core == nil {
		return zerolog.Nop()
	}
	return e.core.logger
}

func (e *Engine) record(kind ErrorKind) {
	c := e.core
	switch kind {
	case KindNone:
		c.inc(MetricExchangeSuccess)
	case KindAuthorization:
		c.inc(MetricExchangeAuthFailure)
	case KindFormat:
		c.inc(MetricExchangeFormatFailure)
	case KindUnavailable, KindInternal, KindConfiguration:
		c.inc(MetricExchangeBackendFailure)
	case KindTimeout:
		c.inc(MetricExchangeTimeout)
	}
}

// EncryptToken applies the configured envelope to a signed token string.
// With encryption disabled it fails with ErrEncryptionDisabled.
func (e *Engine) EncryptToken(token string) (string, error) {
	if e == nil || e.core == nil {
		return "", ErrEngineNotReady
	}
	if !e.core.encryptor.Enabled() {
		return "", ErrEncryptionDisabled
	}
	return e.core.encryptor.Encrypt(token)
}

// DecryptToken removes the envelope applied by EncryptToken.
func (e *Engine) DecryptToken(ciphertext string) (string, error) {
	if e == nil || e.core == nil {
		return "", ErrEngineNotReady
	}
	if !e.core.encryptor.Enabled() {
		return "", ErrEncryptionDisabled
	}
	plain, err := e.core.encryptor.Decrypt(ciphertext)
	if err != nil {
		return "", ErrInvalidToken
	}
	return plain, nil
}
