package goIdentity

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goIdentity/internal/events"
	"github.com/MrEthical07/goIdentity/internal/rate"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// core holds the collaborators shared by every built-in verifier and provider.
// It is assembled once by Builder and never mutated afterwards.
type core struct {
	cfg Config

	accounts     AccountStore
	applications ApplicationStore
	totpKeys     TOTPKeyStore
	opaque       OpaqueTokenStore
	otps         OTPStore
	ledger       RevocationLedger

	passwords *password.Versions
	signer    *jwt.Manager
	encryptor jwt.Encryptor

	// limiter is nil unless Attempts.Enabled.
	limiter *rate.Limiter

	events  *events.Dispatcher
	metrics *Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

func (c *core) inc(id MetricID) {
	if c.metrics != nil {
		c.metrics.Inc(id)
	}
}

// publish queues a generation event. Delivery failures are reported through
// the dispatcher's error hook and never reach the caller.
func (c *core) publish(ctx context.Context, channel, eventType string, principal *Principal, domain string, payload map[string]string) {
	if c.events == nil {
		return
	}
	c.events.Emit(ctx, channel, Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: c.now().UTC(),
		AccountID: principal.EntityID(),
		Domain:    domain,
		Payload:   payload,
	})
}

// Failed-attempt scopes.
const (
	attemptsPassword     = "password"
	attemptsOTP          = "otp"
	attemptsTOTP         = "totp"
	attemptsClientSecret = "client_secret"
)

// allowAttempt refuses a secret check while subject is throttled in scope.
func (c *core) allowAttempt(ctx context.Context, scope, subject string) error {
	err := c.limiter.Check(ctx, scope, subject)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		c.inc(MetricAttemptsThrottled)
		c.logger.Debug().Str("scope", scope).Str("subject", subject).Msg("attempt throttled")
		return ErrTooManyAttempts
	default:
		return backendError(err)
	}
}

// attemptFailed counts a failed check. Counter errors are logged only so the
// caller still sees the original verification failure.
func (c *core) attemptFailed(ctx context.Context, scope, subject string) {
	if err := c.limiter.RecordFailure(ctx, scope, subject); err != nil {
		c.logger.Warn().Err(err).Str("scope", scope).Str("subject", subject).Msg("failed to record attempt")
	}
}

func (c *core) attemptSucceeded(ctx context.Context, scope, subject string) {
	if err := c.limiter.Reset(ctx, scope, subject); err != nil {
		c.logger.Warn().Err(err).Str("scope", scope).Str("subject", subject).Msg("failed to reset attempts")
	}
}

// accountByID loads an account referenced by a stored artifact.
func (c *core) accountByID(ctx context.Context, id string) (*Account, error) {
	account, err := c.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, backendError(err)
	}
	if account == nil {
		return nil, ErrCredentialsDoesNotExist
	}
	if !account.Active {
		return nil, ErrAccountInactive
	}
	return account, nil
}

func accountPrincipal(account *Account) *Principal {
	return &Principal{EntityType: EntityAccount, Account: account}
}

func principalDomain(p *Principal) string {
	switch {
	case p == nil:
		return ""
	case p.Account != nil:
		return p.Account.Domain
	case p.Application != nil:
		return p.Application.Domain
	default:
		return ""
	}
}
