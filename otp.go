package goIdentity

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/MrEthical07/goIdentity/internal"
	"github.com/google/uuid"
)

// IdentifierVerifier resolves an account from a bare identifier without any
// secret. It only fronts providers that deliver a secret out of band.
type IdentifierVerifier struct {
	c *core
}

func (v *IdentifierVerifier) Verify(ctx context.Context, req AuthRequest) (*Principal, error) {
	identifier := strings.TrimSpace(req.Credential)
	if identifier == "" {
		return nil, ErrInvalidAuthorizationFormat
	}
	domain := req.Domain
	if domain == "" {
		domain = v.c.cfg.GlobalDomain
	}

	account, err := v.c.accounts.FindByIdentifier(ctx, identifier, domain)
	if err != nil {
		return nil, backendError(err)
	}
	if account == nil {
		return nil, ErrCredentialsDoesNotExist
	}
	if id := account.Identifier(identifier); id == nil || !id.Active {
		return nil, ErrInactiveIdentifier
	}
	if !account.Active {
		return nil, ErrAccountInactive
	}
	return accountPrincipal(account), nil
}

// OTPProvider issues a one-time password and returns its id. The code itself
// only leaves the engine through the generation event.
type OTPProvider struct {
	c *core
}

func (p *OTPProvider) Provide(ctx context.Context, principal *Principal, req AuthRequest) (*Tokens, error) {
	c := p.c
	if principal == nil || principal.Account == nil {
		return nil, ErrCredentialsDoesNotExist
	}

	mode, err := c.cfg.OTP.Mode.codeMode()
	if err != nil {
		return nil, err
	}
	code, err := internal.NewCode(mode, c.cfg.OTP.Length)
	if err != nil {
		return nil, err
	}

	now := c.now()
	otp := &OneTimePassword{
		ID:        uuid.NewString(),
		Code:      code,
		AccountID: principal.Account.ID,
		ExpiresAt: now.Add(c.cfg.OTP.TTL),
	}
	if err := c.otps.Save(ctx, otp, c.cfg.OTP.TTL+c.cfg.Opaque.RetentionGrace); err != nil {
		return nil, backendError(err)
	}
	c.inc(MetricOTPIssued)

	c.publish(ctx, c.cfg.Events.OTPChannel, EventOTPGenerated, principal, principal.Account.Domain, map[string]string{
		"otp_id": otp.ID,
		"code":   otp.Code,
	})

	return &Tokens{
		Token:      otp.ID,
		EntityType: EntityAccount,
		EntityID:   principal.Account.ID,
		ExpiresAt:  otp.ExpiresAt,
	}, nil
}

// OTPVerifier checks an "id:code" credential against the OTP store.
type OTPVerifier struct {
	c *core
}

func (v *OTPVerifier) Verify(ctx context.Context, req AuthRequest) (*Principal, error) {
	c := v.c
	parts := strings.Split(req.Credential, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, ErrInvalidAuthorizationFormat
	}

	otp, err := c.otps.Get(ctx, parts[0])
	if err != nil {
		return nil, backendError(err)
	}
	if otp == nil {
		c.inc(MetricOTPFailure)
		return nil, ErrInvalidToken
	}
	if !c.now().Before(otp.ExpiresAt) {
		c.inc(MetricOTPFailure)
		return nil, ErrExpiredToken
	}
	if err := c.allowAttempt(ctx, attemptsOTP, otp.AccountID); err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(otp.Code), []byte(parts[1])) != 1 {
		c.inc(MetricOTPFailure)
		c.attemptFailed(ctx, attemptsOTP, otp.AccountID)
		return nil, ErrPasswordsDoNotMatch
	}
	c.attemptSucceeded(ctx, attemptsOTP, otp.AccountID)

	account, err := c.accountByID(ctx, otp.AccountID)
	if err != nil {
		return nil, err
	}
	c.inc(MetricOTPVerified)
	return accountPrincipal(account), nil
}
