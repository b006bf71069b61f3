package goIdentity

import (
	"context"
	"encoding/json"
	"time"

	"github.com/MrEthical07/goIdentity/internal"
	"github.com/google/uuid"
)

const totpLinkerInfoType = "totp_linker"

type totpLinkerInfo struct {
	AccountID string `json:"account_id"`
}

// issueOpaque persists a new opaque token for the principal's account. The
// store keeps the record RetentionGrace past ExpiresAt so late presentations
// are reported as expired rather than unknown.
func (c *core) issueOpaque(ctx context.Context, kind OpaqueKind, principal *Principal, req AuthRequest, ttl time.Duration, restrictions *TokenRestrictions, info *AdditionalInfo) (*OpaqueAccountToken, error) {
	if principal == nil || principal.Account == nil {
		return nil, ErrCredentialsDoesNotExist
	}
	value, err := internal.NewOpaqueToken(c.cfg.Opaque.TokenBytes)
	if err != nil {
		return nil, err
	}

	now := c.now()
	record := &OpaqueAccountToken{
		ID:              uuid.NewString(),
		Kind:            kind,
		Token:           value,
		AccountID:       principal.Account.ID,
		Domain:          principal.Account.Domain,
		ExpiresAt:       now.Add(ttl),
		CreatedAt:       now,
		Restrictions:    restrictions,
		AdditionalInfo:  info,
		DeviceID:        req.Context.DeviceID,
		ClientID:        req.Context.ClientID,
		SourceIP:        req.Context.SourceIP,
		UserAgent:       req.Context.UserAgent,
		TrackingSession: trackingSession(principal, req),
	}
	if err := c.opaque.Save(ctx, record, ttl+c.cfg.Opaque.RetentionGrace); err != nil {
		return nil, backendError(err)
	}
	c.inc(MetricOpaqueIssued)
	return record, nil
}

// lookupOpaque resolves a presented opaque token of the expected kind.
func (c *core) lookupOpaque(ctx context.Context, token string, kind OpaqueKind) (*OpaqueAccountToken, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	record, err := c.opaque.Get(ctx, token)
	if err != nil {
		return nil, backendError(err)
	}
	if record == nil || record.Kind != kind {
		return nil, ErrInvalidToken
	}
	if !c.now().Before(record.ExpiresAt) {
		c.inc(MetricOpaqueExpired)
		c.logger.Debug().Str("kind", string(kind)).Str("token_id", record.ID).Msg("expired opaque token presented")
		return nil, ErrExpiredToken
	}
	return record, nil
}

func opaqueTokens(record *OpaqueAccountToken) *Tokens {
	return &Tokens{
		Token:           record.Token,
		EntityType:      EntityAccount,
		EntityID:        record.AccountID,
		TrackingSession: record.TrackingSession,
		ExpiresAt:       record.ExpiresAt,
	}
}

// AuthorizationCodeProvider issues a short-lived authorization code bound to
// the effective restrictions of the request.
type AuthorizationCodeProvider struct {
	c *core
}

func (p *AuthorizationCodeProvider) Provide(ctx context.Context, principal *Principal, req AuthRequest) (*Tokens, error) {
	restrictions, err := effectiveRestrictions(principal, req.Restrictions)
	if err != nil {
		return nil, err
	}
	record, err := p.c.issueOpaque(ctx, KindAuthorizationCode, principal, req, p.c.cfg.Opaque.AuthorizationCodeTTL, restrictions, nil)
	if err != nil {
		return nil, err
	}
	return opaqueTokens(record), nil
}

// TOTPLinkerProvider issues the first-phase token of a TOTP login.
type TOTPLinkerProvider struct {
	c *core
}

func (p *TOTPLinkerProvider) Provide(ctx context.Context, principal *Principal, req AuthRequest) (*Tokens, error) {
	c := p.c
	if principal == nil || principal.Account == nil {
		return nil, ErrCredentialsDoesNotExist
	}
	if !principal.Account.Active {
		return nil, ErrAccountInactive
	}
	restrictions, err := effectiveRestrictions(principal, req.Restrictions)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(totpLinkerInfo{AccountID: principal.Account.ID})
	if err != nil {
		return nil, err
	}
	record, err := c.issueOpaque(ctx, KindTOTPLinker, principal, req, c.cfg.Opaque.TOTPLinkerTTL, restrictions,
		&AdditionalInfo{Type: totpLinkerInfoType, Data: data})
	if err != nil {
		return nil, err
	}

	c.publish(ctx, c.cfg.Events.TOTPLinkerChannel, EventTOTPLinkerGenerated, principal, record.Domain, map[string]string{
		"token_id":  record.ID,
		"device_id": record.DeviceID,
	})
	return opaqueTokens(record), nil
}

// PasswordlessProvider issues a sign-in token delivered out of band. The
// caller receives only the record id.
type PasswordlessProvider struct {
	c *core
}

func (p *PasswordlessProvider) Provide(ctx context.Context, principal *Principal, req AuthRequest) (*Tokens, error) {
	c := p.c
	restrictions, err := effectiveRestrictions(principal, req.Restrictions)
	if err != nil {
		return nil, err
	}
	record, err := c.issueOpaque(ctx, KindPasswordless, principal, req, c.cfg.Opaque.PasswordlessTTL, restrictions, nil)
	if err != nil {
		return nil, err
	}

	c.publish(ctx, c.cfg.Events.PasswordlessChannel, EventPasswordlessGenerated, principal, record.Domain, map[string]string{
		"token_id": record.ID,
		"token":    record.Token,
	})

	tokens := opaqueTokens(record)
	tokens.Token = record.ID
	return tokens, nil
}

// OpaqueVerifier redeems an opaque token of one kind for its account. Tokens
// remain valid until they expire.
type OpaqueVerifier struct {
	c    *core
	kind OpaqueKind
}

func (v *OpaqueVerifier) Verify(ctx context.Context, req AuthRequest) (*Principal, error) {
	record, err := v.c.lookupOpaque(ctx, req.Credential, v.kind)
	if err != nil {
		return nil, err
	}
	account, err := v.c.accountByID(ctx, record.AccountID)
	if err != nil {
		return nil, err
	}
	principal := accountPrincipal(account)
	principal.Restrictions = record.Restrictions
	principal.TrackingSession = record.TrackingSession
	return principal, nil
}

// trackingSession returns the session id to echo into issued tokens, or ""
// when tracking is off. A session carried by the verified artifact wins.
func trackingSession(principal *Principal, req AuthRequest) string {
	if principal != nil && principal.TrackingSession != "" {
		return principal.TrackingSession
	}
	if !req.Context.Track {
		return ""
	}
	if req.Context.TrackingSession != "" {
		return req.Context.TrackingSession
	}
	return uuid.NewString()
}
