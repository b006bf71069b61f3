package goIdentity

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/google/uuid"
)

// Values of the "tt" claim.
const (
	tokenTypeAccess = "access_token"
	tokenTypeID     = "id_token"
	tokenTypeAPIKey = "api_key"
)

const bearerPrefix = "Bearer "

// JWTProvider mints signed (and optionally encrypted) tokens under one Strategy.
type JWTProvider struct {
	c         *core
	tokenType string
	strategy  Strategy
	// refresh enables the opaque refresh companion when strategy.RefreshTTL > 0.
	refresh bool
}

func (p *JWTProvider) Provide(ctx context.Context, principal *Principal, req AuthRequest) (*Tokens, error) {
	c := p.c
	if principal == nil || (principal.Account == nil && principal.Application == nil) {
		return nil, ErrCredentialsDoesNotExist
	}
	restrictions, err := effectiveRestrictions(principal, req.Restrictions)
	if err != nil {
		return nil, err
	}

	subject := *principal
	subject.TrackingSession = trackingSession(principal, req)

	claims := p.claims(&subject, req, restrictions)
	s := p.strategy
	if s.UseJTI {
		claims.ID = uuid.NewString()
	}

	now := c.now()
	token, err := c.signer.Sign(claims, now, s.TokenTTL)
	if err != nil {
		return nil, err
	}
	if c.encryptor.Enabled() {
		if token, err = c.encryptor.Encrypt(token); err != nil {
			return nil, err
		}
	}
	// The ledger entry outlives the token by the parse leeway.
	if s.UseJTI {
		if err := c.ledger.Record(ctx, claims.ID, s.TokenTTL+c.cfg.JWT.Leeway); err != nil {
			return nil, backendError(err)
		}
	}

	tokens := &Tokens{
		Token:           token,
		EntityType:      subject.EntityType,
		EntityID:        subject.EntityID(),
		TrackingSession: subject.TrackingSession,
		ExpiresAt:       now.Add(s.TokenTTL),
	}

	if p.refresh && s.RefreshTTL > 0 && subject.Account != nil {
		record, err := c.issueOpaque(ctx, KindRefreshToken, &subject, req, s.RefreshTTL, restrictions, nil)
		if err != nil {
			return nil, err
		}
		tokens.RefreshToken = record.Token
	}

	c.inc(MetricJWTIssued)
	return tokens, nil
}

func (p *JWTProvider) claims(subject *Principal, req AuthRequest, restrictions *TokenRestrictions) jwt.Claims {
	s := p.strategy
	claims := jwt.Claims{
		TokenType:       p.tokenType,
		EntityType:      string(subject.EntityType),
		Domain:          principalDomain(subject),
		ClientID:        req.Context.ClientID,
		TrackingSession: subject.TrackingSession,
	}
	claims.Subject = subject.EntityID()

	scopes, permissions := grants(subject)
	if restrictions != nil {
		claims.Restricted = true
		claims.Scopes = restrictions.Scopes
		claims.Permissions = restrictions.Permissions
	} else {
		if s.IncludeScopes {
			claims.Scopes = scopes
		}
		if s.IncludePermissions {
			claims.Permissions = permissions
		}
	}
	if a := subject.Account; a != nil {
		if s.IncludeRoles {
			claims.Roles = a.Roles
		}
		if s.IncludeExternalID {
			claims.ExternalID = a.ExternalID
		}
	}
	return claims
}

// parseToken decrypts and verifies a presented JWT. Every verification
// failure collapses to ErrUnauthorized.
func (c *core) parseToken(ctx context.Context, raw string, tokenType string, useJTI bool) (*jwt.Claims, error) {
	token := strings.TrimSpace(raw)
	if len(token) >= len(bearerPrefix) && strings.EqualFold(token[:len(bearerPrefix)], bearerPrefix) {
		token = strings.TrimSpace(token[len(bearerPrefix):])
	}
	if token == "" {
		return nil, ErrUnauthorized
	}

	if c.encryptor.Enabled() {
		plain, err := c.encryptor.Decrypt(token)
		if err != nil {
			c.inc(MetricJWTRejected)
			return nil, ErrUnauthorized
		}
		token = plain
	}

	claims, err := c.signer.Parse(token)
	if err != nil || (tokenType != "" && claims.TokenType != tokenType) {
		c.inc(MetricJWTRejected)
		return nil, ErrUnauthorized
	}

	if useJTI {
		if claims.ID == "" {
			c.inc(MetricJWTRejected)
			return nil, ErrUnauthorized
		}
		valid, err := c.ledger.IsValid(ctx, claims.ID)
		if err != nil {
			return nil, backendError(err)
		}
		if !valid {
			c.inc(MetricJWTRejected)
			return nil, ErrUnauthorized
		}
	}
	return claims, nil
}

// JWTVerifier authenticates a bearer access token.
type JWTVerifier struct {
	c         *core
	tokenType string
	strategy  Strategy
}

func (v *JWTVerifier) Verify(ctx context.Context, req AuthRequest) (*Principal, error) {
	c := v.c
	claims, err := c.parseToken(ctx, req.Credential, v.tokenType, v.strategy.UseJTI)
	if err != nil {
		return nil, err
	}
	if EntityType(claims.EntityType) != EntityAccount {
		return nil, ErrUnauthorized
	}

	account, err := c.accountByID(ctx, claims.Subject)
	if err != nil {
		if KindOf(err) == KindAuthorization {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	principal := accountPrincipal(account)
	principal.TrackingSession = claims.TrackingSession
	if claims.Restricted {
		principal.Restrictions = &TokenRestrictions{Scopes: claims.Scopes, Permissions: claims.Permissions}
	}
	return principal, nil
}

// ClientCredentialsVerifier authenticates an application by a Basic header
// carrying "applicationID:secret".
type ClientCredentialsVerifier struct {
	c *core
}

func (v *ClientCredentialsVerifier) Verify(ctx context.Context, req AuthRequest) (*Principal, error) {
	c := v.c
	id, secret, err := decodeBasicHeader(req.Credential)
	if err != nil {
		return nil, err
	}

	app, err := c.applications.FindApplication(ctx, id)
	if err != nil {
		return nil, backendError(err)
	}
	if app == nil {
		return nil, ErrCredentialsDoesNotExist
	}
	if !app.Active {
		return nil, ErrAccountInactive
	}

	hasher, err := c.passwords.ForVersion(app.SecretVersion)
	if err != nil {
		return nil, ErrGenericAuthFailure
	}
	if err := c.allowAttempt(ctx, attemptsClientSecret, app.ID); err != nil {
		return nil, err
	}
	if err := checkSecret(hasher, secret, app.SecretSalt, app.SecretHash); err != nil {
		if errors.Is(err, ErrPasswordsDoNotMatch) {
			c.attemptFailed(ctx, attemptsClientSecret, app.ID)
		}
		return nil, err
	}
	c.attemptSucceeded(ctx, attemptsClientSecret, app.ID)
	return &Principal{EntityType: EntityApplication, Application: app}, nil
}

// revoke removes the JTI of a presented token from the ledger. Tokens
// without a JTI cannot be revoked.
func (c *core) revoke(ctx context.Context, raw string) error {
	claims, err := c.parseToken(ctx, raw, "", false)
	if err != nil {
		return err
	}
	if claims.ID == "" {
		return ErrInvalidToken
	}
	removed, err := c.ledger.Revoke(ctx, claims.ID)
	if err != nil {
		return backendError(err)
	}
	if !removed {
		return ErrInvalidToken
	}
	c.inc(MetricJTIRevoked)
	return nil
}
