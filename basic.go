package goIdentity

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/MrEthical07/goIdentity/password"
)

const basicPrefix = "Basic "

// BasicVerifier checks identifier and password credentials against the
// account store and the versioned password hashers.
type BasicVerifier struct {
	c *core
	// header selects Basic-header decoding against the global domain. When
	// false the credential is a pre-split "identifier:password" pair and the
	// request domain is used.
	header bool
}

// Authenticate verifies password for identifier in domain. Checks run in a
// fixed order and the first failure is returned.
func (v *BasicVerifier) Authenticate(ctx context.Context, identifier, plaintext, domain string) (*Account, error) {
	c := v.c
	account, err := c.accounts.FindByIdentifier(ctx, identifier, domain)
	if err != nil {
		return nil, backendError(err)
	}
	if account == nil {
		return nil, ErrCredentialsDoesNotExist
	}

	id := account.Identifier(identifier)
	if id == nil || !id.Active {
		return nil, ErrInactiveIdentifier
	}
	if !account.Active {
		return nil, ErrAccountInactive
	}

	pc := c.cfg.Password
	if pc.ExpiryEnabled && !c.now().Before(account.PasswordUpdatedAt.Add(pc.TTL)) {
		c.inc(MetricPasswordExpired)
		return nil, ErrPasswordExpired
	}
	if account.PasswordVersion < pc.MinimumVersion {
		c.inc(MetricPasswordExpired)
		return nil, ErrPasswordExpired
	}

	hasher, err := c.passwords.ForVersion(account.PasswordVersion)
	if err != nil {
		return nil, ErrGenericAuthFailure
	}
	if err := c.allowAttempt(ctx, attemptsPassword, account.ID); err != nil {
		return nil, err
	}
	if err := checkSecret(hasher, plaintext, account.PasswordSalt, account.PasswordHash); err != nil {
		if errors.Is(err, ErrPasswordsDoNotMatch) {
			c.inc(MetricPasswordMismatch)
			c.attemptFailed(ctx, attemptsPassword, account.ID)
		}
		return nil, err
	}
	c.attemptSucceeded(ctx, attemptsPassword, account.ID)
	return account, nil
}

// VerifyAuthorizationHeader decodes an HTTP Basic credential and authenticates
// it against the global domain.
func (v *BasicVerifier) VerifyAuthorizationHeader(ctx context.Context, header string) (*Account, error) {
	identifier, plaintext, err := decodeBasicHeader(header)
	if err != nil {
		return nil, err
	}
	return v.Authenticate(ctx, identifier, plaintext, v.c.cfg.GlobalDomain)
}

// Verify implements Verifier.
func (v *BasicVerifier) Verify(ctx context.Context, req AuthRequest) (*Principal, error) {
	var (
		account *Account
		err     error
	)
	if v.header {
		account, err = v.VerifyAuthorizationHeader(ctx, req.Credential)
	} else {
		identifier, plaintext, ok := strings.Cut(req.Credential, ":")
		if !ok || identifier == "" {
			return nil, ErrInvalidAuthorizationFormat
		}
		domain := req.Domain
		if domain == "" {
			domain = v.c.cfg.GlobalDomain
		}
		account, err = v.Authenticate(ctx, identifier, plaintext, domain)
	}
	if err != nil {
		return nil, err
	}
	return accountPrincipal(account), nil
}

func decodeBasicHeader(header string) (string, string, error) {
	raw := strings.TrimSpace(header)
	if len(raw) >= len(basicPrefix) && strings.EqualFold(raw[:len(basicPrefix)], basicPrefix) {
		raw = strings.TrimSpace(raw[len(basicPrefix):])
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", "", ErrInvalidAuthorizationFormat
	}
	identifier, secret, ok := strings.Cut(string(decoded), ":")
	if !ok || identifier == "" {
		return "", "", ErrInvalidAuthorizationFormat
	}
	return identifier, secret, nil
}

// checkSecret compares plaintext against a stored digest. Undecodable digests
// are a generic failure; everything else that does not verify is a mismatch.
func checkSecret(hasher password.Hasher, plaintext, salt, hash string) error {
	ok, err := hasher.Verify(plaintext, password.Digest{Salt: salt, Hash: hash})
	switch {
	case errors.Is(err, password.ErrInvalidDigest):
		return ErrGenericAuthFailure
	case err != nil, !ok:
		return ErrPasswordsDoNotMatch
	}
	return nil
}
