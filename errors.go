package goIdentity

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrCredentialsDoesNotExist is returned when no account or application matches the presented identifier.
	ErrCredentialsDoesNotExist = errors.New("credentials do not exist")
	// ErrInactiveIdentifier is returned when the matched identifier is deactivated.
	ErrInactiveIdentifier = errors.New("identifier inactive")
	// ErrPasswordExpired is returned when the password outlived its TTL or its version is below the minimum.
	ErrPasswordExpired = errors.New("password expired")
	// ErrGenericAuthFailure is returned when no hasher is pinned to the stored password version.
	ErrGenericAuthFailure = errors.New("authentication failed")
	// ErrPasswordsDoNotMatch is returned when the presented password or code does not match.
	ErrPasswordsDoNotMatch = errors.New("passwords do not match")
	// ErrInvalidToken is returned for unknown, mismatched or malformed tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned for tokens presented after their expiry.
	ErrExpiredToken = errors.New("token expired")
	// ErrNoKey is returned when the account has no active TOTP key.
	ErrNoKey = errors.New("no active totp key")
	// ErrAccountInactive is returned when the account or application is deactivated.
	ErrAccountInactive = errors.New("account inactive")
	// ErrTOTPMismatch is returned when a TOTP code matches none of the accepted windows.
	ErrTOTPMismatch = errors.New("totp code mismatch")
	// ErrRestrictionNotGranted is returned when requested scopes or permissions exceed the grant.
	ErrRestrictionNotGranted = errors.New("requested restriction not granted")
	// ErrTooManyAttempts is returned while failed checks for the subject are throttled.
	ErrTooManyAttempts = errors.New("too many failed attempts")
	// ErrUnauthorized is the uniform result of bearer-token verification and the public rendering of every authorization failure.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidAuthorizationFormat is returned when a composite credential cannot be split.
	ErrInvalidAuthorizationFormat = errors.New("invalid authorization format")

	// ErrUnsupportedAlgorithm is returned at Build for unknown signing or hashing algorithm names.
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	// ErrEncryptionDisabled is returned by token encryption helpers when no encryption mode is configured.
	ErrEncryptionDisabled = errors.New("token encryption disabled")
	// ErrEngineNotReady is returned when an Engine method is called on a nil or partially built engine.
	ErrEngineNotReady = errors.New("engine not initialized")

	// ErrUnsupportedExchange is returned when no exchange is registered for a (from, to) pair.
	ErrUnsupportedExchange = errors.New("unsupported exchange")

	// ErrBackendUnavailable wraps every collaborator failure.
	ErrBackendUnavailable = errors.New("identity backend unavailable")
)

// ErrorKind classifies errors for transport mapping and metrics.
type ErrorKind uint8

const (
	KindNone ErrorKind = iota
	KindAuthorization
	KindFormat
	KindConfiguration
	KindDispatch
	KindUnavailable
	KindTimeout
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindAuthorization:
		return "authorization"
	case KindFormat:
		return "format"
	case KindConfiguration:
		return "configuration"
	case KindDispatch:
		return "dispatch"
	case KindUnavailable:
		return "unavailable"
	case KindTimeout:
		return "timeout"
	default:
		return "internal"
	}
}

var authorizationErrors = []error{
	ErrCredentialsDoesNotExist,
	ErrInactiveIdentifier,
	ErrPasswordExpired,
	ErrGenericAuthFailure,
	ErrPasswordsDoNotMatch,
	ErrInvalidToken,
	ErrExpiredToken,
	ErrNoKey,
	ErrAccountInactive,
	ErrTOTPMismatch,
	ErrRestrictionNotGranted,
	ErrTooManyAttempts,
	ErrUnauthorized,
}

// KindOf classifies err. Deadline and cancellation take precedence over every
// other class so a timed-out store call is never reported as a failed check.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return KindTimeout
	case errors.Is(err, ErrUnsupportedExchange):
		return KindDispatch
	case errors.Is(err, ErrInvalidAuthorizationFormat):
		return KindFormat
	case errors.Is(err, ErrUnsupportedAlgorithm), errors.Is(err, ErrEncryptionDisabled), errors.Is(err, ErrEngineNotReady):
		return KindConfiguration
	case errors.Is(err, ErrBackendUnavailable):
		return KindUnavailable
	}
	for _, target := range authorizationErrors {
		if errors.Is(err, target) {
			return KindAuthorization
		}
	}
	return KindInternal
}

// PublicError collapses authorization failures to ErrUnauthorized so callers
// can render them without revealing which check failed. Other kinds pass through.
func PublicError(err error) error {
	if KindOf(err) == KindAuthorization {
		return ErrUnauthorized
	}
	return err
}

func backendError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
}
