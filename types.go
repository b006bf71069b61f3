package goIdentity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ExchangeType names a credential or token type taking part in an exchange.
type ExchangeType string

const (
	TypeBasic             ExchangeType = "basic"
	TypeBasicDomain       ExchangeType = "basicDomain"
	TypeOTP               ExchangeType = "otp"
	TypeRefresh           ExchangeType = "refresh"
	TypeAuthorizationCode ExchangeType = "authorizationCode"
	TypeTOTP              ExchangeType = "totp"
	TypePasswordless      ExchangeType = "passwordless"
	TypeAccessToken       ExchangeType = "accessToken"
	TypeIDToken           ExchangeType = "idToken"
	TypeTOTPLinker        ExchangeType = "totpLinker"
	TypeIdentifier        ExchangeType = "identifier"
	TypeClientCredentials ExchangeType = "clientCredentials"
	TypeAPIKey            ExchangeType = "apiKey"
)

// ExchangePair is the registry key of an exchange.
type ExchangePair struct {
	From ExchangeType
	To   ExchangeType
}

func (p ExchangePair) String() string {
	return string(p.From) + "->" + string(p.To)
}

// EntityType identifies the subject kind of an issued token.
type EntityType string

const (
	EntityAccount     EntityType = "ACCOUNT"
	EntityApplication EntityType = "APPLICATION"
)

// IdentifierType classifies account identifiers.
type IdentifierType string

const (
	IdentifierUsername IdentifierType = "USERNAME"
	IdentifierEmail    IdentifierType = "EMAIL"
	IdentifierPhone    IdentifierType = "PHONE"
)

// RequestContext carries client metadata recorded on linker tokens and echoed in claims.
type RequestContext struct {
	ClientID        string
	DeviceID        string
	SourceIP        string
	UserAgent       string
	TrackingSession string
	Track           bool
}

// TokenRestrictions narrows an issued token to a subset of the subject's grants.
type TokenRestrictions struct {
	Scopes      []string `json:"scopes,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// AuthRequest is the presented credential plus request context.
type AuthRequest struct {
	Credential   string
	Restrictions *TokenRestrictions
	// Domain is the explicit account domain. Empty selects the global domain.
	Domain  string
	Context RequestContext
}

// Tokens is the artifact returned by a successful exchange.
type Tokens struct {
	Type            ExchangeType `json:"type"`
	Token           string       `json:"token"`
	RefreshToken    string       `json:"refreshToken,omitempty"`
	EntityType      EntityType   `json:"entityType"`
	EntityID        string       `json:"entityId"`
	TrackingSession string       `json:"trackingSession,omitempty"`
	ExpiresAt       time.Time    `json:"expiresAt"`
}

// Identifier is one login handle of an account.
type Identifier struct {
	Type   IdentifierType
	Value  string
	Active bool
}

// Account is the read model of an end-user account.
type Account struct {
	ID                string
	Domain            string
	Identifiers       []Identifier
	PasswordHash      string
	PasswordSalt      string
	PasswordVersion   int
	PasswordUpdatedAt time.Time
	Active            bool
	ExternalID        string
	Scopes            []string
	Permissions       []string
	Roles             []string
}

// Identifier returns the identifier matching value, or nil.
func (a *Account) Identifier(value string) *Identifier {
	if a == nil {
		return nil
	}
	for i := range a.Identifiers {
		if a.Identifiers[i].Value == value {
			return &a.Identifiers[i]
		}
	}
	return nil
}

// Application is the read model of a machine client, the subject of API keys.
type Application struct {
	ID            string
	Domain        string
	SecretHash    string
	SecretSalt    string
	SecretVersion int
	Active        bool
	Scopes        []string
	Permissions   []string
}

// OpaqueKind discriminates the uses of OpaqueAccountToken.
type OpaqueKind string

const (
	KindAuthorizationCode OpaqueKind = "authorization_code"
	KindRefreshToken      OpaqueKind = "refresh_token"
	KindTOTPLinker        OpaqueKind = "totp_linker"
	KindPasswordless      OpaqueKind = "passwordless"
)

// AdditionalInfo is a typed free-form blob attached to an opaque token.
type AdditionalInfo struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// OpaqueAccountToken is a persisted random token bound to an account. Records
// are append-only and never valid at or after ExpiresAt.
type OpaqueAccountToken struct {
	ID              string
	Kind            OpaqueKind
	Token           string
	AccountID       string
	Domain          string
	ExpiresAt       time.Time
	CreatedAt       time.Time
	Restrictions    *TokenRestrictions
	AdditionalInfo  *AdditionalInfo
	DeviceID        string
	ClientID        string
	SourceIP        string
	UserAgent       string
	TrackingSession string
}

// DecodeInfo unmarshals AdditionalInfo into v after checking its type. A
// missing blob or a type mismatch yields ErrInvalidToken.
func (t *OpaqueAccountToken) DecodeInfo(expectedType string, v any) error {
	if t == nil || t.AdditionalInfo == nil || t.AdditionalInfo.Type != expectedType {
		return ErrInvalidToken
	}
	if v == nil || len(t.AdditionalInfo.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(t.AdditionalInfo.Data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return nil
}

// OneTimePassword is a persisted random code delivered out of band.
type OneTimePassword struct {
	ID        string
	Code      string
	AccountID string
	ExpiresAt time.Time
}

// TOTPKey is an account's time-based code secret.
type TOTPKey struct {
	AccountID     string
	Secret        []byte
	Authenticator string
	Domain        string
	Active        bool
}

// AccountStore resolves accounts. Lookups return (nil, nil) when nothing matches.
type AccountStore interface {
	FindByIdentifier(ctx context.Context, identifier, domain string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
}

// ApplicationStore resolves machine clients. Lookups return (nil, nil) when nothing matches.
type ApplicationStore interface {
	FindApplication(ctx context.Context, id string) (*Application, error)
}

// TOTPKeyStore resolves the active TOTP key of an account, or (nil, nil).
type TOTPKeyStore interface {
	FindActiveKey(ctx context.Context, accountID string) (*TOTPKey, error)
}

// OpaqueTokenStore persists opaque account tokens. Get returns (nil, nil) for unknown tokens.
type OpaqueTokenStore interface {
	Save(ctx context.Context, token *OpaqueAccountToken, ttl time.Duration) error
	Get(ctx context.Context, token string) (*OpaqueAccountToken, error)
}

// OTPStore persists one-time passwords. Get returns (nil, nil) for unknown ids.
type OTPStore interface {
	Save(ctx context.Context, otp *OneTimePassword, ttl time.Duration) error
	Get(ctx context.Context, id string) (*OneTimePassword, error)
}

// RevocationLedger tracks issued JWT identifiers. Presence means valid.
type RevocationLedger interface {
	Record(ctx context.Context, jti string, ttl time.Duration) error
	IsValid(ctx context.Context, jti string) (bool, error)
	Revoke(ctx context.Context, jti string) (bool, error)
}
