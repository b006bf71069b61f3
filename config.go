package goIdentity

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/MrEthical07/goIdentity/internal"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/password"
)

// DefaultGlobalDomain is the reserved domain targeted by Basic header credentials.
const DefaultGlobalDomain = "global"

// Config is the immutable startup configuration of an [Engine].
type Config struct {
	GlobalDomain string

	Password    PasswordConfig
	JWT         JWTConfig
	AccessToken Strategy
	IDToken     Strategy
	APIKey      Strategy
	Encryption  EncryptionConfig
	Opaque      OpaqueConfig
	OTP         OTPConfig
	TOTP        TOTPConfig
	Attempts    AttemptsConfig
	Events      EventsConfig
	Metrics     MetricsConfig
	Redis       RedisConfig
}

// PasswordConfig pins hashing algorithms to stored password versions.
type PasswordConfig struct {
	CurrentVersion int
	Current        password.Config
	Legacy         map[int]password.Config
	// MinimumVersion forces rotation of passwords hashed under older versions.
	MinimumVersion int
	ExpiryEnabled  bool
	TTL            time.Duration
}

// JWTConfig selects the signing algorithm and key material.
type JWTConfig struct {
	Algorithm  string
	PrivateKey []byte
	PublicKey  []byte
	Issuer     string
	Audience   string
	Leeway     time.Duration
	KeyID      string
	VerifyKeys map[string][]byte
}

// Strategy controls lifetime and claim content of one JWT kind.
type Strategy struct {
	TokenTTL time.Duration
	// RefreshTTL > 0 issues an opaque refresh companion with access tokens.
	// Ignored for ID tokens and API keys.
	RefreshTTL         time.Duration
	UseJTI             bool
	IncludePermissions bool
	IncludeRoles       bool
	IncludeScopes      bool
	IncludeExternalID  bool
}

// EncryptionConfig selects the optional envelope around signed tokens.
type EncryptionConfig struct {
	// Mode is "", "AES-CBC" or "EC".
	Mode         string
	Key          []byte
	ECPrivateKey []byte
	ECPublicKey  []byte
}

// OpaqueConfig sizes and times opaque account tokens.
type OpaqueConfig struct {
	TokenBytes           int
	AuthorizationCodeTTL time.Duration
	TOTPLinkerTTL        time.Duration
	PasswordlessTTL      time.Duration
	// RetentionGrace keeps records readable past expiry so late presentations
	// report ErrExpiredToken instead of ErrInvalidToken.
	RetentionGrace time.Duration
}

// OTPMode selects the alphabet of one-time passwords.
type OTPMode string

const (
	OTPAlphanumeric OTPMode = "ALPHANUMERIC"
	OTPAlphabetic   OTPMode = "ALPHABETIC"
	OTPNumeric      OTPMode = "NUMERIC"
)

// OTPConfig controls one-time password generation.
type OTPConfig struct {
	Mode   OTPMode
	Length int
	TTL    time.Duration
}

// TOTPStep describes a time-step generator.
type TOTPStep struct {
	Period    int
	Digits    int
	Algorithm string
}

// TOTPConfig holds the default generator and per-authenticator overrides.
type TOTPConfig struct {
	Default        TOTPStep
	Authenticators map[string]TOTPStep
}

// AttemptsConfig throttles repeated failed password and code checks per
// account or application. Counters live in Redis.
type AttemptsConfig struct {
	Enabled     bool
	MaxFailures int
	Window      time.Duration
}

// EventsConfig controls async delivery of generation events.
type EventsConfig struct {
	BufferSize          int
	DropIfFull          bool
	PublishTimeout      time.Duration
	OTPChannel          string
	TOTPLinkerChannel   string
	PasswordlessChannel string
}

// MetricsConfig toggles in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// RedisConfig names the key prefix of the built-in Redis stores.
type RedisConfig struct {
	Prefix string
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		GlobalDomain: DefaultGlobalDomain,
		Password: PasswordConfig{
			CurrentVersion: 1,
			Current: password.Config{
				Algorithm:   password.AlgorithmArgon2id,
				SaltLength:  16,
				KeyLength:   32,
				Memory:      65536,
				Time:        3,
				Parallelism: 2,
			},
			MinimumVersion: 0,
			TTL:            90 * 24 * time.Hour,
		},
		JWT: JWTConfig{
			Algorithm: string(jwt.EdDSA),
			Issuer:    "goidentity",
		},
		AccessToken: Strategy{
			TokenTTL:      5 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			UseJTI:        true,
			IncludeScopes: true,
		},
		IDToken: Strategy{
			TokenTTL:          5 * time.Minute,
			UseJTI:            true,
			IncludeRoles:      true,
			IncludeExternalID: true,
		},
		APIKey: Strategy{
			TokenTTL:           30 * 24 * time.Hour,
			UseJTI:             true,
			IncludeScopes:      true,
			IncludePermissions: true,
		},
		Opaque: OpaqueConfig{
			TokenBytes:           32,
			AuthorizationCodeTTL: time.Minute,
			TOTPLinkerTTL:        5 * time.Minute,
			PasswordlessTTL:      15 * time.Minute,
			RetentionGrace:       10 * time.Minute,
		},
		OTP: OTPConfig{
			Mode:   OTPNumeric,
			Length: 6,
			TTL:    5 * time.Minute,
		},
		TOTP: TOTPConfig{
			Default: TOTPStep{Period: 30, Digits: 6, Algorithm: "SHA1"},
		},
		Attempts: AttemptsConfig{
			MaxFailures: 5,
			Window:      15 * time.Minute,
		},
		Events: EventsConfig{
			BufferSize:          1024,
			DropIfFull:          true,
			PublishTimeout:      5 * time.Second,
			OTPChannel:          "identity.otp",
			TOTPLinkerChannel:   "identity.totp",
			PasswordlessChannel: "identity.passwordless",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Redis: RedisConfig{
			Prefix: "gid",
		},
	}
}

// DefaultConfig returns the configuration Builder starts from.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Password.Legacy = maps.Clone(cfg.Password.Legacy)
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	out.Encryption.Key = cloneBytes(cfg.Encryption.Key)
	out.Encryption.ECPrivateKey = cloneBytes(cfg.Encryption.ECPrivateKey)
	out.Encryption.ECPublicKey = cloneBytes(cfg.Encryption.ECPublicKey)
	out.TOTP.Authenticators = maps.Clone(cfg.TOTP.Authenticators)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks every section for values Build cannot work with. Algorithm
// names are resolved here so unknown names fail at startup with
// ErrUnsupportedAlgorithm.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.GlobalDomain) == "" {
		return errors.New("GlobalDomain must be set")
	}

	// Password
	if c.Password.MinimumVersion > c.Password.CurrentVersion {
		return errors.New("Password MinimumVersion must be <= CurrentVersion")
	}
	if c.Password.ExpiryEnabled && c.Password.TTL <= 0 {
		return errors.New("Password TTL must be > 0 when ExpiryEnabled is true")
	}

	// JWT
	if _, err := jwt.ParseAlgorithm(c.JWT.Algorithm); err != nil {
		return fmt.Errorf("%w: JWT algorithm %q", ErrUnsupportedAlgorithm, c.JWT.Algorithm)
	}
	if len(c.JWT.PrivateKey) == 0 {
		return errors.New("JWT PrivateKey is required")
	}
	for name, s := range map[string]Strategy{"AccessToken": c.AccessToken, "IDToken": c.IDToken, "APIKey": c.APIKey} {
		if s.TokenTTL <= 0 {
			return fmt.Errorf("%s TokenTTL must be > 0", name)
		}
		if s.RefreshTTL < 0 {
			return fmt.Errorf("%s RefreshTTL must be >= 0", name)
		}
	}

	// Opaque
	if c.Opaque.TokenBytes < internal.MinOpaqueTokenBytes {
		return fmt.Errorf("Opaque TokenBytes must be >= %d", internal.MinOpaqueTokenBytes)
	}
	if c.Opaque.AuthorizationCodeTTL <= 0 || c.Opaque.TOTPLinkerTTL <= 0 || c.Opaque.PasswordlessTTL <= 0 {
		return errors.New("Opaque TTLs must be > 0")
	}
	if c.Opaque.RetentionGrace < 0 {
		return errors.New("Opaque RetentionGrace must be >= 0")
	}

	// OTP
	if _, err := c.OTP.Mode.codeMode(); err != nil {
		return err
	}
	if c.OTP.Length < 4 || c.OTP.Length > internal.MaxCodeLength {
		return fmt.Errorf("OTP Length must be between 4 and %d", internal.MaxCodeLength)
	}
	if c.OTP.TTL <= 0 {
		return errors.New("OTP TTL must be > 0")
	}

	// TOTP
	if err := c.TOTP.Default.validate(); err != nil {
		return fmt.Errorf("TOTP default: %w", err)
	}
	for name, step := range c.TOTP.Authenticators {
		if err := step.validate(); err != nil {
			return fmt.Errorf("TOTP authenticator %q: %w", name, err)
		}
	}

	// Attempts
	if c.Attempts.Enabled && (c.Attempts.MaxFailures <= 0 || c.Attempts.Window <= 0) {
		return errors.New("Attempts MaxFailures and Window must be > 0 when Enabled is true")
	}

	// Events
	if c.Events.BufferSize < 0 {
		return errors.New("Events BufferSize must be >= 0")
	}
	if c.Events.OTPChannel == "" || c.Events.TOTPLinkerChannel == "" || c.Events.PasswordlessChannel == "" {
		return errors.New("Events channels must be set")
	}

	return nil
}

func (m OTPMode) codeMode() (internal.CodeMode, error) {
	switch OTPMode(strings.ToUpper(string(m))) {
	case OTPAlphanumeric:
		return internal.CodeAlphanumeric, nil
	case OTPAlphabetic:
		return internal.CodeAlphabetic, nil
	case OTPNumeric:
		return internal.CodeNumeric, nil
	default:
		return 0, fmt.Errorf("unsupported OTP mode %q", m)
	}
}

func (s TOTPStep) validate() error {
	if s.Period <= 0 {
		return errors.New("period must be > 0")
	}
	if s.Digits < 6 || s.Digits > 8 {
		return errors.New("digits must be between 6 and 8")
	}
	if _, err := hmacFunc(s.Algorithm); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedAlgorithm, err)
	}
	return nil
}
