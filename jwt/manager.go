package jwt

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnsupportedAlgorithm is returned by [NewManager] for an unknown algorithm name.
var ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")

const minHMACKeyBytes = 32

// Algorithm names a JWS signing algorithm.
type Algorithm string

const (
	HS256 Algorithm = "HS256"
	HS512 Algorithm = "HS512"
	RS256 Algorithm = "RS256"
	RS512 Algorithm = "RS512"
	ES256 Algorithm = "ES256"
	ES384 Algorithm = "ES384"
	EdDSA Algorithm = "EdDSA"
)

// ParseAlgorithm resolves a case-insensitive algorithm name.
func ParseAlgorithm(name string) (Algorithm, error) {
	for _, alg := range []Algorithm{HS256, HS512, RS256, RS512, ES256, ES384, EdDSA} {
		if strings.EqualFold(string(alg), strings.TrimSpace(name)) {
			return alg, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
}

// Config holds key material and validation policy for one [Manager].
//
// For HMAC algorithms PrivateKey is the shared secret. For asymmetric
// algorithms keys are PEM encoded (Ed25519 also accepts raw key bytes);
// PublicKey may be omitted when PrivateKey is set.
type Config struct {
	Algorithm    Algorithm
	PrivateKey   []byte
	PublicKey    []byte
	Issuer       string
	Audience     string
	Leeway       time.Duration
	MaxFutureIAT time.Duration
	KeyID        string
	VerifyKeys   map[string][]byte
	// Now overrides the clock used for issuance and validation.
	Now func() time.Time
}

// Manager signs and parses tokens for a single algorithm.
//
// Manager instances are immutable after construction and safe for concurrent use.
type Manager struct {
	config     Config
	method     jwt.SigningMethod
	signKey    any
	verifyKey  any
	verifyKeys map[string]any
}

// NewManager validates cfg and resolves key material once.
//
// Unknown algorithm names fail with ErrUnsupportedAlgorithm; malformed or
// mismatched keys fail with a descriptive error.
func NewManager(cfg Config) (*Manager, error) {
	alg, err := ParseAlgorithm(string(cfg.Algorithm))
	if err != nil {
		return nil, err
	}
	cfg.Algorithm = alg
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := &Manager{config: cfg, method: jwt.GetSigningMethod(string(alg))}
	if m.method == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}

	if len(cfg.PrivateKey) > 0 {
		if m.signKey, err = parsePrivateKey(alg, cfg.PrivateKey); err != nil {
			return nil, err
		}
	}
	switch {
	case len(cfg.PublicKey) > 0:
		if m.verifyKey, err = parsePublicKey(alg, cfg.PublicKey); err != nil {
			return nil, err
		}
	case m.signKey != nil:
		m.verifyKey = publicOf(m.signKey)
	}

	if len(cfg.VerifyKeys) > 0 {
		m.verifyKeys = make(map[string]any, len(cfg.VerifyKeys))
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			parsed, err := parsePublicKey(alg, key)
			if err != nil {
				return nil, fmt.Errorf("invalid verify key for kid %q: %w", kid, err)
			}
			m.verifyKeys[kid] = parsed
		}
		if cfg.KeyID != "" {
			if _, ok := m.verifyKeys[cfg.KeyID]; !ok {
				return nil, errors.New("KeyID is not present in VerifyKeys")
			}
		}
	}

	if m.verifyKey == nil && len(m.verifyKeys) == 0 {
		return nil, fmt.Errorf("%s requires a verification key", alg)
	}
	return m, nil
}

// Algorithm reports the configured algorithm.
func (m *Manager) Algorithm() Algorithm { return m.config.Algorithm }

// Sign stamps issuer, audience, issued-at and expiry onto claims and signs them.
// A zero issuedAt means the manager clock's now.
func (m *Manager) Sign(claims Claims, issuedAt time.Time, ttl time.Duration) (string, error) {
	if m.signKey == nil {
		return "", errors.New("manager has no signing key")
	}
	if ttl <= 0 {
		return "", errors.New("invalid TTL configuration")
	}
	if issuedAt.IsZero() {
		issuedAt = m.config.Now()
	}

	claims.IssuedAt = jwt.NewNumericDate(issuedAt)
	claims.ExpiresAt = jwt.NewNumericDate(issuedAt.Add(ttl))
	claims.Issuer = m.config.Issuer
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token := jwt.NewWithClaims(m.method, claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}
	return token.SignedString(m.signKey)
}

// Parse verifies the signature, expiry, issuer and audience of tokenStr.
func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.config.Now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, m.keyFunc)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.IssuedAt != nil && claims.IssuedAt.Time.After(m.config.Now().Add(m.config.MaxFutureIAT)) {
		return nil, errors.New("token iat too far in the future")
	}
	return claims, nil
}

func (m *Manager) keyFunc(t *jwt.Token) (any, error) {
	if t.Method.Alg() != m.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	kid, _ := t.Header["kid"].(string)
	if len(m.verifyKeys) > 0 {
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := m.verifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return key, nil
	}
	if m.config.KeyID != "" && kid != m.config.KeyID {
		return nil, errors.New("unknown kid")
	}
	return m.verifyKey, nil
}

func parsePrivateKey(alg Algorithm, key []byte) (any, error) {
	switch alg {
	case HS256, HS512:
		if len(key) < minHMACKeyBytes {
			return nil, fmt.Errorf("%s secret must be at least %d bytes", alg, minHMACKeyBytes)
		}
		return key, nil
	case RS256, RS512:
		k, err := jwt.ParseRSAPrivateKeyFromPEM(key)
		if err != nil {
			return nil, errors.New("invalid rsa private key")
		}
		return k, nil
	case ES256, ES384:
		k, err := jwt.ParseECPrivateKeyFromPEM(key)
		if err != nil {
			return nil, errors.New("invalid ecdsa private key")
		}
		if err := checkCurve(alg, k.Curve); err != nil {
			return nil, err
		}
		return k, nil
	default:
		return parseEdPrivateKey(key)
	}
}

func parsePublicKey(alg Algorithm, key []byte) (any, error) {
	switch alg {
	case HS256, HS512:
		return parsePrivateKey(alg, key)
	case RS256, RS512:
		k, err := jwt.ParseRSAPublicKeyFromPEM(key)
		if err != nil {
			return nil, errors.New("invalid rsa public key")
		}
		return k, nil
	case ES256, ES384:
		k, err := jwt.ParseECPublicKeyFromPEM(key)
		if err != nil {
			return nil, errors.New("invalid ecdsa public key")
		}
		if err := checkCurve(alg, k.Curve); err != nil {
			return nil, err
		}
		return k, nil
	default:
		return parseEdPublicKey(key)
	}
}

func checkCurve(alg Algorithm, curve elliptic.Curve) error {
	want := elliptic.P256()
	if alg == ES384 {
		want = elliptic.P384()
	}
	if curve.Params().Name != want.Params().Name {
		return fmt.Errorf("%s requires curve %s", alg, want.Params().Name)
	}
	return nil
}

func publicOf(key any) any {
	switch k := key.(type) {
	case []byte:
		return k
	case *rsa.PrivateKey:
		return &k.PublicKey
	case *ecdsa.PrivateKey:
		return &k.PublicKey
	case crypto.Signer:
		return k.Public()
	default:
		return nil
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
