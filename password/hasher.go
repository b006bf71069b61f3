package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultMaxPasswordBytes caps plaintext length when Config.MaxPasswordBytes is zero.
const DefaultMaxPasswordBytes = 1024

const (
	minSaltLength uint32 = 16
	minKeyLength  uint32 = 16
)

var (
	// ErrUnsupportedAlgorithm is returned by [New] for an unknown algorithm name.
	ErrUnsupportedAlgorithm = errors.New("unsupported password hashing algorithm")
	// ErrUnknownVersion is returned by [Versions.ForVersion] when no hasher is pinned to the version.
	ErrUnknownVersion = errors.New("no password hasher registered for version")
	// ErrInvalidDigest is returned when a stored digest cannot be decoded.
	ErrInvalidDigest = errors.New("invalid password digest")
	// ErrPasswordLength is returned for empty or oversized plaintext.
	ErrPasswordLength = errors.New("password length out of range")
)

// Algorithm names a hashing algorithm.
type Algorithm string

const (
	// AlgorithmArgon2id derives keys with argon2id.
	AlgorithmArgon2id Algorithm = "argon2id"
	// AlgorithmScrypt derives keys with scrypt.
	AlgorithmScrypt Algorithm = "scrypt"
	// AlgorithmBcrypt hashes a salt-keyed HMAC of the password with bcrypt.
	AlgorithmBcrypt Algorithm = "bcrypt"
	// AlgorithmPBKDF2SHA256 derives keys with PBKDF2-HMAC-SHA256.
	AlgorithmPBKDF2SHA256 Algorithm = "pbkdf2-sha256"
	// AlgorithmPBKDF2SHA512 derives keys with PBKDF2-HMAC-SHA512.
	AlgorithmPBKDF2SHA512 Algorithm = "pbkdf2-sha512"
)

// Digest is the stored form of a hashed password. Both fields are standard base64.
type Digest struct {
	Salt string
	Hash string
}

// Hasher hashes and verifies passwords for one algorithm and cost configuration.
//
// Implementations are immutable after construction and safe for concurrent use.
type Hasher interface {
	Hash(plaintext string) (Digest, error)
	Verify(plaintext string, digest Digest) (bool, error)
	Algorithm() Algorithm
}

// Config selects an algorithm and its cost parameters. Only the fields of the
// selected algorithm are read.
type Config struct {
	Algorithm        Algorithm
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int

	// argon2id
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8

	// scrypt
	N int
	R int
	P int

	// bcrypt
	Cost int

	// pbkdf2
	Iterations int
}

// New builds the hasher selected by cfg.Algorithm.
//
// New fails with ErrUnsupportedAlgorithm for unknown names and with a
// descriptive error when cost parameters are out of range.
func New(cfg Config) (Hasher, error) {
	switch Algorithm(strings.ToLower(string(cfg.Algorithm))) {
	case AlgorithmArgon2id:
		return NewArgon2(cfg)
	case AlgorithmScrypt:
		return NewScrypt(cfg)
	case AlgorithmBcrypt:
		return NewBcrypt(cfg)
	case AlgorithmPBKDF2SHA256, AlgorithmPBKDF2SHA512:
		return NewPBKDF2(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, cfg.Algorithm)
	}
}

func validateCommon(cfg *Config) error {
	if cfg.SaltLength < minSaltLength {
		return errors.New("password salt length must be >= 16")
	}
	if cfg.MaxPasswordBytes < 0 {
		return errors.New("password max bytes must be >= 0")
	}
	if cfg.MaxPasswordBytes == 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
	return nil
}

func checkPlaintext(plaintext string, max int) error {
	// Password processing uses raw string bytes exactly as provided (no Unicode normalization).
	if len(plaintext) == 0 || len(plaintext) > max {
		return ErrPasswordLength
	}
	return nil
}

func newSalt(n uint32) ([]byte, error) {
	salt := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

func encodeDigest(salt, hash []byte) Digest {
	return Digest{
		Salt: base64.StdEncoding.EncodeToString(salt),
		Hash: base64.StdEncoding.EncodeToString(hash),
	}
}

func decodeDigest(d Digest) ([]byte, []byte, error) {
	salt, err := base64.StdEncoding.DecodeString(d.Salt)
	if err != nil || len(salt) == 0 {
		return nil, nil, fmt.Errorf("%w: salt encoding", ErrInvalidDigest)
	}
	hash, err := base64.StdEncoding.DecodeString(d.Hash)
	if err != nil || len(hash) == 0 {
		return nil, nil, fmt.Errorf("%w: hash encoding", ErrInvalidDigest)
	}
	return salt, hash, nil
}

func equal(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
