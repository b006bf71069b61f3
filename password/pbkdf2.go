package password

import (
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"hash"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const minPBKDF2Iterations = 1000

// PBKDF2 hashes passwords with PBKDF2 over HMAC-SHA256 or HMAC-SHA512.
type PBKDF2 struct {
	config Config
	algo   Algorithm
	prf    func() hash.Hash
}

// NewPBKDF2 validates the iteration count and returns a hasher for the digest
// named by cfg.Algorithm.
func NewPBKDF2(cfg Config) (*PBKDF2, error) {
	if err := validateCommon(&cfg); err != nil {
		return nil, err
	}
	if cfg.Iterations < minPBKDF2Iterations {
		return nil, errors.New("pbkdf2 iterations must be >= 1000")
	}
	if cfg.KeyLength < minKeyLength {
		return nil, errors.New("password key length must be >= 16")
	}

	p := &PBKDF2{config: cfg}
	switch Algorithm(strings.ToLower(string(cfg.Algorithm))) {
	case AlgorithmPBKDF2SHA256:
		p.algo, p.prf = AlgorithmPBKDF2SHA256, sha256.New
	case AlgorithmPBKDF2SHA512:
		p.algo, p.prf = AlgorithmPBKDF2SHA512, sha512.New
	default:
		return nil, ErrUnsupportedAlgorithm
	}
	return p, nil
}

// Algorithm reports the configured PBKDF2 variant.
func (p *PBKDF2) Algorithm() Algorithm { return p.algo }

// Hash derives a PBKDF2 key from plaintext and a fresh random salt.
func (p *PBKDF2) Hash(plaintext string) (Digest, error) {
	if err := checkPlaintext(plaintext, p.config.MaxPasswordBytes); err != nil {
		return Digest{}, err
	}
	salt, err := newSalt(p.config.SaltLength)
	if err != nil {
		return Digest{}, err
	}
	key := pbkdf2.Key([]byte(plaintext), salt, p.config.Iterations, int(p.config.KeyLength), p.prf)
	return encodeDigest(salt, key), nil
}

// Verify re-derives the PBKDF2 key and compares it to the stored hash.
func (p *PBKDF2) Verify(plaintext string, digest Digest) (bool, error) {
	if err := checkPlaintext(plaintext, p.config.MaxPasswordBytes); err != nil {
		return false, err
	}
	salt, stored, err := decodeDigest(digest)
	if err != nil {
		return false, err
	}
	key := pbkdf2.Key([]byte(plaintext), salt, p.config.Iterations, len(stored), p.prf)
	return equal(key, stored), nil
}
