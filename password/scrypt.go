package password

import (
	"errors"

	"golang.org/x/crypto/scrypt"
)

// Scrypt hashes passwords with scrypt.
type Scrypt struct {
	config Config
}

// NewScrypt validates the scrypt cost parameters and returns a hasher.
// N must be a power of two greater than one.
func NewScrypt(cfg Config) (*Scrypt, error) {
	if err := validateCommon(&cfg); err != nil {
		return nil, err
	}
	if cfg.N <= 1 || cfg.N&(cfg.N-1) != 0 {
		return nil, errors.New("scrypt N must be a power of two > 1")
	}
	if cfg.R < 1 || cfg.P < 1 {
		return nil, errors.New("scrypt r and p must be >= 1")
	}
	if cfg.KeyLength < minKeyLength {
		return nil, errors.New("password key length must be >= 16")
	}
	cfg.Algorithm = AlgorithmScrypt
	return &Scrypt{config: cfg}, nil
}

// Algorithm reports scrypt.
func (s *Scrypt) Algorithm() Algorithm { return AlgorithmScrypt }

// Hash derives a scrypt key from plaintext and a fresh random salt.
func (s *Scrypt) Hash(plaintext string) (Digest, error) {
	if err := checkPlaintext(plaintext, s.config.MaxPasswordBytes); err != nil {
		return Digest{}, err
	}
	salt, err := newSalt(s.config.SaltLength)
	if err != nil {
		return Digest{}, err
	}
	hash, err := scrypt.Key([]byte(plaintext), salt, s.config.N, s.config.R, s.config.P, int(s.config.KeyLength))
	if err != nil {
		return Digest{}, err
	}
	return encodeDigest(salt, hash), nil
}

// Verify re-derives the scrypt key and compares it to the stored hash.
func (s *Scrypt) Verify(plaintext string, digest Digest) (bool, error) {
	if err := checkPlaintext(plaintext, s.config.MaxPasswordBytes); err != nil {
		return false, err
	}
	salt, hash, err := decodeDigest(digest)
	if err != nil {
		return false, err
	}
	computed, err := scrypt.Key([]byte(plaintext), salt, s.config.N, s.config.R, s.config.P, len(hash))
	if err != nil {
		return false, err
	}
	return equal(computed, hash), nil
}
