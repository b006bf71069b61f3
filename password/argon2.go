package password

import (
	"errors"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
)

// Argon2 hashes passwords with argon2id.
//
// Argon2 instances are configured once and then treated as immutable.
type Argon2 struct {
	config Config
}

// NewArgon2 validates the argon2id cost parameters and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := validateArgon2(&cfg); err != nil {
		return nil, err
	}
	cfg.Algorithm = AlgorithmArgon2id
	return &Argon2{config: cfg}, nil
}

// Algorithm reports argon2id.
func (a *Argon2) Algorithm() Algorithm { return AlgorithmArgon2id }

// Hash derives an argon2id key from plaintext and a fresh random salt.
func (a *Argon2) Hash(plaintext string) (Digest, error) {
	if err := checkPlaintext(plaintext, a.config.MaxPasswordBytes); err != nil {
		return Digest{}, err
	}

	salt, err := newSalt(a.config.SaltLength)
	if err != nil {
		return Digest{}, err
	}

	return encodeDigest(salt, a.derive(plaintext, salt, a.config.KeyLength)), nil
}

// Verify re-derives the key from plaintext and the stored salt and compares it
// to the stored hash in constant time.
func (a *Argon2) Verify(plaintext string, digest Digest) (bool, error) {
	if err := checkPlaintext(plaintext, a.config.MaxPasswordBytes); err != nil {
		return false, err
	}
	salt, hash, err := decodeDigest(digest)
	if err != nil {
		return false, err
	}

	return equal(a.derive(plaintext, salt, uint32(len(hash))), hash), nil
}

func (a *Argon2) derive(plaintext string, salt []byte, keyLen uint32) []byte {
	return argon2.IDKey(
		[]byte(plaintext),
		salt,
		a.config.Time,
		a.config.Memory,
		a.config.Parallelism,
		keyLen,
	)
}

func validateArgon2(cfg *Config) error {
	if err := validateCommon(cfg); err != nil {
		return err
	}
	if cfg.Memory < minMemoryKB {
		return errors.New("password memory must be >= 8192 KB")
	}
	if cfg.Time < minTimeCost {
		return errors.New("password time must be >= 1")
	}
	if cfg.Parallelism < minParallelism {
		return errors.New("password parallelism must be >= 1")
	}
	if cfg.KeyLength < minKeyLength {
		return errors.New("password key length must be >= 16")
	}
	return nil
}
