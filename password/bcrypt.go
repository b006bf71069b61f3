package password

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Bcrypt hashes passwords with bcrypt.
//
// bcrypt carries its own internal salt and truncates input at 72 bytes, so the
// plaintext is first keyed with the digest salt through HMAC-SHA256. The bcrypt
// input is therefore fixed-length and the digest salt still participates.
type Bcrypt struct {
	config Config
}

// NewBcrypt validates the bcrypt cost and returns a hasher.
func NewBcrypt(cfg Config) (*Bcrypt, error) {
	if err := validateCommon(&cfg); err != nil {
		return nil, err
	}
	if cfg.Cost < bcrypt.MinCost || cfg.Cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	cfg.Algorithm = AlgorithmBcrypt
	return &Bcrypt{config: cfg}, nil
}

// Algorithm reports bcrypt.
func (b *Bcrypt) Algorithm() Algorithm { return AlgorithmBcrypt }

// Hash generates a salt, pre-hashes the plaintext with it and bcrypts the result.
func (b *Bcrypt) Hash(plaintext string) (Digest, error) {
	if err := checkPlaintext(plaintext, b.config.MaxPasswordBytes); err != nil {
		return Digest{}, err
	}
	salt, err := newSalt(b.config.SaltLength)
	if err != nil {
		return Digest{}, err
	}
	hash, err := bcrypt.GenerateFromPassword(prehash(plaintext, salt), b.config.Cost)
	if err != nil {
		return Digest{}, fmt.Errorf("bcrypt: %w", err)
	}
	return encodeDigest(salt, hash), nil
}

// Verify compares the salted pre-hash of plaintext against the stored bcrypt hash.
func (b *Bcrypt) Verify(plaintext string, digest Digest) (bool, error) {
	if err := checkPlaintext(plaintext, b.config.MaxPasswordBytes); err != nil {
		return false, err
	}
	salt, hash, err := decodeDigest(digest)
	if err != nil {
		return false, err
	}
	err = bcrypt.CompareHashAndPassword(hash, prehash(plaintext, salt))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("%w: %v", ErrInvalidDigest, err)
}

func prehash(plaintext string, salt []byte) []byte {
	mac := hmac.New(sha256.New, salt)
	_, _ = mac.Write([]byte(plaintext))
	sum := mac.Sum(nil)
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum)
	return out
}
