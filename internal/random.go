package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"math/big"
	"strings"
)

// CodeMode selects the alphabet of generated one-time codes.
type CodeMode uint8

const (
	CodeAlphanumeric CodeMode = iota
	CodeAlphabetic
	CodeNumeric
)

const (
	digits  = "0123456789"
	letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	MinOpaqueTokenBytes = 16
	MaxCodeLength       = 64
)

func (m CodeMode) alphabet() (string, error) {
	switch m {
	case CodeAlphanumeric:
		return letters + digits, nil
	case CodeAlphabetic:
		return letters, nil
	case CodeNumeric:
		return digits, nil
	default:
		return "", errors.New("invalid code mode")
	}
}

// NewCode returns a uniformly random code of length characters drawn from the
// alphabet of mode.
func NewCode(mode CodeMode, length int) (string, error) {
	if length < 1 || length > MaxCodeLength {
		return "", errors.New("invalid code length")
	}
	alphabet, err := mode.alphabet()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(length)

	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String(), nil
}

// NewOpaqueToken returns size random bytes encoded as unpadded base64url.
func NewOpaqueToken(size int) (string, error) {
	if size < MinOpaqueTokenBytes {
		return "", errors.New("opaque token size too small")
	}
	raw := make([]byte, size)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
