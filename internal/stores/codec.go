package stores

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

const recordVersion1 = 1

// ErrBackend wraps every Redis failure other than a missing key.
var ErrBackend = errors.New("identity store backend unavailable")

func encodeRecord(v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append([]byte{recordVersion1}, body...), nil
}

func decodeRecord(data []byte, v any) error {
	if len(data) == 0 || data[0] != recordVersion1 {
		return errors.New("invalid record version")
	}
	if err := json.Unmarshal(data[1:], v); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
