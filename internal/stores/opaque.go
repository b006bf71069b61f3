package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Restrictions is the persisted snapshot of requested scopes and permissions.
type Restrictions struct {
	Scopes      []string `json:"scopes,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// OpaqueRecord is the persisted form of an opaque account token.
type OpaqueRecord struct {
	ID              string          `json:"id"`
	Kind            string          `json:"kind"`
	AccountID       string          `json:"account_id"`
	Domain          string          `json:"domain,omitempty"`
	ExpiresAt       time.Time       `json:"expires_at"`
	CreatedAt       time.Time       `json:"created_at"`
	Restrictions    *Restrictions   `json:"restrictions,omitempty"`
	InfoType        string          `json:"info_type,omitempty"`
	InfoData        json.RawMessage `json:"info_data,omitempty"`
	DeviceID        string          `json:"device_id,omitempty"`
	ClientID        string          `json:"client_id,omitempty"`
	SourceIP        string          `json:"source_ip,omitempty"`
	UserAgent       string          `json:"user_agent,omitempty"`
	TrackingSession string          `json:"tracking_session,omitempty"`
}

// OpaqueTokenStore persists opaque tokens keyed by the digest of the token string.
type OpaqueTokenStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewOpaqueTokenStore(redisClient redis.UniversalClient, prefix string) *OpaqueTokenStore {
	if prefix == "" {
		prefix = "gio"
	}
	return &OpaqueTokenStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *OpaqueTokenStore) key(token string) string {
	return s.prefix + ":" + tokenDigest(token)
}

// Save stores record under token. Saving an existing token fails so records stay append-only.
func (s *OpaqueTokenStore) Save(ctx context.Context, token string, record *OpaqueRecord, ttl time.Duration) error {
	if record == nil || token == "" {
		return errors.New("opaque token record required")
	}
	if ttl <= 0 {
		return errors.New("opaque token ttl must be positive")
	}
	encoded, err := encodeRecord(record)
	if err != nil {
		return err
	}
	ok, err := s.redis.SetNX(ctx, s.key(token), encoded, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBackend, err)
	}
	if !ok {
		return errors.New("opaque token already exists")
	}
	return nil
}

// Get returns the record for token, or nil when none is stored.
func (s *OpaqueTokenStore) Get(ctx context.Context, token string) (*OpaqueRecord, error) {
	if token == "" {
		return nil, nil
	}
	data, err := s.redis.Get(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrBackend, err)
	}

	record := &OpaqueRecord{}
	if err := decodeRecord(data, record); err != nil {
		return nil, err
	}
	return record, nil
}
