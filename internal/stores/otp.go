package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// OTPRecord is the persisted form of a one-time password.
type OTPRecord struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	AccountID string    `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OTPStore persists one-time passwords keyed by id.
type OTPStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewOTPStore(redisClient redis.UniversalClient, prefix string) *OTPStore {
	if prefix == "" {
		prefix = "giotp"
	}
	return &OTPStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *OTPStore) key(id string) string {
	return s.prefix + ":" + id
}

func (s *OTPStore) Save(ctx context.Context, record *OTPRecord, ttl time.Duration) error {
	if record == nil || record.ID == "" {
		return errors.New("otp record id required")
	}
	if ttl <= 0 {
		return errors.New("otp ttl must be positive")
	}
	encoded, err := encodeRecord(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(record.ID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrBackend, err)
	}
	return nil
}

// Get returns the record for id, or nil when none is stored.
func (s *OTPStore) Get(ctx context.Context, id string) (*OTPRecord, error) {
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrBackend, err)
	}

	record := &OTPRecord{}
	if err := decodeRecord(data, record); err != nil {
		return nil, err
	}
	return record, nil
}
