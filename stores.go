package goIdentity

import (
	"context"
	"time"

	"github.com/MrEthical07/goIdentity/internal/stores"
	"github.com/redis/go-redis/v9"
)

// NewRedisOpaqueTokenStore returns an OpaqueTokenStore backed by Redis. Tokens
// are keyed by their SHA-256 digest and expire with the record TTL.
func NewRedisOpaqueTokenStore(client redis.UniversalClient, prefix string) OpaqueTokenStore {
	return redisOpaqueStore{store: stores.NewOpaqueTokenStore(client, prefix)}
}

// NewRedisOTPStore returns an OTPStore backed by Redis.
func NewRedisOTPStore(client redis.UniversalClient, prefix string) OTPStore {
	return redisOTPStore{store: stores.NewOTPStore(client, prefix)}
}

// NewRedisRevocationLedger returns a RevocationLedger backed by Redis keys
// that expire with the token.
func NewRedisRevocationLedger(client redis.UniversalClient, prefix string) RevocationLedger {
	return stores.NewJTILedger(client, prefix)
}

type redisOpaqueStore struct {
	store *stores.OpaqueTokenStore
}

func (s redisOpaqueStore) Save(ctx context.Context, token *OpaqueAccountToken, ttl time.Duration) error {
	record := &stores.OpaqueRecord{
		ID:              token.ID,
		Kind:            string(token.Kind),
		AccountID:       token.AccountID,
		Domain:          token.Domain,
		ExpiresAt:       token.ExpiresAt,
		CreatedAt:       token.CreatedAt,
		DeviceID:        token.DeviceID,
		ClientID:        token.ClientID,
		SourceIP:        token.SourceIP,
		UserAgent:       token.UserAgent,
		TrackingSession: token.TrackingSession,
	}
	if r := token.Restrictions; r != nil {
		record.Restrictions = &stores.Restrictions{Scopes: r.Scopes, Permissions: r.Permissions}
	}
	if info := token.AdditionalInfo; info != nil {
		record.InfoType = info.Type
		record.InfoData = info.Data
	}
	return s.store.Save(ctx, token.Token, record, ttl)
}

func (s redisOpaqueStore) Get(ctx context.Context, token string) (*OpaqueAccountToken, error) {
	record, err := s.store.Get(ctx, token)
	if err != nil || record == nil {
		return nil, err
	}
	out := &OpaqueAccountToken{
		ID:              record.ID,
		Kind:            OpaqueKind(record.Kind),
		Token:           token,
		AccountID:       record.AccountID,
		Domain:          record.Domain,
		ExpiresAt:       record.ExpiresAt,
		CreatedAt:       record.CreatedAt,
		DeviceID:        record.DeviceID,
		ClientID:        record.ClientID,
		SourceIP:        record.SourceIP,
		UserAgent:       record.UserAgent,
		TrackingSession: record.TrackingSession,
	}
	if r := record.Restrictions; r != nil {
		out.Restrictions = &TokenRestrictions{Scopes: r.Scopes, Permissions: r.Permissions}
	}
	if record.InfoType != "" {
		out.AdditionalInfo = &AdditionalInfo{Type: record.InfoType, Data: record.InfoData}
	}
	return out, nil
}

type redisOTPStore struct {
	store *stores.OTPStore
}

func (s redisOTPStore) Save(ctx context.Context, otp *OneTimePassword, ttl time.Duration) error {
	return s.store.Save(ctx, &stores.OTPRecord{
		ID:        otp.ID,
		Code:      otp.Code,
		AccountID: otp.AccountID,
		ExpiresAt: otp.ExpiresAt,
	}, ttl)
}

func (s redisOTPStore) Get(ctx context.Context, id string) (*OneTimePassword, error) {
	record, err := s.store.Get(ctx, id)
	if err != nil || record == nil {
		return nil, err
	}
	return &OneTimePassword{
		ID:        record.ID,
		Code:      record.Code,
		AccountID: record.AccountID,
		ExpiresAt: record.ExpiresAt,
	}, nil
}
