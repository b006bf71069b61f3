package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// JTILedger records issued token identifiers. Presence means valid.
type JTILedger struct {
	redis  redis.UniversalClient
	prefix string
}

func NewJTILedger(redisClient redis.UniversalClient, prefix string) *JTILedger {
	if prefix == "" {
		prefix = "gijti"
	}
	return &JTILedger{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (l *JTILedger) key(jti string) string {
	return l.prefix + ":" + jti
}

// Record marks jti valid for ttl. The write completes before Record returns.
func (l *JTILedger) Record(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return errors.New("jti required")
	}
	if ttl <= 0 {
		return errors.New("jti ttl must be positive")
	}
	if err := l.redis.Set(ctx, l.key(jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrBackend, err)
	}
	return nil
}

func (l *JTILedger) IsValid(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	n, err := l.redis.Exists(ctx, l.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrBackend, err)
	}
	return n > 0, nil
}

// Revoke removes jti and reports whether it was present.
func (l *JTILedger) Revoke(ctx context.Context, jti string) (bool, error) {
	n, err := l.redis.Del(ctx, l.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrBackend, err)
	}
	return n > 0, nil
}
