package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter thresholds.
type Config struct {
	MaxFailures int
	Window      time.Duration
}

// Limiter counts failed verification attempts per scope and subject in
// Redis fixed windows. A nil *Limiter allows everything.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
	config Config
}

// New creates a [Limiter] storing counters under prefix.
func New(redisClient redis.UniversalClient, prefix string, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		prefix: prefix,
		config: cfg,
	}
}

// Check returns ErrRateLimited once subject has used up its failure budget
// in scope for the current window.
func (l *Limiter) Check(ctx context.Context, scope, subject string) error {
	if l == nil || subject == "" {
		return nil
	}

	count, err := l.redis.Get(ctx, l.key(scope, subject)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return unavailable(err)
	}
	if count >= int64(l.config.MaxFailures) {
		return ErrRateLimited
	}
	return nil
}

// RecordFailure counts one failed attempt. The window starts at the first
// failure and is not extended by later ones.
func (l *Limiter) RecordFailure(ctx context.Context, scope, subject string) error {
	if l == nil || subject == "" {
		return nil
	}

	key := l.key(scope, subject)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return unavailable(err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return unavailable(err)
		}
	}
	return nil
}

// Reset clears the counter after a successful verification.
func (l *Limiter) Reset(ctx context.Context, scope, subject string) error {
	if l == nil || subject == "" {
		return nil
	}
	if err := l.redis.Del(ctx, l.key(scope, subject)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Failures returns the failures counted in the current window.
func (l *Limiter) Failures(ctx context.Context, scope, subject string) (int, error) {
	if l == nil || subject == "" {
		return 0, nil
	}
	count, err := l.redis.Get(ctx, l.key(scope, subject)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, unavailable(err)
	}
	return int(count), nil
}

func (l *Limiter) key(scope, subject string) string {
	return l.prefix + scope + ":" + subject
}

func unavailable(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
}
