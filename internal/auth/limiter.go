package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	failKeyPrefix  = "login:fail:"
	blockKeyPrefix = "login:block:"
)

// Decision is the outcome of a limiter check. BlockedUntil is set only when
// Allowed is false.
type Decision struct {
	Allowed      bool      `json:"allowed"`
	BlockedUntil time.Time `json:"blockedUntil,omitempty"`
}

// LimiterConfig controls the failure limiter. MaxFailures failures within
// Window block the client for Block.
type LimiterConfig struct {
	MaxFailures int
	Window      time.Duration
	Block       time.Duration
}

// DefaultLimiterConfig allows five failures per fifteen minutes.
func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{MaxFailures: 5, Window: 15 * time.Minute, Block: 15 * time.Minute}
}

// LoginLimiter tracks failed password attempts per client.
type LoginLimiter interface {
	Check(ctx context.Context, id string) (Decision, error)
	RecordFailure(ctx context.Context, id string) (Decision, error)
	Reset(ctx context.Context, id string) error
}

// RedisLimiter keeps failure counters and blocks in Redis so they survive
// restarts.
type RedisLimiter struct {
	client *redis.Client
	cfg    LimiterConfig
	now    func() time.Time
}

// NewRedisLimiter creates a RedisLimiter.
func NewRedisLimiter(client *redis.Client, cfg LimiterConfig) *RedisLimiter {
	return &RedisLimiter{client: client, cfg: cfg, now: time.Now}
}

// Check reports whether id may attempt a login.
func (l *RedisLimiter) Check(ctx context.Context, id string) (Decision, error) {
	ttl, err := l.client.PTTL(ctx, blockKeyPrefix+id).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("redis pttl block: %w", err)
	}
	// PTTL is negative when the key is missing.
	if ttl <= 0 {
		return Decision{Allowed: true}, nil
	}
	return Decision{BlockedUntil: l.now().Add(ttl)}, nil
}

// RecordFailure counts a failed attempt and blocks id once the threshold
// is reached within the window.
func (l *RedisLimiter) RecordFailure(ctx context.Context, id string) (Decision, error) {
	failKey := failKeyPrefix + id

	n, err := l.client.Incr(ctx, failKey).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("redis incr failures: %w", err)
	}
	if n == 1 {
		if err := l.client.PExpire(ctx, failKey, l.cfg.Window).Err(); err != nil {
			return Decision{}, fmt.Errorf("redis expire failures: %w", err)
		}
	}
	if n < int64(l.cfg.MaxFailures) {
		return Decision{Allowed: true}, nil
	}

	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, blockKeyPrefix+id, n, l.cfg.Block)
		pipe.Del(ctx, failKey)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("redis set block: %w", err)
	}
	return Decision{BlockedUntil: l.now().Add(l.cfg.Block)}, nil
}

// Reset clears failures and any block for id.
func (l *RedisLimiter) Reset(ctx context.Context, id string) error {
	if err := l.client.Del(ctx, failKeyPrefix+id, blockKeyPrefix+id).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis del limiter keys: %w", err)
	}
	return nil
}

// NoLimit never blocks. It is used when no Redis is configured.
type NoLimit struct{}

func (NoLimit) Check(context.Context, string) (Decision, error) {
	return Decision{Allowed: true}, nil
}

func (NoLimit) RecordFailure(context.Context, string) (Decision, error) {
	return Decision{Allowed: true}, nil
}

func (NoLimit) Reset(context.Context, string) error { return nil }
