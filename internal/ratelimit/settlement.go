package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/paychunk/paychunk/internal/config"
)

const (
	keySettleConsumer = "settle:consumer:%s"
	keySettleLock     = "settle:lock:%s:%s"

	settleLockTTL = 10 * time.Second
)

// SettlementLimiter throttles the pay and settle endpoints per consumer and
// serializes settlements on one session across instances. A nil limiter
// allows everything.
type SettlementLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker

	consumerRate  float64
	consumerBurst int
}

func NewSettlementLimiter(cfg config.Config) (*SettlementLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.ConsumerRate <= 0 || limitCfg.ConsumerBurst <= 0 {
		return nil, errors.New("consumer rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
	})

	return &SettlementLimiter{
		enabled:       true,
		bucket:        NewTokenBucket(client),
		locker:        NewLocker(client),
		consumerRate:  limitCfg.ConsumerRate,
		consumerBurst: limitCfg.ConsumerBurst,
	}, nil
}

func (l *SettlementLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// AllowConsumer takes one settlement token for the consumer.
func (l *SettlementLimiter) AllowConsumer(ctx context.Context, consumer string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	key := fmt.Sprintf(keySettleConsumer, strings.TrimSpace(consumer))
	return l.bucket.Allow(ctx, key, l.consumerRate, l.consumerBurst)
}

// TryLockSession grabs the settlement lock for one consumer and resource.
func (l *SettlementLimiter) TryLockSession(ctx context.Context, consumer, resourceID string) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	key := fmt.Sprintf(keySettleLock, strings.TrimSpace(consumer), strings.TrimSpace(resourceID))
	return l.locker.TryLock(ctx, key, settleLockTTL)
}

// ReleaseSession releases a lock taken with TryLockSession.
func (l *SettlementLimiter) ReleaseSession(ctx context.Context, consumer, resourceID, token string) error {
	if !l.Enabled() {
		return nil
	}
	key := fmt.Sprintf(keySettleLock, strings.TrimSpace(consumer), strings.TrimSpace(resourceID))
	return l.locker.Release(ctx, key, token)
}
