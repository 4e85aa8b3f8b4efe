package ratelimit

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/parishkeep/parishkeep/internal/config"
)

// VerifyLimiter throttles anonymous invite code lookups per client IP.
// The public verify endpoint is the only surface a code can be brute
// forced through.
type VerifyLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
	log    *zap.Logger
}

// NewVerifyLimiter returns nil when rate limiting is disabled; callers
// treat a nil limiter as pass-through.
func NewVerifyLimiter(cfg *config.Config, log *zap.Logger) *VerifyLimiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RateLimit.RedisAddr,
		Password: cfg.RateLimit.RedisPassword,
		DB:       cfg.RateLimit.RedisDB,
	})

	return &VerifyLimiter{
		bucket: NewTokenBucket(client),
		rate:   cfg.RateLimit.VerifyRatePerSec,
		burst:  cfg.RateLimit.VerifyBurst,
		log:    log,
	}
}

// Allow reports whether the client may attempt another verification.
// Redis failures fail open; losing the throttle beats losing signups.
func (l *VerifyLimiter) Allow(ctx context.Context, clientIP string) (*Result, bool) {
	if l == nil || l.bucket == nil {
		return nil, true
	}

	key := fmt.Sprintf("ratelimit:invite-verify:%s", clientIP)
	res, err := l.bucket.Allow(ctx, key, l.rate, l.burst)
	if err != nil {
		l.log.Warn("rate limiter unavailable", zap.Error(err))
		return nil, true
	}
	return res, res.Allowed
}
