package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/helpdesk/pkg/httputil"
	"github.com/platinummonkey/helpdesk/pkg/observability"
)

// DistributedRateLimiter is a fixed-window limiter shared across instances
// through Redis.
type DistributedRateLimiter struct {
	redis  *redis.Client
	limit  int64
	window time.Duration
	prefix string
	// FailOpen allows requests through when Redis is unavailable.
	FailOpen bool
}

// NewDistributedRateLimiter allows limit requests per window for each key.
func NewDistributedRateLimiter(redisClient *redis.Client, limit int64, window time.Duration, prefix string) *DistributedRateLimiter {
	if prefix == "" {
		prefix = "helpdesk:ratelimit"
	}
	if window <= 0 {
		window = time.Minute
	}
	return &DistributedRateLimiter{
		redis:    redisClient,
		limit:    limit,
		window:   window,
		prefix:   prefix,
		FailOpen: true,
	}
}

// NewDistributedRateLimiterFromConfig converts a per-second rate into a
// one-minute window.
func NewDistributedRateLimiterFromConfig(redisClient *redis.Client, config *RateLimitConfig) *DistributedRateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	limit := int64(config.RequestsPerSecond*60) + int64(config.BurstSize)
	return NewDistributedRateLimiter(redisClient, limit, time.Minute, "")
}

func (rl *DistributedRateLimiter) key(key string) string {
	return fmt.Sprintf("%s:%s", rl.prefix, key)
}

// Allow counts one request for key and reports whether it is within the
// window's limit.
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := rl.key(key)

	pipe := rl.redis.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return rl.FailOpen, fmt.Errorf("redis error: %w", err)
	}
	// the window starts with the first request and is never extended
	if ttl.Val() < 0 {
		if err := rl.redis.Expire(ctx, redisKey, rl.window).Err(); err != nil {
			return rl.FailOpen, fmt.Errorf("redis error: %w", err)
		}
	}
	return incr.Val() <= rl.limit, nil
}

// Remaining returns the number of remaining requests in the window
func (rl *DistributedRateLimiter) Remaining(ctx context.Context, key string) (int64, error) {
	count, err := rl.redis.Get(ctx, rl.key(key)).Int64()
	if err == redis.Nil {
		return rl.limit, nil
	} else if err != nil {
		return 0, err
	}
	remaining := rl.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// TTL returns the time until the rate limit window resets
func (rl *DistributedRateLimiter) TTL(ctx context.Context, key string) (time.Duration, error) {
	return rl.redis.TTL(ctx, rl.key(key)).Result()
}

// Reset clears the rate limit for a key
func (rl *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, rl.key(key)).Err()
}

// Handler wraps an HTTP handler with distributed rate limiting
func (rl *DistributedRateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key := clientKey(r)

		allowed, err := rl.Allow(ctx, key)
		if err != nil {
			observability.FromContext(ctx).WithError(err).Warn("rate limiter unavailable")
			if !allowed {
				httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.limit))
		if ttl, err := rl.TTL(ctx, key); err == nil && ttl > 0 {
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(ttl).Unix()))
			if !allowed {
				w.Header().Set("Retry-After", fmt.Sprintf("%.0f", ttl.Seconds()))
			}
		}

		if !allowed {
			w.Header().Set("X-RateLimit-Remaining", "0")
			httputil.WriteTooManyRequests(w, RateLimitMessage)
			return
		}
		if remaining, err := rl.Remaining(ctx, key); err == nil {
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		}
		next.ServeHTTP(w, r)
	})
}

// HealthCheck verifies Redis connectivity for rate limiting
func (rl *DistributedRateLimiter) HealthCheck(ctx context.Context) error {
	return rl.redis.Ping(ctx).Err()
}
