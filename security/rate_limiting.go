package security

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a Redis fixed-window limiter keyed by user (or IP for
// anonymous requests). It shields the hold path from scripted buyers
// hammering popular on-sales.
type RateLimiter struct {
	redis  *redis.Client
	limit  int64
	window time.Duration
}

func NewRateLimiter(redisClient *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		limit:  limit,
		window: window,
	}
}

// Allow counts one request against key's current window.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	windowSecs := int64(r.window.Seconds())
	if windowSecs < 1 {
		windowSecs = 1
	}
	bucket := fmt.Sprintf("ratelimit:%s:%d", key, time.Now().Unix()/windowSecs)

	count, err := r.redis.Incr(ctx, bucket).Result()
	if err != nil {
		return true, err
	}
	if count == 1 {
		r.redis.Expire(ctx, bucket, r.window)
	}

	return count <= r.limit, nil
}

// CheckoutGuard is route middleware for the hold/checkout endpoints.
func (r *RateLimiter) CheckoutGuard() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		key := e.RealIP()
		if e.Auth != nil {
			key = "user:" + e.Auth.Id
		}

		ok, err := r.Allow(e.Request.Context(), key)
		if err != nil {
			// fail open: a Redis blip should not block ticket sales
			slog.Warn("rate limiter unavailable", "err", err)
		}
		if !ok {
			return e.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded. Please try again later.",
			})
		}

		return e.Next()
	}
}
