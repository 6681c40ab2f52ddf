package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/repohub/repohub-backend/internal/logging"
	"github.com/repohub/repohub-backend/pkg/clientip"
)

const (
	// RateLimitKeyPrefix is the Redis key prefix for rate limiting
	RateLimitKeyPrefix = "ratelimit:"
	// BlockedIPKeyPrefix is the Redis key prefix for blocked IPs
	BlockedIPKeyPrefix = "blocked_ip:"
)

// RedisRateLimiter is a fixed-window counter per IP shared by every
// instance. Exceeding the window blocks the IP for BlockFor.
type RedisRateLimiter struct {
	client      *redis.Client
	Window      time.Duration
	MaxRequests int
	BlockFor    time.Duration
	log         logging.Logger
	now         func() time.Time
}

func NewRedisRateLimiter(client *redis.Client, log logging.Logger) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:      client,
		Window:      120 * time.Second,
		MaxRequests: 25,
		BlockFor:    time.Hour,
		log:         log,
		now:         time.Now,
	}
}

// Handler fails open whenever Redis is unavailable.
func (l *RedisRateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ip := clientip.ForwardedClientIP(r)

		blocked, err := l.client.Exists(ctx, BlockedIPKeyPrefix+ip).Result()
		if err == nil && blocked > 0 {
			writeRetry(w, "Tu IP fue bloqueada temporalmente por exceso de solicitudes.", l.BlockFor)
			return
		}

		count, err := l.increment(ctx, RateLimitKeyPrefix+ip)
		if err != nil {
			l.log.Warn(ctx, "rate limiter unavailable", "err", err)
			next.ServeHTTP(w, r)
			return
		}

		if count > int64(l.MaxRequests) {
			if err := l.client.Set(ctx, BlockedIPKeyPrefix+ip, "1", l.BlockFor).Err(); err != nil {
				l.log.Warn(ctx, "failed to block ip", "ip", ip, "err", err)
			}
			writeRetry(w, "Límite de solicitudes excedido. Intenta de nuevo más tarde.", l.Window)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.MaxRequests))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(int64(l.MaxRequests)-count, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(l.now().Add(l.Window).Unix(), 10))
		next.ServeHTTP(w, r)
	})
}

// increment bumps the counter and starts its window on first use.
func (l *RedisRateLimiter) increment(ctx context.Context, key string) (int64, error) {
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.Window).Err(); err != nil {
			return 0, err
		}
	}
	return count, nil
}

// Unblock removes an IP from the blocked list.
func (l *RedisRateLimiter) Unblock(ctx context.Context, ip string) error {
	return l.client.Del(ctx, BlockedIPKeyPrefix+ip).Err()
}

func writeRetry(w http.ResponseWriter, message string, retry time.Duration) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())))
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success":     false,
		"message":     message,
		"retry_after": int(retry.Seconds()),
	})
}
