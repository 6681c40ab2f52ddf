//go:build integration

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repohub/repohub-backend/internal/logging"
)

func TestRedisRateLimiter(t *testing.T) {
	uri := os.Getenv("REDIS_TEST_URI")
	if uri == "" {
		t.Skip("REDIS_TEST_URI not set")
	}
	opt, err := redis.ParseURL(uri)
	require.NoError(t, err)
	client := redis.NewClient(opt)
	t.Cleanup(func() { client.Close() })

	ip := "203.0.113.7"
	ctx := context.Background()
	client.Del(ctx, RateLimitKeyPrefix+ip, BlockedIPKeyPrefix+ip)

	l := NewRedisRateLimiter(client, logging.Discard())
	l.MaxRequests = 2
	l.BlockFor = time.Minute
	h := l.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	do := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/repositorios/publicos", nil)
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, do())
	assert.Equal(t, http.StatusOK, do())
	assert.Equal(t, http.StatusTooManyRequests, do())
	assert.Equal(t, http.StatusTooManyRequests, do())

	require.NoError(t, l.Unblock(ctx, ip))
	client.Del(ctx, RateLimitKeyPrefix+ip)
	assert.Equal(t, http.StatusOK, do())
}
