package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "resend:"

// RedisStore keeps one sorted set per key scored by unix milliseconds.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = RetentionTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Attempts(ctx context.Context, key string, since time.Time) ([]time.Time, error) {
	entries, err := s.client.ZRangeByScoreWithScores(ctx, redisKeyPrefix+key, &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, 0, len(entries))
	for _, z := range entries {
		out = append(out, time.UnixMilli(int64(z.Score)))
	}
	return out, nil
}

func (s *RedisStore) Record(ctx context.Context, key string, at time.Time) error {
	rk := redisKeyPrefix + key
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, rk, redis.Z{Score: float64(at.UnixMilli()), Member: uuid.NewString()})
	pipe.ZRemRangeByScore(ctx, rk, "-inf", "("+strconv.FormatInt(at.Add(-s.ttl).UnixMilli(), 10))
	pipe.Expire(ctx, rk, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}
