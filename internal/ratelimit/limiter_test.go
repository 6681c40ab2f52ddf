package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repohub/repohub-backend/pkg/utils"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

var testPolicy = Policy{Window: 600 * time.Second, MaxPerWindow: 3, MinInterval: 60 * time.Second}

type step struct {
	at        time.Duration
	key       string
	allowed   bool
	retryWant int
}

// resendScenario is replayed against every Store implementation; all of them
// must reach the same decisions.
var resendScenario = []step{
	{at: 0, allowed: true},
	{at: 30 * time.Second, retryWant: 30},
	{at: 30 * time.Second, key: "other", allowed: true},
	{at: 60 * time.Second, allowed: true},
	{at: 61 * time.Second, retryWant: 59},
	{at: 120 * time.Second, allowed: true},
	{at: 180 * time.Second, retryWant: 420},
	{at: 599 * time.Second, retryWant: 1},
	// The attempt at 0 is exactly one window old and still counts.
	{at: 600 * time.Second, retryWant: 1},
	{at: 601 * time.Second, allowed: true},
	{at: 630 * time.Second, retryWant: 30},
	{at: 661*time.Second + 500*time.Millisecond, allowed: true},
}

func runScenario(t *testing.T, store Store, prefix string) {
	t.Helper()
	ctx := context.Background()
	base := time.Now().Truncate(time.Second)
	clock := &fakeClock{now: base}
	l := NewLimiter(store, testPolicy).WithClock(clock.Now)

	for i, s := range resendScenario {
		clock.Set(base.Add(s.at))
		key := prefix + "main"
		if s.key != "" {
			key = prefix + s.key
		}
		err := l.Allow(ctx, key)
		if s.allowed {
			require.NoError(t, err, "step %d", i)
			continue
		}
		var rl *utils.RateLimitError
		require.ErrorAs(t, err, &rl, "step %d", i)
		assert.Equal(t, s.retryWant, rl.RetryAfter, "step %d", i)
	}
}

func TestLimiter_MemoryStoreScenario(t *testing.T) {
	runScenario(t, NewMemoryStore(0), "")
}

func TestLimiter_RejectionsAreNotRecorded(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	base := time.Now()
	clock := &fakeClock{now: base}
	l := NewLimiter(store, testPolicy).WithClock(clock.Now)

	require.NoError(t, l.Allow(ctx, "k"))
	for i := 1; i <= 5; i++ {
		clock.Set(base.Add(time.Duration(i) * time.Second))
		require.Error(t, l.Allow(ctx, "k"))
	}

	attempts, err := store.Attempts(ctx, "k", base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, attempts, 1)
}

func TestLimiter_SerializesSameKey(t *testing.T) {
	ctx := context.Background()
	l := NewLimiter(NewMemoryStore(0), testPolicy)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow(ctx, "user:ana") == nil {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, allowed)
	assert.Empty(t, l.locks)
}

type failingStore struct{}

func (failingStore) Attempts(context.Context, string, time.Time) ([]time.Time, error) {
	return nil, errors.New("store down")
}

func (failingStore) Record(context.Context, string, time.Time) error {
	return errors.New("store down")
}

func TestLimiter_PropagatesStoreErrors(t *testing.T) {
	err := NewLimiter(failingStore{}, testPolicy).Allow(context.Background(), "k")
	require.Error(t, err)
	var rl *utils.RateLimitError
	assert.False(t, errors.As(err, &rl))
}

func TestMemoryStore_Sweep(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)
	now := time.Now()
	require.NoError(t, s.Record(ctx, "old", now.Add(-2*time.Hour)))
	require.NoError(t, s.Record(ctx, "fresh", now))

	s.sweep(now)

	assert.NotContains(t, s.attempts, "old")
	assert.Contains(t, s.attempts, "fresh")
}

func TestLimiter_WindowStartIsInclusive(t *testing.T) {
	now := time.Now()
	l := NewLimiter(NewMemoryStore(0), Policy{Window: 10 * time.Minute, MaxPerWindow: 1, MinInterval: time.Second})

	rl := l.check([]time.Time{now.Add(-10 * time.Minute)}, now)
	require.NotNil(t, rl)
	assert.Equal(t, 1, rl.RetryAfter)

	assert.Nil(t, l.check([]time.Time{now.Add(-10*time.Minute - time.Nanosecond)}, now))
}

func TestRemaining(t *testing.T) {
	assert.Equal(t, 30, remaining(time.Minute, 30*time.Second))
	assert.Equal(t, 1, remaining(time.Minute, time.Minute))
	assert.Equal(t, 1, remaining(time.Minute, 2*time.Minute))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "user:ana", Key("ana", "1.2.3.4"))
	assert.Equal(t, "ip:1.2.3.4", Key("", "1.2.3.4"))
}
