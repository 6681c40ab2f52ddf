// Package ratelimit implements the throttle in front of 2FA code resends: a
// rolling window cap plus a minimum spacing between attempts per identity.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/repohub/repohub-backend/pkg/utils"
)

// RetentionTTL is how long attempt logs are kept by durable stores.
const RetentionTTL = 24 * time.Hour

// Store persists attempt timestamps per key.
type Store interface {
	// Attempts returns the attempts for key at or after since, oldest first.
	Attempts(ctx context.Context, key string, since time.Time) ([]time.Time, error)
	Record(ctx context.Context, key string, at time.Time) error
}

type Policy struct {
	Window       time.Duration
	MaxPerWindow int
	MinInterval  time.Duration
}

// DefaultPolicy: 3 resends per 10 minutes, one per minute at most.
var DefaultPolicy = Policy{Window: 10 * time.Minute, MaxPerWindow: 3, MinInterval: time.Minute}

type Limiter struct {
	store  Store
	policy Policy
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewLimiter(store Store, policy Policy) *Limiter {
	return &Limiter{
		store:  store,
		policy: policy,
		now:    time.Now,
		locks:  make(map[string]*keyLock),
	}
}

// WithClock replaces the time source. Used by tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

func (l *Limiter) Policy() Policy {
	return l.policy
}

// Allow checks the policy for key and records the attempt when it passes.
// A rejection is a *utils.RateLimitError; other errors come from the store.
func (l *Limiter) Allow(ctx context.Context, key string) error {
	unlock := l.lock(key)
	defer unlock()

	// Millisecond precision keeps every store on the same clock resolution.
	now := time.UnixMilli(l.now().UnixMilli())

	attempts, err := l.store.Attempts(ctx, key, now.Add(-l.policy.Window))
	if err != nil {
		return err
	}
	if rejection := l.check(attempts, now); rejection != nil {
		return rejection
	}
	return l.store.Record(ctx, key, now)
}

func (l *Limiter) check(attempts []time.Time, now time.Time) *utils.RateLimitError {
	windowStart := now.Add(-l.policy.Window)
	var recent []time.Time
	for _, at := range attempts {
		if !at.Before(windowStart) && !at.After(now) {
			recent = append(recent, at)
		}
	}
	if len(recent) == 0 {
		return nil
	}

	if len(recent) >= l.policy.MaxPerWindow {
		retry := remaining(l.policy.Window, now.Sub(recent[0]))
		return &utils.RateLimitError{
			Message:    fmt.Sprintf("Has alcanzado el máximo de %d reenvíos. Intenta de nuevo en %ds.", l.policy.MaxPerWindow, retry),
			RetryAfter: retry,
		}
	}

	last := recent[len(recent)-1]
	if since := now.Sub(last); since < l.policy.MinInterval {
		retry := remaining(l.policy.MinInterval, since)
		return &utils.RateLimitError{
			Message:    fmt.Sprintf("Espera %ds antes de reenviar otro código.", retry),
			RetryAfter: retry,
		}
	}
	return nil
}

// remaining is limit minus the whole seconds elapsed, at least one so a
// rejection never advertises an immediate retry.
func remaining(limit, elapsed time.Duration) int {
	r := int(limit/time.Second) - int(elapsed/time.Second)
	if r < 1 {
		return 1
	}
	return r
}

// lock serializes Allow per key so check and record act as one step.
func (l *Limiter) lock(key string) func() {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		l.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// Key builds the limiter identity: the username when known, the caller
// network origin otherwise.
func Key(username, origin string) string {
	if username != "" {
		return "user:" + username
	}
	return "ip:" + origin
}
