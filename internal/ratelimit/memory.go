package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps attempts in process memory. Suitable for a single instance.
type MemoryStore struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	ttl      time.Duration
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = RetentionTTL
	}
	return &MemoryStore{attempts: make(map[string][]time.Time), ttl: ttl}
}

func (m *MemoryStore) Attempts(_ context.Context, key string, since time.Time) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []time.Time
	for _, at := range m.attempts[key] {
		if !at.Before(since) {
			out = append(out, at)
		}
	}
	return out, nil
}

func (m *MemoryStore) Record(_ context.Context, key string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[key] = append(prune(m.attempts[key], at.Add(-m.ttl)), at)
	return nil
}

// StartJanitor drops expired attempts every interval until ctx is done.
func (m *MemoryStore) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				m.sweep(now)
			}
		}
	}()
}

func (m *MemoryStore) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := now.Add(-m.ttl)
	for key, list := range m.attempts {
		kept := prune(list, cutoff)
		if len(kept) == 0 {
			delete(m.attempts, key)
			continue
		}
		m.attempts[key] = kept
	}
}

func prune(list []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(list) && list[i].Before(cutoff) {
		i++
	}
	return list[i:]
}
